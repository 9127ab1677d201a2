/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_rootCmd(t *testing.T) {
	t.Run("no args prints help", func(t *testing.T) {
		output := captureOutput(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{})

		err := command.ExecuteContext(context.Background())

		require.NoError(t, err)
		assert.Contains(t, output.String(), "Available Commands")
	})
	t.Run("version", func(t *testing.T) {
		output := captureOutput(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"version"})

		err := command.Execute()

		require.NoError(t, err)
		assert.Contains(t, output.String(), "Git version: "+core.Version())
	})
	t.Run("config", func(t *testing.T) {
		output := captureOutput(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"config", "--url", "https://issuer.example.com", "--vcr.revocation.listsize", "1024"})

		err := command.Execute()

		require.NoError(t, err)
		assert.Contains(t, output.String(), "Current system config")
		assert.Contains(t, output.String(), "vcr.revocation.listsize -> 1024")
		assert.Contains(t, output.String(), "url -> https://issuer.example.com")
	})
	t.Run("client commands are registered", func(t *testing.T) {
		command := CreateCommand(CreateSystem(func() {}))

		for _, name := range []string{"server", "config", "version", "status", "vcr", "vdr"} {
			sub, _, err := command.Find([]string{name})
			require.NoError(t, err, name)
			assert.Equal(t, name, sub.Name())
		}
	})
}

func Test_serverCmd(t *testing.T) {
	t.Run("start and shutdown", func(t *testing.T) {
		captureOutput(t)
		publicAddress := fmt.Sprintf("127.0.0.1:%d", test.FreeTCPPort())
		internalAddress := fmt.Sprintf("127.0.0.1:%d", test.FreeTCPPort())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		command := CreateCommand(CreateSystem(cancel))
		command.SetArgs([]string{"server",
			"--configfile", "",
			"--datadir", t.TempDir(),
			"--url", "https://issuer.example.com",
			"--http.public.address", publicAddress,
			"--http.internal.address", internalAddress,
		})

		errs := make(chan error, 1)
		go func() {
			errs <- command.ExecuteContext(ctx)
		}()

		require.Eventually(t, func() bool {
			response, err := http.Get("http://" + internalAddress + "/health")
			if err != nil {
				return false
			}
			_ = response.Body.Close()
			return response.StatusCode == http.StatusOK
		}, 5*time.Second, 50*time.Millisecond)
		response, err := http.Get("http://" + publicAddress + "/.well-known/openid-credential-issuer")
		require.NoError(t, err)
		_ = response.Body.Close()
		assert.Equal(t, http.StatusOK, response.StatusCode)
		assert.Equal(t, "max-age=300", response.Header.Get("Cache-Control"))
		// internal endpoints must not be reachable on the public interface
		response, err = http.Get("http://" + publicAddress + "/status/diagnostics")
		require.NoError(t, err)
		_ = response.Body.Close()
		assert.Equal(t, http.StatusNotFound, response.StatusCode)

		cancel()
		select {
		case err := <-errs:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
	t.Run("invalid config", func(t *testing.T) {
		captureOutput(t)
		command := CreateCommand(CreateSystem(func() {}))
		command.SetArgs([]string{"server", "--configfile", "", "--datadir", t.TempDir(), "--url", "http://issuer.example.com"})

		err := command.ExecuteContext(context.Background())

		assert.ErrorContains(t, err, "unable to configure VCR")
	})
}

func captureOutput(t *testing.T) *bytes.Buffer {
	buf := new(bytes.Buffer)
	oldStdout := stdOutWriter
	stdOutWriter = buf
	t.Cleanup(func() {
		stdOutWriter = oldStdout
	})
	return buf
}
