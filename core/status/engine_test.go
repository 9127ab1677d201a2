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

package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestServer(t *testing.T) *httptest.Server {
	system := core.NewSystem()
	system.RegisterEngine(NewStatusEngine(system))
	system.RegisterEngine(core.NewMetricsEngine())
	server := core.NewEchoServer()
	system.VisitEngines(func(engine core.Engine) {
		if r, ok := engine.(core.Routable); ok {
			r.Routes(server)
		}
	})
	httpServer := httptest.NewServer(server)
	t.Cleanup(httpServer.Close)
	return httpServer
}

func TestStatus_Routes(t *testing.T) {
	server := newTestServer(t)

	t.Run("status", func(t *testing.T) {
		response, err := http.Get(server.URL + "/status")
		require.NoError(t, err)
		defer response.Body.Close()

		assert.Equal(t, http.StatusOK, response.StatusCode)
	})
	t.Run("health", func(t *testing.T) {
		response, err := http.Get(server.URL + "/health")
		require.NoError(t, err)
		defer response.Body.Close()

		var body healthResponse
		require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
		assert.Equal(t, "UP", body.Status)
		assert.Equal(t, []string{"Status", "Metrics"}, body.Engines)
	})
	t.Run("diagnostics as YAML", func(t *testing.T) {
		response, err := http.Get(server.URL + "/status/diagnostics")
		require.NoError(t, err)
		defer response.Body.Close()

		var body map[string]map[string]interface{}
		require.NoError(t, yaml.NewDecoder(response.Body).Decode(&body))
		assert.Equal(t, core.Version(), body["status"]["software_version"])
		assert.Contains(t, body["status"], "uptime")
	})
	t.Run("diagnostics as JSON", func(t *testing.T) {
		request, _ := http.NewRequest(http.MethodGet, server.URL+"/status/diagnostics", nil)
		request.Header.Set("Accept", "application/json")
		response, err := http.DefaultClient.Do(request)
		require.NoError(t, err)
		defer response.Body.Close()

		var body map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
		assert.Equal(t, core.OSArch(), body["status"]["os_arch"])
	})
}

func TestStatus_Diagnostics(t *testing.T) {
	ds := NewStatusEngine(core.NewSystem()).(*status).Diagnostics()

	require.Len(t, ds, 4)
	assert.Equal(t, "uptime", ds[0].Name())
	assert.Equal(t, "software_version", ds[1].Name())
	assert.Equal(t, core.Version(), ds[1].String())
	assert.Equal(t, "git_commit", ds[2].Name())
	assert.Equal(t, "os_arch", ds[3].Name())
}
