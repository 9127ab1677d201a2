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
	"testing"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSet(t *testing.T) {
	flags := FlagSet()

	cacheTTL, err := flags.GetDuration("vdr.cachettl")
	require.NoError(t, err)
	assert.Equal(t, vdr.DefaultConfig().CacheTTL, cacheTTL)
}

func TestCmd_Resolve(t *testing.T) {
	newCmd := func(output *bytes.Buffer, args ...string) error {
		system := core.NewSystem()
		module := vdr.NewVDR()
		system.RegisterEngine(module)
		command := Cmd(system, module)
		command.PersistentFlags().AddFlagSet(core.FlagSet())
		command.PersistentFlags().AddFlagSet(FlagSet())
		command.SetOut(output)
		command.SetErr(new(bytes.Buffer))
		command.SetArgs(append([]string{"resolve", "--configfile", ""}, args...))
		return command.Execute()
	}

	t.Run("ok - did:key", func(t *testing.T) {
		output := new(bytes.Buffer)

		err := newCmd(output, "did:key:zDnaeucDGfhXHoJVqot3p21RuupNJ2fZrs8Lb1GV83VnSo2jR")

		require.NoError(t, err)
		assert.Contains(t, output.String(), `"kty": "EC"`)
		assert.Contains(t, output.String(), `"kid": "did:key:zDnaeucDGfhXHoJVqot3p21RuupNJ2fZrs8Lb1GV83VnSo2jR#zDnaeucDGfhXHoJVqot3p21RuupNJ2fZrs8Lb1GV83VnSo2jR"`)
	})
	t.Run("error - unsupported method", func(t *testing.T) {
		err := newCmd(new(bytes.Buffer), "did:example:123")

		assert.ErrorContains(t, err, "DID method not supported")
	})
}
