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
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vdr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet contains flags relevant for the VDR engine
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("vdr", pflag.ContinueOnError)
	defs := vdr.DefaultConfig()
	flagSet.Duration("vdr.cachettl", defs.CacheTTL, "How long resolved DID keys are cached. 0 disables caching.")
	flagSet.Duration("vdr.timeout", defs.Timeout, "HTTP timeout for did:web resolution.")
	return flagSet
}

// Cmd contains sub-commands for the VDR engine
func Cmd(system *core.System, module *vdr.Module) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vdr",
		Short: "DID resolution commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve [DID]",
		Short: "Resolves the public keys of a did:key or did:web DID and prints them as JWK set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := system.Load(cmd); err != nil {
				return err
			}
			if err := module.Configure(*system.Config); err != nil {
				return err
			}
			keys, err := module.KeyResolver().ResolveKeys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			set := jwk.NewSet()
			for _, key := range keys {
				_ = set.AddKey(key)
			}
			data, _ := json.MarshalIndent(set, "", "  ")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	})
	return cmd
}
