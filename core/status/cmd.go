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
	"io"
	"net/http"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/spf13/cobra"
)

// Cmd shows the diagnostics of a running issuer, fetched through its internal interface.
func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows the status of the issuer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := core.NewClientConfig()
			if err := config.Load(cmd.Flags()); err != nil {
				return err
			}
			client, err := core.CreateHTTPClient(*config)
			if err != nil {
				return err
			}
			request, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, config.GetAddress()+diagnosticsEndpoint, nil)
			if err != nil {
				return err
			}
			response, err := client.Do(request)
			if err != nil {
				return err
			}
			defer response.Body.Close()
			if err := core.TestResponseCode(http.StatusOK, response); err != nil {
				return err
			}
			data, err := io.ReadAll(response.Body)
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
	cmd.Flags().AddFlagSet(core.ClientConfigFlags())
	return cmd
}
