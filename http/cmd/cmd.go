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
	"fmt"

	"github.com/nuts-foundation/ebsi-issuer/http"
	"github.com/spf13/pflag"
)

// FlagSet defines the set of flags that sets the engine configuration
func FlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("http", pflag.ContinueOnError)

	defs := http.DefaultConfig()
	flags.String("http.public.address", defs.Public.Address, "Address and port the server will be listening to for public-facing endpoints (OpenID4VCI protocol, metadata and status lists).")
	flags.StringSlice("http.public.cors.origin", defs.Public.CORS.Origin, "When set, enables CORS from the specified origins on the public endpoints.")
	flags.String("http.internal.address", defs.Internal.Address, "Address and port the server will be listening to for internal-facing endpoints (administrative API, status and metrics).")
	flags.String("http.internal.auth.type", string(defs.Internal.Auth.Type), fmt.Sprintf("Whether to enable authentication for /internal endpoints, specify '%s' for bearer token mode.", http.BearerTokenAuthV2))
	flags.String("http.internal.auth.audience", defs.Internal.Auth.Audience, "Expected audience for JWT tokens (default: hostname)")
	flags.String("http.internal.auth.authorizedkeyspath", defs.Internal.Auth.AuthorizedKeysPath, "Path to an authorized_keys file for trusted JWT signers")
	flags.String("http.log", string(defs.Log), fmt.Sprintf("What to log about HTTP requests. Options are '%s', '%s' (log request method, URI, IP and response code), and '%s' (log the request and response body, in addition to the metadata).", http.LogNothingLevel, http.LogMetadataLevel, http.LogMetadataAndBodyLevel))
	flags.String("http.clientipheader", defs.ClientIPHeaderName, "Name of the header a reverse proxy puts the client IP in. The last value of the header is used. If empty, the IP of the connection is used.")
	flags.Float64("http.ratelimit.rate", defs.RateLimit.Rate, "Number of requests per interval a client IP may do on the token and credential endpoints. 0 disables rate limiting.")
	flags.Int("http.ratelimit.burst", defs.RateLimit.Burst, "Number of requests a client IP may do in a burst on the token and credential endpoints.")
	flags.Duration("http.ratelimit.interval", defs.RateLimit.Interval, "Interval the rate limit applies to.")

	return flags
}
