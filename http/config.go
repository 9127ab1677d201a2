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

package http

import "time"

// DefaultConfig returns the default configuration for the HTTP engine.
func DefaultConfig() Config {
	return Config{
		Log: LogMetadataLevel,
		Public: PublicConfig{
			Address: ":8080",
		},
		Internal: InternalConfig{
			Address: "127.0.0.1:8081",
		},
		ClientIPHeaderName: echoHeaderXForwardedFor,
		RateLimit: RateLimitConfig{
			Rate:     5,
			Burst:    20,
			Interval: time.Second,
		},
	}
}

const echoHeaderXForwardedFor = "X-Forwarded-For"

// Config is the top-level config struct for HTTP interfaces.
type Config struct {
	// Log specifies what should be logged of HTTP requests.
	Log LogLevel `koanf:"log"`
	// Public contains the config for the public interface, serving the OpenID4VCI protocol, metadata and status lists.
	Public PublicConfig `koanf:"public"`
	// Internal contains the config for the internal interface, serving the administrative API, status and metrics.
	Internal InternalConfig `koanf:"internal"`
	// ClientIPHeaderName is the name of the header a reverse proxy puts the client IP in.
	// The last value of the header is used as client IP. If empty, the IP of the TCP connection is used.
	ClientIPHeaderName string `koanf:"clientipheader"`
	// RateLimit limits the requests per client IP on the token and credential endpoints.
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// PublicConfig contains the configuration of the public HTTP interface.
type PublicConfig struct {
	// Address holds the interface address the HTTP service must be bound to, in the format of `interface:port` (e.g. localhost:5555).
	Address string `koanf:"address"`
	// CORS holds the configuration for Cross Origin Resource Sharing.
	CORS CORSConfig `koanf:"cors"`
}

// InternalConfig contains the configuration of the internal HTTP interface.
type InternalConfig struct {
	// Address holds the interface address the HTTP service must be bound to, in the format of `interface:port` (e.g. localhost:5555).
	Address string `koanf:"address"`
	// Auth specifies what authentication is required when accessing the administrative API.
	Auth AuthConfig `koanf:"auth"`
}

// RateLimitConfig configures a token bucket per client IP.
type RateLimitConfig struct {
	// Rate is the number of requests allowed per Interval. 0 disables rate limiting.
	Rate float64 `koanf:"rate"`
	// Burst is the size of the token bucket.
	Burst int `koanf:"burst"`
	// Interval is the period Rate applies to.
	Interval time.Duration `koanf:"interval"`
}

// Enabled returns whether rate limiting is enabled.
func (r RateLimitConfig) Enabled() bool {
	return r.Rate > 0
}

// LogLevel specifies what to log for incoming/outgoing HTTP traffic.
type LogLevel string

const (
	// LogNothingLevel indicates nothing will be logged for incoming/outgoing HTTP traffic.
	LogNothingLevel LogLevel = "nothing"
	// LogMetadataLevel indicates that only metadata (HTTP URI, method, response code, etc) will be logged for incoming/outgoing HTTP traffic.
	LogMetadataLevel LogLevel = "metadata"
	// LogMetadataAndBodyLevel indicates that metadata and full request/reply bodies will be logged for incoming/outgoing HTTP traffic.
	LogMetadataAndBodyLevel LogLevel = "metadata-and-body"
)

// AuthType defines the type for authentication types constants.
type AuthType string

const (
	// NoAuth disables authentication of the administrative API.
	NoAuth AuthType = ""
	// BearerTokenAuthV2 specifies bearer tokens signed by a key listed in an authorized_keys file.
	BearerTokenAuthV2 AuthType = "token_v2"
)

// AuthConfig contains the configuration for authentication for an HTTP interface.
type AuthConfig struct {
	// Type specifies the type of authentication required for the interface.
	Type AuthType `koanf:"type"`
	// AuthorizedKeysPath specifies the path to an authorized_keys file which specified the allowed signers for JWT tokens
	AuthorizedKeysPath string `koanf:"authorizedkeyspath"`
	// Audience specifies the expected aud value for JWT tokens. If left empty the system hostname is used.
	Audience string `koanf:"audience"`
}

// CORSConfig contains configuration for Cross Origin Resource Sharing.
type CORSConfig struct {
	// Origin specifies the AllowOrigin option. If no origins are given CORS is considered to be disabled.
	Origin []string `koanf:"origin"`
}

// Enabled returns whether CORS is enabled according to this configuration.
func (cors CORSConfig) Enabled() bool {
	return len(cors.Origin) > 0
}
