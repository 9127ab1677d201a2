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

package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const defaultClientTimeout = 10 * time.Second
const defaultAddress = "localhost:8081"
const addressFlag = "address"
const clientTimeoutFlag = "timeout"
const clientTokenFlag = "token"
const clientTokenFileFlag = "token-file"

// ClientConfig has CLI client settings.
type ClientConfig struct {
	Address   string        `koanf:"address"`
	Timeout   time.Duration `koanf:"timeout"`
	Token     string        `koanf:"token"`
	TokenFile string        `koanf:"token-file"`
}

// NewClientConfig creates a new CLI client config with default values set.
func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		Address: defaultAddress,
		Timeout: defaultClientTimeout,
	}
}

// Load loads the client config from environment variables and commandline params.
// The given flags must contain the client flags (see ClientConfigFlags).
func (cfg *ClientConfig) Load(flags *pflag.FlagSet) error {
	configMap := koanf.New(defaultDelimiter)
	if err := loadConfigMap(configMap, flags); err != nil {
		return err
	}
	return configMap.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{FlatPaths: false})
}

// ClientConfigFlags returns the flags for configuring the client config.
func ClientConfigFlags() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("client", pflag.ContinueOnError)
	flagSet.String(addressFlag, defaultAddress, "Address of the internal interface of the issuer. Must contain at least host and port, URL scheme may be omitted. In that case 'http://' is prepended.")
	flagSet.Duration(clientTimeoutFlag, defaultClientTimeout, "Client time-out when performing remote operations.")
	flagSet.String(clientTokenFlag, "", "Token to be used for authenticating on the administrative API. Overrides the token file.")
	flagSet.String(clientTokenFileFlag, "", "File from which the authentication token will be read. "+
		"If not specified it will try to read the token from the '.issuer-client.cfg' file in the user's home dir.")
	return flagSet
}

// GetAddress normalizes and gets the address of the remote server
func (cfg ClientConfig) GetAddress() string {
	addr := cfg.Address
	if !strings.HasPrefix(addr, "http") {
		addr = "http://" + addr
	}
	return addr
}

// GetAuthToken returns the configured token, or the contents of the token file. An empty string means no token.
func (cfg ClientConfig) GetAuthToken() (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	tokenFile := cfg.TokenFile
	if tokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		tokenFile = home + string(os.PathSeparator) + ".issuer-client.cfg"
		if _, err := os.Stat(tokenFile); err != nil {
			return "", nil
		}
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", fmt.Errorf("unable to read token file (%s): %w", tokenFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}
