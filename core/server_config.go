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
	"reflect"
	"strings"

	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const defaultConfigFile = "issuer.yaml"
const configFileFlag = "configfile"

const defaultPrefix = "ISSUER_"
const defaultDelimiter = "."
const configValueListSeparator = ","

// FlagSource is implemented by cobra.Command and anything else that can provide the (parsed) command line flags.
type FlagSource interface {
	Flags() *pflag.FlagSet
}

// ServerConfig has global server settings.
type ServerConfig struct {
	Verbosity    string `koanf:"verbosity"`
	LoggerFormat string `koanf:"loggerformat"`
	Strictmode   bool   `koanf:"strictmode"`
	Datadir      string `koanf:"datadir"`
	// URL is the public base URL of the node, used as Credential Issuer Identifier and for status list URLs.
	URL       string `koanf:"url"`
	configMap *koanf.Koanf
}

// NewServerConfig creates an initialized empty server config
func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		configMap: koanf.New(defaultDelimiter),
	}
}

// Load loads the server config, following the load order of flag defaults, config file, env vars and then commandline params.
func (ngc *ServerConfig) Load(flags *pflag.FlagSet) error {
	if err := loadConfigMap(ngc.configMap, flags); err != nil {
		return err
	}
	if err := ngc.configMap.UnmarshalWithConf("", ngc, koanf.UnmarshalConf{FlatPaths: false}); err != nil {
		return err
	}
	return ngc.configureLogging()
}

func (ngc *ServerConfig) configureLogging() error {
	lvl, err := logrus.ParseLevel(ngc.Verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	switch ngc.LoggerFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid formatter: '%s'", ngc.LoggerFormat)
	}
	return nil
}

// FlagSet returns the default server flags
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.String(configFileFlag, defaultConfigFile, "Issuer config file")
	flagSet.String("verbosity", "info", "Log level (trace, debug, info, warn, error)")
	flagSet.String("loggerformat", "text", "Log format (text, json)")
	flagSet.Bool("strictmode", true, "When set, insecure settings are forbidden.")
	flagSet.String("datadir", "./data", "Directory where the node stores its files.")
	flagSet.String("url", "", "Public URL of the issuer, used as Credential Issuer Identifier. Required.")
	return flagSet
}

// PrintConfig return the current config in string form
func (ngc *ServerConfig) PrintConfig() string {
	return ngc.configMap.Sprint()
}

// InjectIntoEngine takes the loaded config and sets the engine's config struct
func (ngc *ServerConfig) InjectIntoEngine(e Injectable) error {
	return unmarshalRecursive([]string{strings.ToLower(e.Name())}, e.Config(), ngc.configMap)
}

func elemType(ty reflect.Type) (reflect.Type, bool) {
	if ty.Kind() == reflect.Ptr {
		return ty.Elem(), true
	}
	return ty, false
}

func unmarshalRecursive(path []string, config interface{}, configMap *koanf.Koanf) error {
	if err := configMap.UnmarshalWithConf(strings.Join(path, defaultDelimiter), config, koanf.UnmarshalConf{FlatPaths: false}); err != nil {
		return err
	}

	configType, isPtr := elemType(reflect.TypeOf(config))
	if configType.Kind() != reflect.Struct {
		return nil
	}
	valueOfConfig := reflect.ValueOf(config)
	if isPtr {
		valueOfConfig = valueOfConfig.Elem()
	}
	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)
		fieldType, _ := elemType(field.Type)
		tagValue := field.Tag.Get("koanf")
		if fieldType.Kind() == reflect.Struct && tagValue != "" {
			fieldAddr := valueOfConfig.Field(i).Addr()
			if err := unmarshalRecursive(append(path, tagValue), fieldAddr.Interface(), configMap); err != nil {
				return err
			}
		}
	}
	return nil
}
