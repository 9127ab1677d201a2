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

package storage

import "time"

// Config specifies config for the storage engine.
type Config struct {
	SQL     SQLConfig     `koanf:"sql"`
	Session SessionConfig `koanf:"session"`
}

// SQLConfig specifies config for the SQL database.
type SQLConfig struct {
	// ConnectionString is the connection string of the SQL database.
	// It supports postgres:// and mysql:// URLs, anything else is treated as SQLite connection string.
	// If empty, an SQLite database in the data directory is used.
	ConnectionString string `koanf:"connection"`
	// SlowQueryThreshold is the duration after which a query is logged as slow.
	SlowQueryThreshold time.Duration `koanf:"slowquerythreshold"`
}

// SessionConfig specifies config for the session storage, used for short-lived single-use values.
type SessionConfig struct {
	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig specifies config for a Redis server. If Address is empty, session data is kept in memory.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database int    `koanf:"database"`
}

func (r RedisConfig) isConfigured() bool {
	return r.Address != ""
}

// DefaultConfig returns the default configuration for the storage engine.
func DefaultConfig() Config {
	return Config{
		SQL: SQLConfig{
			SlowQueryThreshold: 500 * time.Millisecond,
		},
	}
}
