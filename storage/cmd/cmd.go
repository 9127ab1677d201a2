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
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/spf13/pflag"
)

// FlagSet contains flags relevant for the engine
func FlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("storage", pflag.ContinueOnError)
	defs := storage.DefaultConfig()
	flagSet.String("storage.sql.connection", defs.SQL.ConnectionString, "Connection string for the SQL database. "+
		"Supports postgres:// and mysql:// (followed by a go-sql-driver DSN). If not set, an SQLite database in the data directory is used.")
	flagSet.Duration("storage.sql.slowquerythreshold", defs.SQL.SlowQueryThreshold, "Queries taking longer than this duration are logged as slow, formatted as Golang duration (e.g. 500ms).")
	flagSet.String("storage.session.redis.address", defs.Session.Redis.Address, "Redis server address for session data (nonces, replay protection). "+
		"This can be a simple 'host:port' or a Redis connection URL with scheme, auth and other options. If not set, session data is kept in memory.")
	flagSet.String("storage.session.redis.username", defs.Session.Redis.Username, "Redis username. If set, it overrides the username in the connection URL.")
	flagSet.String("storage.session.redis.password", defs.Session.Redis.Password, "Redis password. If set, it overrides the password in the connection URL.")
	flagSet.Int("storage.session.redis.database", defs.Session.Redis.Database, "Redis database number.")
	return flagSet
}
