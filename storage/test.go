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

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/stretchr/testify/require"
)

// SQLiteInMemoryConnectionString is a connection string for an in-memory SQLite database with foreign keys enabled.
// Every engine started with it shares the same database, use NewTestStorageEngine for an isolated one.
const SQLiteInMemoryConnectionString = "file::memory:?cache=shared&_pragma=foreign_keys(1)"

// NewTestStorageEngine creates a storage engine backed by an isolated in-memory SQLite database.
// The engine is started and shut down when the test completes.
func NewTestStorageEngine(t testing.TB) Engine {
	t.Helper()
	result := New().(*engine)
	result.config.SQL.ConnectionString = "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	require.NoError(t, result.Configure(core.TestServerConfig(core.ServerConfig{Datadir: t.TempDir()})))
	require.NoError(t, result.Start())
	t.Cleanup(func() {
		_ = result.Shutdown()
	})
	return result
}

// NewTestStorageEngineRedis creates a storage engine (not started) whose session database is backed by an in-process Redis server.
func NewTestStorageEngineRedis(t testing.TB) (Engine, *miniredis.Miniredis) {
	t.Helper()
	redis := miniredis.RunT(t)
	result := New().(*engine)
	result.config.SQL.ConnectionString = "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	result.config.Session.Redis.Address = redis.Addr()
	require.NoError(t, result.Configure(core.TestServerConfig(core.ServerConfig{Datadir: t.TempDir()})))
	t.Cleanup(func() {
		_ = result.Shutdown()
	})
	return result, redis
}
