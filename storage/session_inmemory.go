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
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/eko/gocache/store/go_cache/v4"
	gocacheclient "github.com/patrickmn/go-cache"
)

var _ SessionDatabase = (*InMemorySessionDatabase)(nil)

var sessionStorePruneInterval = 10 * time.Minute

// InMemorySessionDatabase is an in memory database that holds session data on a KV basis.
// Entries are pruned by the underlying go-cache janitor.
type InMemorySessionDatabase struct {
	client     *gocacheclient.Cache
	underlying *cache.Cache[[]byte]
}

// NewInMemorySessionDatabase creates a new in memory session database.
func NewInMemorySessionDatabase() *InMemorySessionDatabase {
	gocacheClient := gocacheclient.New(5*time.Minute, sessionStorePruneInterval)
	return &InMemorySessionDatabase{
		client:     gocacheClient,
		underlying: cache.New[[]byte](go_cache.NewGoCache(gocacheClient)),
	}
}

func (s *InMemorySessionDatabase) GetStore(ttl time.Duration, keys ...string) SessionStore {
	return inMemorySessionStore{
		db:       s,
		ttl:      ttl,
		prefixes: keys,
	}
}

func (s *InMemorySessionDatabase) Close() {
	s.client.Flush()
}

type inMemorySessionStore struct {
	db       *InMemorySessionDatabase
	ttl      time.Duration
	prefixes []string
}

func (i inMemorySessionStore) Delete(key string) error {
	return i.db.underlying.Delete(context.Background(), fullKey(i.prefixes, key))
}

func (i inMemorySessionStore) Exists(key string) bool {
	_, ok := i.db.client.Get(fullKey(i.prefixes, key))
	return ok
}

func (i inMemorySessionStore) Get(key string, target interface{}) error {
	value, ok := i.db.client.Get(fullKey(i.prefixes, key))
	if !ok {
		return ErrNotFound
	}
	data, ok := value.([]byte)
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, target)
}

func (i inMemorySessionStore) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return i.db.underlying.Set(context.Background(), fullKey(i.prefixes, key), data, store.WithExpiration(i.ttl))
}

func (i inMemorySessionStore) PutIfAbsent(key string, value interface{}) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	// Add is atomic: it fails if a non-expired item already exists
	if err := i.db.client.Add(fullKey(i.prefixes, key), data, i.ttl); err != nil {
		return false, nil
	}
	return true, nil
}
