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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/nuts-foundation/ebsi-issuer/storage/log"
	"github.com/redis/go-redis/v9"
)

var _ SessionDatabase = (*redisSessionDatabase)(nil)

// redisKeyPrefix is prepended to every key, so the issuer can share a Redis database with other applications.
const redisKeyPrefix = "ebsi-issuer"

type redisSessionDatabase struct {
	client     redis.UniversalClient
	underlying *cache.Cache[string]
}

// NewRedisSessionDatabase creates a SessionDatabase backed by the given Redis client.
func NewRedisSessionDatabase(client redis.UniversalClient) SessionDatabase {
	return redisSessionDatabase{
		client:     client,
		underlying: cache.New[string](redis_store.NewRedis(client)),
	}
}

func createRedisClient(ctx context.Context, config RedisConfig) (redis.UniversalClient, error) {
	opts, err := redisOptions(config)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to Redis database (address=%s): %w", opts.Addr, err)
	}
	log.Logger().Infof("Connected to Redis database (address=%s, db=%d)", opts.Addr, opts.DB)
	return client, nil
}

func redisOptions(config RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	var err error
	if hasScheme(config.Address) {
		opts, err = redis.ParseURL(config.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis address: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: config.Address}
	}
	if config.Username != "" {
		opts.Username = config.Username
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.Database != 0 {
		opts.DB = config.Database
	}
	return opts, nil
}

func hasScheme(address string) bool {
	return strings.Contains(address, "://")
}

func (s redisSessionDatabase) GetStore(ttl time.Duration, keys ...string) SessionStore {
	return redisSessionStore{
		db:       s,
		ttl:      ttl,
		prefixes: append([]string{redisKeyPrefix}, keys...),
	}
}

func (s redisSessionDatabase) Close() {
	if err := s.client.Close(); err != nil {
		log.Logger().WithError(err).Error("Failed to close Redis client")
	}
}

type redisSessionStore struct {
	db       redisSessionDatabase
	ttl      time.Duration
	prefixes []string
}

func (s redisSessionStore) Delete(key string) error {
	return s.db.underlying.Delete(context.Background(), fullKey(s.prefixes, key))
}

func (s redisSessionStore) Exists(key string) bool {
	count, err := s.db.client.Exists(context.Background(), fullKey(s.prefixes, key)).Result()
	if err != nil {
		log.Logger().WithError(err).Warn("Unable to check existence of session key in Redis")
		return false
	}
	return count > 0
}

func (s redisSessionStore) Get(key string, target interface{}) error {
	data, err := s.db.client.Get(context.Background(), fullKey(s.prefixes, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (s redisSessionStore) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.underlying.Set(context.Background(), fullKey(s.prefixes, key), string(data), store.WithExpiration(s.ttl))
}

func (s redisSessionStore) PutIfAbsent(key string, value interface{}) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return s.db.client.SetNX(context.Background(), fullKey(s.prefixes, key), data, s.ttl).Result()
}
