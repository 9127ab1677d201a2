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

package resolver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/store/go_cache/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/vdr/log"
	gocacheclient "github.com/patrickmn/go-cache"
)

var _ KeyResolver = (*CachingKeyResolver)(nil)

// CachingKeyResolver caches the keys resolved by the underlying KeyResolver for a fixed duration.
// Failed resolutions are not cached.
type CachingKeyResolver struct {
	underlying KeyResolver
	cache      *cache.Cache[[]byte]
}

// NewCachingKeyResolver wraps the given KeyResolver with an in-memory cache.
func NewCachingKeyResolver(underlying KeyResolver, ttl time.Duration) *CachingKeyResolver {
	client := gocacheclient.New(ttl, 2*ttl)
	return &CachingKeyResolver{
		underlying: underlying,
		cache:      cache.New[[]byte](go_cache.NewGoCache(client)),
	}
}

// ResolveKeys returns the cached keys for the DID, or resolves and caches them.
func (c *CachingKeyResolver) ResolveKeys(ctx context.Context, id string) ([]jwk.Key, error) {
	data, err := c.cache.Get(ctx, id)
	if err == nil {
		set, err := jwk.Parse(data)
		if err == nil {
			return keysOf(set), nil
		}
		log.Logger().WithError(err).Warn("Unable to read cached keys, resolving again")
	}
	keys, err := c.underlying.ResolveKeys(ctx, id)
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	for _, key := range keys {
		_ = set.AddKey(key)
	}
	if data, err = json.Marshal(set); err == nil {
		_ = c.cache.Set(ctx, id, data)
	}
	return keys, nil
}

func keysOf(set jwk.Set) []jwk.Key {
	result := make([]jwk.Key, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, _ := set.Key(i)
		result = append(result, key)
	}
	return result
}
