// Copyright 2026 The Reelgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared upstream load once it is detached from
// the request that started it.
const DefaultLoadTimeout = 10 * time.Second

// CachedProvider memoizes authenticated snapshots per credential so that a
// session is verified once per TTL instead of on every request. Failures and
// anonymous snapshots are never cached, and an entry never outlives the
// credential's own expiry. Concurrent misses for the same credential share
// one upstream load.
type CachedProvider struct {
	next        Provider
	cache       *lru.LRU[string, Snapshot]
	group       singleflight.Group
	loadTimeout time.Duration
	now         func() time.Time
}

// NewCachedProvider wraps next with an LRU of at most size entries.
func NewCachedProvider(next Provider, size int, ttl time.Duration) *CachedProvider {
	if size < 1 {
		size = 1
	}
	return &CachedProvider{
		next:        next,
		cache:       lru.NewLRU[string, Snapshot](size, nil, ttl),
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
	}
}

// Load returns the cached snapshot for credential, loading it on a miss.
// A hit whose principal has expired counts as a miss.
func (c *CachedProvider) Load(ctx context.Context, credential string) Snapshot {
	if credential == "" {
		return c.next.Load(ctx, credential)
	}

	key := digest(credential)
	if snap, ok := c.cache.Get(key); ok {
		if !snap.Principal.Expired(c.now()) {
			return snap
		}
		c.cache.Remove(key)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Followers share this load, so it must not end with the first caller.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		snap := c.next.Load(loadCtx, credential)
		if c.cacheable(snap) {
			c.cache.Add(key, snap)
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Failed(ctx.Err())
	case res := <-ch:
		return res.Val.(Snapshot)
	}
}

func (c *CachedProvider) cacheable(snap Snapshot) bool {
	return snap.Loaded && snap.Err == nil && snap.Principal != nil && !snap.Principal.Expired(c.now())
}

// Len returns the number of cached sessions.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

func digest(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
