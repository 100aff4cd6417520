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
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/reelgate/reelgate/internal/rbac"
)

// Sessions keeps one Resolver per credential, so that the side effects of
// resolving a session happen once per session instead of once per request.
// Sessions idle for longer than the TTL, or evicted by size, start over in
// the Unresolved state.
type Sessions struct {
	table  *rbac.Table
	logger *slog.Logger

	mu        sync.Mutex
	resolvers *lru.LRU[string, *Resolver]
}

// NewSessions tracks at most size sessions for ttl each.
func NewSessions(table *rbac.Table, log *slog.Logger, size int, ttl time.Duration) *Sessions {
	if size < 1 {
		size = 1
	}
	return &Sessions{
		table:     table,
		logger:    log,
		resolvers: lru.NewLRU[string, *Resolver](size, nil, ttl),
	}
}

// Observe resolves snap for the session behind credential. changed is true
// when the session was re-resolved, which is always the case for callers
// without a credential.
func (s *Sessions) Observe(credential string, snap Snapshot) (res Resolution, changed bool) {
	if credential == "" {
		return Resolve(s.table, snap), true
	}
	return s.resolver(digest(credential)).Update(snap)
}

// Forget drops the session behind credential, e.g. on sign-out.
func (s *Sessions) Forget(credential string) {
	s.resolvers.Remove(digest(credential))
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	return s.resolvers.Len()
}

func (s *Sessions) resolver(key string) *Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.resolvers.Get(key); ok {
		return r
	}
	r := NewResolver(s.table, s.logger)
	s.resolvers.Add(key, r)
	return r
}
