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
	"fmt"
	"log/slog"
	"sync"

	"github.com/reelgate/reelgate/internal/observability/logger"
	"github.com/reelgate/reelgate/internal/rbac"
)

// Resolver tracks the role of one long-lived session. It re-resolves only
// when the underlying session changes, so observing the same session twice
// returns the same Resolution without repeating any side effect.
type Resolver struct {
	table  *rbac.Table
	logger *slog.Logger

	mu      sync.Mutex
	key     string
	current Resolution
}

// NewResolver creates a resolver in the Unresolved state.
func NewResolver(table *rbac.Table, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		table:   table,
		logger:  log.With(logger.Component("role_resolver")),
		current: Resolve(table, Pending()),
	}
}

// Observe feeds the latest provider snapshot and returns the current resolution.
func (r *Resolver) Observe(snap Snapshot) Resolution {
	res, _ := r.Update(snap)
	return res
}

// Update is Observe that also reports whether snap changed the session and
// was therefore re-resolved.
func (r *Resolver) Update(snap Snapshot) (Resolution, bool) {
	key := sessionKey(snap)

	r.mu.Lock()
	defer r.mu.Unlock()

	if key == r.key {
		return r.current, false
	}

	// Any change drops the previous role before the new one is computed.
	r.key = key
	r.current = Resolve(r.table, Pending())
	if !snap.Loaded {
		return r.current, true
	}

	r.current = Resolve(r.table, snap)
	switch {
	case snap.Err != nil:
		r.logger.Warn("identity provider failed; treating session as anonymous", logger.Error(snap.Err))
	case r.current.Claim.Status == ClaimUnknown:
		r.logger.Warn("unrecognized role claim; falling back to user",
			logger.Subject(r.current.Subject),
			slog.Any("claim", r.current.Claim.Raw),
		)
	}
	return r.current, true
}

// Current returns the last resolution.
func (r *Resolver) Current() Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// State returns the current resolver state.
func (r *Resolver) State() State {
	return r.Current().State
}

// Reset forgets the session, e.g. on sign-out.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = ""
	r.current = Resolve(r.table, Pending())
}

func sessionKey(snap Snapshot) string {
	switch {
	case !snap.Loaded:
		return ""
	case snap.Err != nil:
		return "error"
	case snap.Principal == nil:
		return "anonymous"
	}
	return fmt.Sprintf("principal|%s|%#v", snap.Principal.Subject, snap.Principal.Metadata[RoleClaimKey])
}
