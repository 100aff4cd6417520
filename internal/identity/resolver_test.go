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

package identity_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/rbac"
	"github.com/stretchr/testify/assert"
)

func newResolver(t *testing.T) (*identity.Resolver, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return identity.NewResolver(newTable(t), log), &buf
}

// TestPurpose: Validates the session lifecycle: unresolved until loaded, resolved after, re-resolved on identity change.
// Scope: Unit Test
// Expected: State moves Unresolved -> Resolved(admin) -> Anonymous -> Resolved(user).
// Test Case ID: RES-02
func TestResolver_Lifecycle(t *testing.T) {
	r, _ := newResolver(t)

	assert.Equal(t, identity.StateUnresolved, r.State())
	assert.Equal(t, rbac.RoleGuest, r.Current().Role)

	assert.Equal(t, identity.StateUnresolved, r.Observe(identity.Pending()).State)

	res := r.Observe(identity.Authenticated(principal("alice", "admin")))
	assert.Equal(t, identity.StateResolved, res.State)
	assert.Equal(t, rbac.RoleAdmin, res.Role)

	// sign-out
	res = r.Observe(identity.Anonymous())
	assert.Equal(t, identity.StateAnonymous, res.State)
	assert.Equal(t, rbac.RoleGuest, res.Role)

	// sign-in as someone else
	res = r.Observe(identity.Authenticated(principal("bob", nil)))
	assert.Equal(t, rbac.RoleUser, res.Role)
	assert.Equal(t, "bob", r.Current().Subject)
}

// TestPurpose: Validates idempotence of resolution for an unchanged session.
// Scope: Unit Test
// Expected: Same value both times; the unrecognized-claim diagnostic is logged once.
// Test Case ID: RES-03
func TestResolver_Idempotent(t *testing.T) {
	r, buf := newResolver(t)
	snap := identity.Authenticated(principal("carol", "superuser"))

	first := r.Observe(snap)
	second := r.Observe(identity.Authenticated(principal("carol", "superuser")))

	assert.Equal(t, first, second)
	assert.Equal(t, rbac.RoleUser, second.Role)
	assert.Equal(t, 1, strings.Count(buf.String(), "unrecognized role claim"))
}

func TestResolver_RoleClaimChangeReresolves(t *testing.T) {
	r, _ := newResolver(t)

	assert.Equal(t, rbac.RoleUser, r.Observe(identity.Authenticated(principal("dave", "user"))).Role)
	assert.Equal(t, rbac.RoleModerator, r.Observe(identity.Authenticated(principal("dave", "moderator"))).Role)
}

func TestResolver_ProviderErrorIsAnonymous(t *testing.T) {
	r, buf := newResolver(t)

	res := r.Observe(identity.Failed(errors.New("identity backend timeout")))
	assert.Equal(t, identity.StateAnonymous, res.State)
	assert.Equal(t, rbac.RoleGuest, res.Role)
	assert.Contains(t, buf.String(), "identity backend timeout")
}

func TestResolver_Reset(t *testing.T) {
	r, _ := newResolver(t)
	r.Observe(identity.Authenticated(principal("erin", "admin")))

	r.Reset()
	assert.Equal(t, identity.StateUnresolved, r.State())
	assert.Equal(t, rbac.RoleGuest, r.Current().Role)

	assert.Equal(t, rbac.RoleAdmin, r.Observe(identity.Authenticated(principal("erin", "admin"))).Role)
}
