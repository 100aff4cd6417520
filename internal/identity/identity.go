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

// Package identity derives the caller's role from what the external identity
// provider reports about the current session.
package identity

import (
	"errors"
	"time"

	"github.com/reelgate/reelgate/internal/rbac"
)

// Domain errors
var (
	ErrInvalidToken     = errors.New("invalid session token")
	ErrProviderDisabled = errors.New("identity provider not configured")
)

// RoleClaimKey is the metadata key holding the role claim.
const RoleClaimKey = "role"

// Principal is an authenticated identity as reported by the provider.
// Only Metadata[RoleClaimKey] is consulted for authorization.
type Principal struct {
	Subject  string
	Metadata map[string]any
	// ExpiresAt is when the credential stops being valid. Zero means the
	// provider did not report an expiry.
	ExpiresAt time.Time
}

// Expired reports whether the principal's credential has lapsed at now.
func (p *Principal) Expired(now time.Time) bool {
	return p != nil && !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Snapshot is the provider's view of a session at one point in time.
type Snapshot struct {
	// Loaded is false while the provider has not finished loading the session.
	Loaded    bool
	Principal *Principal
	// Err is set when the provider failed; it is treated as no principal.
	Err error
}

// Pending reports a session that has not finished loading.
func Pending() Snapshot {
	return Snapshot{}
}

// Anonymous reports a loaded session without an authenticated principal.
func Anonymous() Snapshot {
	return Snapshot{Loaded: true}
}

// Authenticated reports a loaded session for p.
func Authenticated(p *Principal) Snapshot {
	return Snapshot{Loaded: true, Principal: p}
}

// Failed reports a provider failure.
func Failed(err error) Snapshot {
	return Snapshot{Loaded: true, Err: err}
}

// ClaimStatus classifies the role claim found on a principal.
type ClaimStatus int

const (
	ClaimAbsent ClaimStatus = iota
	ClaimKnown
	ClaimUnknown
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimKnown:
		return "known"
	case ClaimUnknown:
		return "unknown"
	default:
		return "absent"
	}
}

// ParsedRole is the tagged result of validating a raw role claim.
type ParsedRole struct {
	Status ClaimStatus
	// Role is set only when Status is ClaimKnown.
	Role rbac.RoleID
	// Raw is the claim as received, for diagnostics.
	Raw any
}

// Known reports whether the claim named a role of the table.
func (p ParsedRole) Known() bool {
	return p.Status == ClaimKnown
}

// ParseRole validates a raw claim value against the closed role set.
// Matching is exact; non-string values are never accepted.
func ParseRole(table *rbac.Table, claim any) ParsedRole {
	if claim == nil {
		return ParsedRole{Status: ClaimAbsent}
	}
	s, ok := claim.(string)
	if !ok {
		return ParsedRole{Status: ClaimUnknown, Raw: claim}
	}
	if s == "" {
		return ParsedRole{Status: ClaimAbsent, Raw: claim}
	}
	if id := rbac.RoleID(s); table.IsKnown(id) {
		return ParsedRole{Status: ClaimKnown, Role: id, Raw: claim}
	}
	return ParsedRole{Status: ClaimUnknown, Raw: claim}
}

// State is the resolver state for a session.
type State int

const (
	StateUnresolved State = iota
	StateAnonymous
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of resolving a snapshot.
type Resolution struct {
	State State
	// Role is always one of the fixed roles; guest until resolved.
	Role  rbac.RoleID
	Claim ParsedRole
	// Subject of the principal, empty unless resolved.
	Subject string
}

// Authenticated reports whether the resolution came from a principal.
func (r Resolution) Authenticated() bool {
	return r.State == StateResolved
}

// Resolve maps a snapshot to a role:
//   - session still loading: Unresolved, guest
//   - provider error or no principal: Anonymous, guest
//   - principal with a known role claim: that role
//   - principal with an absent or unrecognized claim: user
func Resolve(table *rbac.Table, snap Snapshot) Resolution {
	if !snap.Loaded {
		return Resolution{State: StateUnresolved, Role: rbac.RoleGuest}
	}
	if snap.Err != nil || snap.Principal == nil {
		return Resolution{State: StateAnonymous, Role: rbac.RoleGuest}
	}

	claim := ParseRole(table, snap.Principal.Metadata[RoleClaimKey])
	role := rbac.RoleUser
	if claim.Known() {
		role = claim.Role
	}
	return Resolution{
		State:   StateResolved,
		Role:    role,
		Claim:   claim,
		Subject: snap.Principal.Subject,
	}
}
