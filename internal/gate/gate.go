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

// Package gate turns a resolved caller role into the yes/no answers the UI
// layer renders against. It holds no authorization logic of its own; every
// answer comes from rbac.Evaluator.
package gate

import (
	"slices"

	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/rbac"
)

// Gate answers access questions for one resolved caller.
type Gate struct {
	eval *rbac.Evaluator
	res  identity.Resolution

	isAdmin     bool
	isModerator bool
	isUser      bool
}

// New creates a gate for res. The role predicates are computed once here.
func New(eval *rbac.Evaluator, res identity.Resolution) *Gate {
	return &Gate{
		eval:        eval,
		res:         res,
		isAdmin:     res.Role == rbac.RoleAdmin,
		isModerator: res.Role == rbac.RoleModerator || res.Role == rbac.RoleAdmin,
		isUser:      res.Role == rbac.RoleUser || res.Role == rbac.RoleModerator || res.Role == rbac.RoleAdmin,
	}
}

// Guest returns the gate of a caller without identity.
func Guest(eval *rbac.Evaluator) *Gate {
	return New(eval, identity.Resolve(eval.Table(), identity.Anonymous()))
}

// CurrentRole returns the caller's resolved role.
func (g *Gate) CurrentRole() rbac.RoleID {
	return g.res.Role
}

// Resolution returns how the role was obtained.
func (g *Gate) Resolution() identity.Resolution {
	return g.res
}

// CheckPermission reports whether the caller holds permission.
func (g *Gate) CheckPermission(permission string) bool {
	return g.eval.HasPermission(g.res.Role, permission)
}

// CheckAnyPermission reports whether the caller holds one of permissions.
func (g *Gate) CheckAnyPermission(permissions []string) bool {
	return g.eval.HasAnyPermission(g.res.Role, permissions)
}

// CheckAllPermissions reports whether the caller holds all of permissions.
func (g *Gate) CheckAllPermissions(permissions []string) bool {
	return g.eval.HasAllPermissions(g.res.Role, permissions)
}

// IsAllowed is the conditional-render predicate: all of required when
// requireAll, otherwise any of them.
func (g *Gate) IsAllowed(required []string, requireAll bool) bool {
	if requireAll {
		return g.CheckAllPermissions(required)
	}
	return g.CheckAnyPermission(required)
}

func (g *Gate) IsAdmin() bool             { return g.isAdmin }
func (g *Gate) IsModerator() bool         { return g.isModerator }
func (g *Gate) IsAuthenticatedUser() bool { return g.isUser }

// CanAccessRole reports whether the caller is at least as privileged as target.
func (g *Gate) CanAccessRole(target rbac.RoleID) bool {
	return g.eval.CanAccessRole(g.res.Role, target)
}

// ForRole reports whether the caller has exactly role.
func (g *Gate) ForRole(role rbac.RoleID) bool {
	return g.res.Role == role
}

// ForRoles reports whether the caller has one of roles.
func (g *Gate) ForRoles(roles ...rbac.RoleID) bool {
	return slices.Contains(roles, g.res.Role)
}

// AtLeast is CanAccessRole under the name used by render helpers.
func (g *Gate) AtLeast(minRole rbac.RoleID) bool {
	return g.CanAccessRole(minRole)
}

// Permissions returns every permission the caller holds.
func (g *Gate) Permissions() []string {
	return g.eval.RolePermissions(g.res.Role)
}

// RoleInfo returns the display metadata of the caller's role.
func (g *Gate) RoleInfo() rbac.Role {
	r, err := g.eval.Table().Role(g.res.Role)
	if err != nil {
		return rbac.Role{ID: g.res.Role}
	}
	return r
}

// Level returns the caller's role level.
func (g *Gate) Level() int {
	return g.eval.RoleLevel(g.res.Role)
}

// ListRoles returns the role table for role-management displays.
func (g *Gate) ListRoles() []rbac.Role {
	return g.eval.Table().Roles()
}

// ListPermissions returns the permission catalog.
func (g *Gate) ListPermissions() []rbac.Permission {
	return g.eval.Table().Catalog().List()
}
