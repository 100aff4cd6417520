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

package rbac

// Evaluator answers access questions against a Table.
//
// Every check fails closed: an unknown role holds no permissions and has
// level 0, and an unknown permission id is never granted. No method returns
// an error, so callers on render paths cannot be broken by bad input.
type Evaluator struct {
	table *Table
}

// NewEvaluator creates an evaluator over t.
func NewEvaluator(t *Table) *Evaluator {
	return &Evaluator{table: t}
}

// Table returns the underlying role table.
func (e *Evaluator) Table() *Table {
	return e.table
}

// HasPermission reports whether role holds permission.
func (e *Evaluator) HasPermission(role RoleID, permission string) bool {
	r, ok := e.table.roles[role]
	if !ok {
		return false
	}
	return r.HasPermission(permission)
}

// HasAnyPermission reports whether role holds at least one of permissions.
// An empty list is never satisfied.
func (e *Evaluator) HasAnyPermission(role RoleID, permissions []string) bool {
	for _, p := range permissions {
		if e.HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role holds every one of permissions.
// An empty list imposes no requirement and is always satisfied.
func (e *Evaluator) HasAllPermissions(role RoleID, permissions []string) bool {
	for _, p := range permissions {
		if !e.HasPermission(role, p) {
			return false
		}
	}
	return true
}

// RoleLevel returns the privilege level of role, 0 when unknown.
func (e *Evaluator) RoleLevel(role RoleID) int {
	if r, ok := e.table.roles[role]; ok {
		return r.Level
	}
	return 0
}

// CanAccessRole reports whether caller is at least as privileged as target.
func (e *Evaluator) CanAccessRole(caller, target RoleID) bool {
	return e.RoleLevel(caller) >= e.RoleLevel(target)
}

// RolePermissions returns the permission ids of role, empty when unknown.
func (e *Evaluator) RolePermissions(role RoleID) []string {
	r, ok := e.table.roles[role]
	if !ok {
		return []string{}
	}
	return r.clone().Permissions
}

// GroupAccess summarizes a role's standing against one permission group.
type GroupAccess struct {
	Any bool `json:"any"`
	All bool `json:"all"`
}

// GroupAccess evaluates role against the named permission group. An unknown
// group yields no access at all rather than the vacuous All.
func (e *Evaluator) GroupAccess(role RoleID, group string) GroupAccess {
	perms, ok := e.table.catalog.Group(group)
	if !ok {
		return GroupAccess{}
	}
	return GroupAccess{
		Any: e.HasAnyPermission(role, perms),
		All: e.HasAllPermissions(role, perms),
	}
}
