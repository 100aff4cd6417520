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

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Role is a named privilege tier. Values handed out by Table are copies.
type Role struct {
	ID          RoleID   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`

	set map[string]struct{}
}

// HasPermission checks if the role has a specific permission
func (r Role) HasPermission(permission string) bool {
	_, ok := r.set[permission]
	return ok
}

func (r Role) clone() Role {
	r.Permissions = slices.Clone(r.Permissions)
	return r
}

// Table maps the fixed role enumeration to levels and permission sets.
// It is built once at startup and never modified afterwards, so it is safe
// for concurrent use.
type Table struct {
	catalog *Catalog
	roles   map[RoleID]Role
	ordered []RoleID
}

// NewTable builds the role table from cfg. Every role of the enumeration must
// be defined exactly once and may only reference catalog permissions.
func NewTable(cfg Config) (*Table, error) {
	catalog, err := NewCatalog(cfg.Permissions, cfg.Groups)
	if err != nil {
		return nil, err
	}

	t := &Table{
		catalog: catalog,
		roles:   make(map[RoleID]Role, len(cfg.Roles)),
	}

	for _, rc := range cfg.Roles {
		if !rc.ID.valid() {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidPolicy, ErrUnknownRole, rc.ID)
		}
		if _, dup := t.roles[rc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidPolicy, rc.ID)
		}

		perms := rc.Permissions
		if rc.AllPermissions {
			perms = catalog.IDs()
		} else if err := catalog.Validate(perms...); err != nil {
			return nil, fmt.Errorf("%w: role %q: %w", ErrInvalidPolicy, rc.ID, err)
		}

		role := Role{
			ID:          rc.ID,
			Name:        rc.Name,
			Description: rc.Description,
			Level:       rc.Level,
			set:         make(map[string]struct{}, len(perms)),
		}
		for _, p := range perms {
			if _, seen := role.set[p]; seen {
				continue
			}
			role.set[p] = struct{}{}
			role.Permissions = append(role.Permissions, p)
		}

		t.roles[rc.ID] = role
		t.ordered = append(t.ordered, rc.ID)
	}

	var missing []error
	for _, id := range KnownRoleIDs() {
		if _, ok := t.roles[id]; !ok {
			missing = append(missing, fmt.Errorf("%w: role %q is not defined", ErrInvalidPolicy, id))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	if err := t.checkLevels(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(t.ordered, func(a, b RoleID) int {
		return t.roles[a].Level - t.roles[b].Level
	})

	return t, nil
}

// checkLevels requires levels to be distinct and to rise in enumeration order.
func (t *Table) checkLevels() error {
	ids := KnownRoleIDs()
	for i := 1; i < len(ids); i++ {
		lower, higher := t.roles[ids[i-1]], t.roles[ids[i]]
		if lower.Level >= higher.Level {
			return fmt.Errorf("%w: role %q (level %d) must rank above %q (level %d)",
				ErrInvalidPolicy, higher.ID, higher.Level, lower.ID, lower.Level)
		}
	}
	return nil
}

// Catalog returns the permission catalog the table was built with.
func (t *Table) Catalog() *Catalog {
	return t.catalog
}

// Role returns the role with the given id, or ErrUnknownRole.
func (t *Table) Role(id RoleID) (Role, error) {
	r, ok := t.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: %q", ErrUnknownRole, id)
	}
	return r.clone(), nil
}

// IsKnown reports whether id names a role of the table.
func (t *Table) IsKnown(id RoleID) bool {
	_, ok := t.roles[id]
	return ok
}

// Roles returns every role sorted by ascending level.
func (t *Table) Roles() []Role {
	out := make([]Role, 0, len(t.ordered))
	for _, id := range t.ordered {
		out = append(out, t.roles[id].clone())
	}
	return out
}

// RoleByName finds a role by its display name, ignoring case.
func (t *Table) RoleByName(name string) (Role, bool) {
	for _, id := range t.ordered {
		if r := t.roles[id]; strings.EqualFold(r.Name, name) {
			return r.clone(), true
		}
	}
	return Role{}, false
}

// CheckMonotonic verifies that every permission of a role is also held by all
// roles of strictly higher level.
func (t *Table) CheckMonotonic() error {
	var errs []error
	for _, lowID := range t.ordered {
		low := t.roles[lowID]
		for _, highID := range t.ordered {
			high := t.roles[highID]
			if high.Level <= low.Level {
				continue
			}
			for _, p := range low.Permissions {
				if !high.HasPermission(p) {
					errs = append(errs, fmt.Errorf("%w: %q holds %q but %q does not",
						ErrNotMonotonic, lowID, p, highID))
				}
			}
		}
	}
	return errors.Join(errs...)
}
