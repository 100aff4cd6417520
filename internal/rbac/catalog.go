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
)

// Permission is an atomic, named capability.
type Permission struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Group is a named bundle of permission ids checked together.
type Group struct {
	Name        string   `yaml:"name" json:"name"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

// Catalog is the read-only registry of every permission the application knows.
type Catalog struct {
	permissions []Permission
	index       map[string]int
	groups      []Group
	groupIndex  map[string]int
}

// NewCatalog builds a catalog. Permission ids must be unique and non-empty,
// and every group member must be a catalog permission.
func NewCatalog(permissions []Permission, groups []Group) (*Catalog, error) {
	c := &Catalog{
		permissions: make([]Permission, 0, len(permissions)),
		index:       make(map[string]int, len(permissions)),
		groups:      make([]Group, 0, len(groups)),
		groupIndex:  make(map[string]int, len(groups)),
	}

	for _, p := range permissions {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: permission with empty id", ErrInvalidPolicy)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrInvalidPolicy, p.ID)
		}
		c.index[p.ID] = len(c.permissions)
		c.permissions = append(c.permissions, p)
	}

	for _, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: permission group with empty name", ErrInvalidPolicy)
		}
		if _, dup := c.groupIndex[g.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate permission group %q", ErrInvalidPolicy, g.Name)
		}
		if err := c.Validate(g.Permissions...); err != nil {
			return nil, fmt.Errorf("%w: group %q: %w", ErrInvalidPolicy, g.Name, err)
		}
		c.groupIndex[g.Name] = len(c.groups)
		c.groups = append(c.groups, Group{Name: g.Name, Permissions: slices.Clone(g.Permissions)})
	}

	return c, nil
}

// List returns every permission in catalog order.
func (c *Catalog) List() []Permission {
	return slices.Clone(c.permissions)
}

// IDs returns every permission id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.permissions))
	for i, p := range c.permissions {
		ids[i] = p.ID
	}
	return ids
}

// Lookup returns the permission metadata for id.
func (c *Catalog) Lookup(id string) (Permission, bool) {
	i, ok := c.index[id]
	if !ok {
		return Permission{}, false
	}
	return c.permissions[i], true
}

// Contains reports whether id is a catalog permission.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Validate returns ErrUnknownPermission for every id missing from the catalog.
// Access checks never call this; it is meant for wiring time, so that a typo
// in a gate requirement is caught before it silently denies everyone.
func (c *Catalog) Validate(ids ...string) error {
	var errs []error
	for _, id := range ids {
		if !c.Contains(id) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownPermission, id))
		}
	}
	return errors.Join(errs...)
}

// Group returns the permission ids of the named group.
func (c *Catalog) Group(name string) ([]string, bool) {
	i, ok := c.groupIndex[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(c.groups[i].Permissions), true
}

// Groups returns every permission group in declaration order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = Group{Name: g.Name, Permissions: slices.Clone(g.Permissions)}
	}
	return out
}
