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
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

// RoleConfig describes one role of the table.
type RoleConfig struct {
	ID          RoleID   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Level       int      `yaml:"level"`
	Permissions []string `yaml:"permissions"`
	// AllPermissions grants the whole catalog, including permissions added later.
	AllPermissions bool `yaml:"all_permissions"`
}

// Config is the complete, immutable input of a Table.
type Config struct {
	Permissions []Permission `yaml:"permissions"`
	Groups      []Group      `yaml:"groups"`
	Roles       []RoleConfig `yaml:"roles"`
}

// ParseConfig decodes a policy document. Unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return cfg, nil
}

// DefaultConfig returns the policy compiled into the binary.
// It panics if the embedded document does not parse; that is a build defect.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("rbac: embedded policy: %v", err))
	}
	return cfg
}

// NewDefaultTable builds the Table from the compiled-in policy.
func NewDefaultTable() (*Table, error) {
	return NewTable(DefaultConfig())
}
