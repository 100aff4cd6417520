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

// Package rbac holds the compiled-in role and permission tables and the
// pure access checks evaluated against them.
package rbac

import "errors"

// Domain errors
var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrInvalidPolicy     = errors.New("invalid policy")
	ErrNotMonotonic      = errors.New("role permissions are not monotonic")
)

// RoleID identifies one of the fixed roles.
type RoleID string

// The closed set of roles. No other role can be defined.
const (
	RoleAdmin     RoleID = "admin"
	RoleModerator RoleID = "moderator"
	RoleUser      RoleID = "user"
	RoleGuest     RoleID = "guest"
)

// KnownRoleIDs lists the role enumeration in ascending privilege order.
func KnownRoleIDs() []RoleID {
	return []RoleID{RoleGuest, RoleUser, RoleModerator, RoleAdmin}
}

func (id RoleID) valid() bool {
	switch id {
	case RoleAdmin, RoleModerator, RoleUser, RoleGuest:
		return true
	}
	return false
}

// Permission identifiers, in <resource>:<action> form.
const (
	PermUsersRead   = "users:read"
	PermUsersWrite  = "users:write"
	PermUsersDelete = "users:delete"

	PermContentRead     = "content:read"
	PermContentWrite    = "content:write"
	PermContentDelete   = "content:delete"
	PermContentModerate = "content:moderate"

	PermSystemSettings = "system:settings"
	PermSystemLogs     = "system:logs"

	PermDashboardAdmin     = "dashboard:admin"
	PermDashboardModerator = "dashboard:moderator"
	PermDashboardUser      = "dashboard:user"
)

// Permission group names.
const (
	GroupUserManagement    = "user_management"
	GroupContentManagement = "content_management"
	GroupSystemManagement  = "system_management"
	GroupDashboardAccess   = "dashboard_access"
)
