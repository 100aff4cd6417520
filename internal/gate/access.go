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

package gate

import "github.com/reelgate/reelgate/internal/rbac"

// Access is the precomputed capability summary used to build navigation and
// dashboards.
type Access struct {
	CanManageUsers     bool                        `json:"can_manage_users"`
	CanModerateContent bool                        `json:"can_moderate_content"`
	CanDeleteContent   bool                        `json:"can_delete_content"`
	CanAccessAdmin     bool                        `json:"can_access_admin"`
	CanAccessModerator bool                        `json:"can_access_moderator"`
	IsAdmin            bool                        `json:"is_admin"`
	IsModerator        bool                        `json:"is_moderator"`
	IsUser             bool                        `json:"is_user"`
	Groups             map[string]rbac.GroupAccess `json:"groups"`
}

// Access summarizes what the caller may do.
func (g *Gate) Access() Access {
	groups := g.eval.Table().Catalog().Groups()
	summary := Access{
		CanManageUsers:     g.CheckPermission(rbac.PermUsersWrite),
		CanModerateContent: g.CheckPermission(rbac.PermContentModerate),
		CanDeleteContent:   g.CheckPermission(rbac.PermContentDelete),
		CanAccessAdmin:     g.CheckPermission(rbac.PermDashboardAdmin),
		CanAccessModerator: g.CheckPermission(rbac.PermDashboardModerator),
		IsAdmin:            g.isAdmin,
		IsModerator:        g.isModerator,
		IsUser:             g.isUser,
		Groups:             make(map[string]rbac.GroupAccess, len(groups)),
	}
	for _, grp := range groups {
		summary.Groups[grp.Name] = g.eval.GroupAccess(g.res.Role, grp.Name)
	}
	return summary
}

// ReferencedPermissions lists the permission ids Access depends on, so that
// wiring code can validate them against the catalog.
func ReferencedPermissions() []string {
	return []string{
		rbac.PermUsersWrite,
		rbac.PermContentModerate,
		rbac.PermContentDelete,
		rbac.PermDashboardAdmin,
		rbac.PermDashboardModerator,
	}
}
