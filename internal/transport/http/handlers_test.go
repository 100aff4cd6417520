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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reelgate/reelgate/internal/audit"
	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) ofType(typ string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type failingProvider struct{}

func (failingProvider) Load(context.Context, string) identity.Snapshot {
	return identity.Failed(errors.New("upstream unavailable"))
}

type testServer struct {
	router http.Handler
	issuer *identity.Issuer
	audit  *recordingAudit
}

func newTestServer(t *testing.T, provider identity.Provider) *testServer {
	t.Helper()
	return newTestServerWith(t, provider, Options{})
}

func newTestServerWith(t *testing.T, provider identity.Provider, opts Options) *testServer {
	t.Helper()

	table, err := rbac.NewDefaultTable()
	require.NoError(t, err)

	tokenCfg := identity.TokenConfig{Secret: testSecret, MetadataClaim: identity.DefaultMetadataClaim}
	if provider == nil {
		provider, err = identity.NewTokenProvider(tokenCfg)
		require.NoError(t, err)
	}
	issuer, err := identity.NewIssuer(tokenCfg, time.Hour)
	require.NoError(t, err)

	rec := &recordingAudit{}
	opts.AuditLogger = rec
	h := NewHandler(rbac.NewEvaluator(table), provider, opts)

	rl := NewRateLimiter(1000, 1000, false)
	t.Cleanup(rl.Stop)

	router, err := NewRouter(h, rl, 5*time.Second)
	require.NoError(t, err)

	return &testServer{router: router, issuer: issuer, audit: rec}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := s.issuer.Issue("user_1", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

// TestPurpose: Validates that /me reflects the role carried by the session token.
// Scope: Unit Test
// Security: Role resolution from provider metadata
// Expected: Known claims map to that role, absent claims to user, no token to guest
// Test Case ID: HTTP-01
func TestMe_ResolvesRole(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name      string
		token     string
		wantRole  rbac.RoleID
		wantState string
		wantClaim string
	}{
		{"admin", s.token(t, "admin"), rbac.RoleAdmin, "resolved", "known"},
		{"moderator", s.token(t, "moderator"), rbac.RoleModerator, "resolved", "known"},
		{"no claim", s.token(t, ""), rbac.RoleUser, "resolved", "absent"},
		{"unknown claim", s.token(t, "superuser"), rbac.RoleUser, "resolved", "unknown"},
		{"anonymous", "", rbac.RoleGuest, "anonymous", "absent"},
		{"bad token", "not-a-jwt", rbac.RoleGuest, "anonymous", "absent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.get("/api/v1/me", tt.token)
			require.Equal(t, http.StatusOK, w.Code)

			me := decode[MeResponse](t, w)
			assert.Equal(t, tt.wantRole, me.Role.ID)
			assert.Equal(t, tt.wantState, me.State)
			assert.Equal(t, tt.wantClaim, me.ClaimStatus)
		})
	}
}

func TestMe_CookieCredential(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: s.token(t, "moderator")})
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	me := decode[MeResponse](t, w)
	assert.Equal(t, rbac.RoleModerator, me.Role.ID)
	assert.True(t, me.Access.CanModerateContent)
	assert.False(t, me.Access.CanAccessAdmin)
}

func TestMe_NonBearerAuthorizationIgnored(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.AddCookie(&http.Cookie{Name: "__session", Value: s.token(t, "admin")})
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rbac.RoleGuest, decode[MeResponse](t, w).Role.ID)
}

// TestPurpose: Validates that gated routes enforce their permission requirement.
// Scope: Unit Test
// Security: Server-side enforcement of dashboard and moderation access
// Expected: 200 when held, 403 for resolved callers without it, 401 for anonymous callers
// Test Case ID: HTTP-02
func TestGatedRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		role   string
		anon   bool
		status int
	}{
		{"admin overview as admin", "/api/v1/admin/overview", "admin", false, http.StatusOK},
		{"admin overview as moderator", "/api/v1/admin/overview", "moderator", false, http.StatusForbidden},
		{"admin overview as user", "/api/v1/admin/overview", "user", false, http.StatusForbidden},
		{"admin overview anonymous", "/api/v1/admin/overview", "", true, http.StatusUnauthorized},
		{"queue as moderator", "/api/v1/moderation/queue-access", "moderator", false, http.StatusOK},
		{"queue as admin", "/api/v1/moderation/queue-access", "admin", false, http.StatusOK},
		{"queue as guest claim", "/api/v1/moderation/queue-access", "guest", false, http.StatusForbidden},
		{"queue anonymous", "/api/v1/moderation/queue-access", "", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := ""
			if !tt.anon {
				token = s.token(t, tt.role)
			}
			w := s.get(tt.path, token)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// TestPurpose: Validates that a denied request leaves an audit trail.
// Scope: Unit Test
// Security: Denied privileged access must be observable
// Expected: One access_denied event naming subject, role and the route
// Test Case ID: HTTP-03
func TestGatedRoutes_DenyIsAudited(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/api/v1/admin/overview", s.token(t, "moderator"))
	require.Equal(t, http.StatusForbidden, w.Code)

	events := s.audit.ofType(audit.TypeAccessDenied)
	require.Len(t, events, 1)
	assert.Equal(t, "user_1", events[0].Subject)
	assert.Equal(t, "moderator", events[0].Role)
	assert.Equal(t, "/api/v1/admin/overview", events[0].Resource)
	assert.Equal(t, []string{rbac.PermDashboardAdmin}, events[0].Metadata["required"])
}

func TestModerationQueueAccess_Payload(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/api/v1/moderation/queue-access", s.token(t, "moderator"))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["can_moderate"])
	assert.Equal(t, true, body["can_edit"])
	assert.Equal(t, false, body["can_delete"])
}

// TestPurpose: Validates that an unrecognized role claim falls back to user and is audited once per session.
// Scope: Unit Test
// Security: Audit trail integrity, spoofed client address
// Expected: Repeated requests on one session yield one event carrying the connection address
// Test Case ID: HTTP-06
func TestUnrecognizedClaim_IsAudited(t *testing.T) {
	s := newTestServer(t, nil)

	token := s.token(t, "root")
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Forwarded-For", "198.51.100.4")
		w := s.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, rbac.RoleUser, decode[MeResponse](t, w).Role.ID)
	}

	// One event per session, not per request.
	events := s.audit.ofType(audit.TypeRoleClaimUnrecognized)
	require.Len(t, events, 1)
	assert.Equal(t, "root", events[0].Metadata["claim"])
	assert.Equal(t, "user", events[0].Role)
	// Forwarding headers are not trusted by default.
	assert.Equal(t, "192.0.2.1", events[0].IPAddress)

	other, err := s.issuer.Issue("user_2", "root")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, s.get("/api/v1/me", other).Code)
	assert.Len(t, s.audit.ofType(audit.TypeRoleClaimUnrecognized), 2)
}

// TestPurpose: Validates that a failing identity provider degrades to guest.
// Scope: Unit Test
// Security: Fail-closed on provider errors
// Expected: Caller is anonymous guest, privileged route is 401, failure is audited
// Test Case ID: HTTP-04
func TestProviderFailure_FailsClosed(t *testing.T) {
	s := newTestServer(t, failingProvider{})

	w := s.get("/api/v1/me", "anything")
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[MeResponse](t, w)
	assert.Equal(t, rbac.RoleGuest, me.Role.ID)
	assert.False(t, me.Authenticated)

	w = s.get("/api/v1/moderation/queue-access", "anything")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.NotEmpty(t, s.audit.ofType(audit.TypeIdentityProviderFailed))
}

func postCheck(s *testServer, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/access/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

// TestPurpose: Validates the access check endpoint against any/all semantics.
// Scope: Unit Test
// Security: Unknown permissions are never granted
// Expected: Decisions match the evaluator, unknown ids are reported and denied
// Test Case ID: HTTP-05
func TestCheckAccess(t *testing.T) {
	s := newTestServer(t, nil)
	userToken := s.token(t, "user")

	tests := []struct {
		name        string
		token       string
		body        string
		wantAllowed bool
		wantRole    rbac.RoleID
		wantUnknown []string
	}{
		{"any held", userToken, `{"permissions":["content:read","content:delete"]}`, true, rbac.RoleUser, nil},
		{"all not held", userToken, `{"permissions":["content:read","content:delete"],"require_all":true}`, false, rbac.RoleUser, nil},
		{"empty any", userToken, `{"permissions":[]}`, false, rbac.RoleUser, nil},
		{"empty all", userToken, `{"permissions":[],"require_all":true}`, true, rbac.RoleUser, nil},
		{"unknown id", userToken, `{"permissions":["reports:read"]}`, false, rbac.RoleUser, []string{"reports:read"}},
		{"guest", "", `{"permissions":["content:read"]}`, true, rbac.RoleGuest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheck(s, tt.token, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			resp := decode[AccessCheckResponse](t, w)
			assert.Equal(t, tt.wantAllowed, resp.Allowed)
			assert.Equal(t, tt.wantRole, resp.Role)
			assert.Equal(t, tt.wantUnknown, resp.Unknown)
		})
	}
}

func TestCheckAccess_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"permissions":[""]}`,
		`{"permissions":"content:read"}`,
	} {
		w := postCheck(s, "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestListRolesAndPermissions(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.get("/api/v1/roles", "")
	require.Equal(t, http.StatusOK, w.Code)
	roles := decode[map[string][]rbac.Role](t, w)["roles"]
	require.Len(t, roles, 4)
	assert.Equal(t, rbac.RoleGuest, roles[0].ID)
	assert.Equal(t, rbac.RoleAdmin, roles[3].ID)

	w = s.get("/api/v1/permissions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Permissions []rbac.Permission `json:"permissions"`
		Groups      []rbac.Group      `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body))
	assert.Len(t, body.Permissions, 12)
	assert.Len(t, body.Groups, 4)
}

func TestRequirePermissions_WithoutResolveRoleActsAsGuest(t *testing.T) {
	table, err := rbac.NewDefaultTable()
	require.NoError(t, err)
	h := NewHandler(rbac.NewEvaluator(table), failingProvider{}, Options{AuditLogger: &recordingAudit{}})

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	w := httptest.NewRecorder()
	h.RequireAny(rbac.PermContentRead)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.RequireAll(rbac.PermContentRead, rbac.PermContentWrite)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
