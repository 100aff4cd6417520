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

// Package http exposes the role table and access decisions over HTTP and
// provides the middleware that resolves and gates callers.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/reelgate/reelgate/internal/audit"
	"github.com/reelgate/reelgate/internal/gate"
	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/observability/metrics"
	"github.com/reelgate/reelgate/internal/observability/tracing"
	"github.com/reelgate/reelgate/internal/rbac"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	eval        *rbac.Evaluator
	provider    identity.Provider
	auditLogger audit.Logger
	access      *metrics.Access
	tracer      *tracing.Tracer
	sessions    *identity.Sessions
	cookieName  string
	serviceName string
	trustProxy  bool
	validate    *validator.Validate
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	AuditLogger audit.Logger
	Access      *metrics.Access
	Tracer      *tracing.Tracer
	// Sessions de-duplicates per-session reporting. Nil tracks up to
	// DefaultSessionLimit sessions for DefaultSessionTTL.
	Sessions    *identity.Sessions
	// CookieName is read when no Authorization header is present.
	CookieName  string
	ServiceName string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy  bool
}

// Session tracking defaults.
const (
	DefaultSessionLimit = 4096
	DefaultSessionTTL   = 30 * time.Minute
)

// NewHandler creates a new HTTP handler
func NewHandler(eval *rbac.Evaluator, provider identity.Provider, opts Options) *Handler {
	if opts.AuditLogger == nil {
		opts.AuditLogger = audit.NewSlogLogger(nil)
	}
	if opts.CookieName == "" {
		opts.CookieName = "__session"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "reelgate"
	}
	if opts.Sessions == nil {
		opts.Sessions = identity.NewSessions(eval.Table(), nil, DefaultSessionLimit, DefaultSessionTTL)
	}
	return &Handler{
		eval:        eval,
		provider:    provider,
		auditLogger: opts.AuditLogger,
		access:      opts.Access,
		tracer:      opts.Tracer,
		sessions:    opts.Sessions,
		cookieName:  opts.CookieName,
		serviceName: opts.ServiceName,
		trustProxy:  opts.TrustProxy,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

type gatedRoute struct {
	path       string
	requireAll bool
	required   []string
	handler    http.HandlerFunc
}

func (h *Handler) gatedRoutes() []gatedRoute {
	return []gatedRoute{
		{"/admin/overview", true, []string{rbac.PermDashboardAdmin}, h.AdminOverview},
		{"/moderation/queue-access", false, []string{rbac.PermContentModerate}, h.ModerationQueueAccess},
	}
}

// NewRouter creates a new HTTP router. It fails when a gated route names a
// permission the catalog does not know.
func NewRouter(h *Handler, rateLimiter *RateLimiter, requestTimeout time.Duration) (*chi.Mux, error) {
	gated := h.gatedRoutes()

	var errs []error
	catalog := h.eval.Table().Catalog()
	for _, route := range gated {
		if err := catalog.Validate(route.required...); err != nil {
			errs = append(errs, fmt.Errorf("route %s: %w", route.path, err))
		}
	}
	if err := catalog.Validate(gate.ReferencedPermissions()...); err != nil {
		errs = append(errs, fmt.Errorf("access summary: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	})

	r.Use(middleware.RequestID)
	r.Use(secureMiddleware.Handler)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.ResolveRole)

		r.Get("/roles", h.ListRoles)
		r.Get("/permissions", h.ListPermissions)
		r.Get("/me", h.Me)
		r.Post("/access/check", h.CheckAccess)

		for _, route := range gated {
			r.With(h.RequirePermissions(route.requireAll, route.required...)).Get(route.path, route.handler)
		}
	})

	return r, nil
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// ListRoles returns the role table ordered by level.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"roles": h.gateFor(r).ListRoles(),
	})
}

// ListPermissions returns the permission catalog and its groups.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	catalog := h.eval.Table().Catalog()
	respondJSON(w, http.StatusOK, map[string]any{
		"permissions": catalog.List(),
		"groups":      catalog.Groups(),
	})
}

// MeResponse describes the caller as the gate sees it.
type MeResponse struct {
	Subject       string      `json:"subject,omitempty"`
	State         string      `json:"state"`
	Authenticated bool        `json:"authenticated"`
	Role          rbac.Role   `json:"role"`
	ClaimStatus   string      `json:"claim_status"`
	Permissions   []string    `json:"permissions"`
	Access        gate.Access `json:"access"`
}

// Me returns the caller's resolved role, permissions and access summary.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	g := h.gateFor(r)
	res := g.Resolution()
	respondJSON(w, http.StatusOK, MeResponse{
		Subject:       res.Subject,
		State:         res.State.String(),
		Authenticated: res.Authenticated(),
		Role:          g.RoleInfo(),
		ClaimStatus:   res.Claim.Status.String(),
		Permissions:   g.Permissions(),
		Access:        g.Access(),
	})
}

// AccessCheckRequest asks whether the caller holds a set of permissions.
type AccessCheckRequest struct {
	Permissions []string `json:"permissions" validate:"required,max=64,dive,required,max=128"`
	RequireAll  bool     `json:"require_all"`
}

// AccessCheckResponse is the decision for an AccessCheckRequest. Unknown
// lists requested ids that are not in the catalog; they are never held.
type AccessCheckResponse struct {
	Allowed bool        `json:"allowed"`
	Role    rbac.RoleID `json:"role"`
	Unknown []string    `json:"unknown,omitempty"`
}

// CheckAccess evaluates an AccessCheckRequest against the caller's role.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req AccessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	g := h.gateFor(r)
	allowed := g.IsAllowed(req.Permissions, req.RequireAll)
	h.access.RecordDecision(r.Context(), string(g.CurrentRole()), routePattern(r), allowed)

	resp := AccessCheckResponse{Allowed: allowed, Role: g.CurrentRole()}
	catalog := h.eval.Table().Catalog()
	for _, id := range req.Permissions {
		if !catalog.Contains(id) {
			resp.Unknown = append(resp.Unknown, id)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// AdminOverview is the admin dashboard payload.
func (h *Handler) AdminOverview(w http.ResponseWriter, r *http.Request) {
	g := h.gateFor(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"role":        g.CurrentRole(),
		"roles":       len(g.ListRoles()),
		"permissions": len(g.ListPermissions()),
		"access":      g.Access(),
	})
}

// ModerationQueueAccess tells a moderator which queue actions are available.
func (h *Handler) ModerationQueueAccess(w http.ResponseWriter, r *http.Request) {
	g := h.gateFor(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"role":         g.CurrentRole(),
		"can_moderate": g.CheckPermission(rbac.PermContentModerate),
		"can_edit":     g.CheckPermission(rbac.PermContentWrite),
		"can_delete":   g.CheckPermission(rbac.PermContentDelete),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
