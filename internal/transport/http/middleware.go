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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reelgate/reelgate/internal/audit"
	"github.com/reelgate/reelgate/internal/gate"
	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/observability/logger"
	"github.com/reelgate/reelgate/internal/observability/tracing"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// ResolveRole loads the caller's session from the identity provider, resolves
// it to a role and stores the resulting gate in the request context. It never
// rejects a request; callers without a usable identity get the guest gate.
func (h *Handler) ResolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := h.tracer.Start(r.Context(), tracing.SpanResolveRole)

		snap := identity.Anonymous()
		credential := h.credential(r)
		if credential != "" {
			snap = h.provider.Load(ctx, credential)
		}
		res, changed := h.sessions.Observe(credential, snap)

		tracing.RecordResolution(span, res.State.String(), string(res.Role), res.Claim.Status.String(), snap.Err)
		span.End()

		h.access.RecordResolution(ctx, res.State.String(), res.Claim.Status.String(), time.Since(start))
		h.reportResolution(r, snap, res, changed)

		g := gate.New(h.eval, res)
		next.ServeHTTP(w, r.WithContext(WithGate(r.Context(), g)))
	})
}

// credential extracts the session credential, preferring the Authorization
// header over the session cookie.
func (h *Handler) credential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// reportResolution audits provider failures on every request. An unrecognized
// role claim is audited only when its session is first resolved; the session
// resolver logs both.
func (h *Handler) reportResolution(r *http.Request, snap identity.Snapshot, res identity.Resolution, changed bool) {
	ctx := r.Context()
	switch {
	case snap.Err != nil:
		slog.DebugContext(ctx, "identity provider failed; treating caller as guest",
			logger.RequestID(middleware.GetReqID(ctx)),
			logger.Error(snap.Err),
		)
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeIdentityProviderFailed,
			Role:      string(res.Role),
			Resource:  r.URL.Path,
			IPAddress: h.clientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"error": snap.Err.Error()},
		})
	case changed && res.Claim.Status == identity.ClaimUnknown:
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeRoleClaimUnrecognized,
			Subject:   res.Subject,
			Role:      string(res.Role),
			Resource:  r.URL.Path,
			IPAddress: h.clientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{"claim": res.Claim.Raw},
		})
	}
}

// RequirePermissions gates next on the caller holding all (requireAll) or
// any of permissions. Anonymous callers that fail the check get 401, resolved
// callers get 403 and an audit event.
func (h *Handler) RequirePermissions(requireAll bool, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := h.tracer.Start(r.Context(), tracing.SpanRequire)
			g := h.gateFor(r)
			allowed := g.IsAllowed(permissions, requireAll)
			tracing.RecordDecision(span, string(g.CurrentRole()), permissions, requireAll, allowed)
			span.End()
			h.access.RecordDecision(ctx, string(g.CurrentRole()), routePattern(r), allowed)

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			res := g.Resolution()
			if !res.Authenticated() {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			slog.InfoContext(ctx, "access denied",
				logger.RequestID(middleware.GetReqID(ctx)),
				logger.Subject(res.Subject),
				logger.Role(string(res.Role)),
				logger.Permissions(permissions),
				logger.RequireAll(requireAll),
			)
			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeAccessDenied,
				Subject:   res.Subject,
				Role:      string(res.Role),
				Resource:  r.URL.Path,
				IPAddress: h.clientIP(r),
				UserAgent: r.UserAgent(),
				Metadata: map[string]any{
					"required":    permissions,
					"require_all": requireAll,
				},
			})
			respondError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// RequireAll is RequirePermissions with requireAll set.
func (h *Handler) RequireAll(permissions ...string) func(http.Handler) http.Handler {
	return h.RequirePermissions(true, permissions...)
}

// RequireAny is RequirePermissions with requireAll unset.
func (h *Handler) RequireAny(permissions ...string) func(http.Handler) http.Handler {
	return h.RequirePermissions(false, permissions...)
}

// gateFor returns the request's gate, or the guest gate when ResolveRole
// did not run.
func (h *Handler) gateFor(r *http.Request) *gate.Gate {
	if g := GetGate(r.Context()); g != nil {
		return g
	}
	return gate.Guest(h.eval)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
