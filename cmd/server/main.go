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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelgate/reelgate/internal/audit"
	"github.com/reelgate/reelgate/internal/config"
	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/observability/logger"
	"github.com/reelgate/reelgate/internal/observability/metrics"
	"github.com/reelgate/reelgate/internal/observability/tracing"
	"github.com/reelgate/reelgate/internal/rbac"
	transportHTTP "github.com/reelgate/reelgate/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.InitLogger(logger.Config{
		Level:          cfg.Log.Level,
		Format:         cfg.Log.Format,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Bridge:         cfg.Telemetry.Enabled,
	})

	// The role table is compiled in; refuse to serve a table that lets a
	// higher role hold less than a lower one.
	table, err := rbac.NewDefaultTable()
	if err != nil {
		log.Error("invalid role policy", logger.Error(err))
		os.Exit(1)
	}
	if err := table.CheckMonotonic(); err != nil {
		log.Error("role policy is not monotonic", logger.Error(err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "check-policy" {
		for _, role := range table.Roles() {
			fmt.Printf("%-10s level=%-3d permissions=%d\n", role.ID, role.Level, len(role.Permissions))
		}
		os.Exit(0)
	}

	log.Info("starting reelgate", slog.String("auth_mode", cfg.Auth.Mode))

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		log.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Telemetry.Enabled,
	}, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}
	defer meter.Shutdown(ctx)
	access, err := metrics.NewAccess(meter)
	if err != nil {
		log.Error("failed to register access metrics", logger.Error(err))
		os.Exit(1)
	}

	provider, err := newProvider(ctx, cfg.Auth)
	if err != nil {
		log.Error("failed to initialize identity provider", logger.Error(err))
		os.Exit(1)
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.Server.TrustProxy)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(rbac.NewEvaluator(table), provider, transportHTTP.Options{
		AuditLogger: audit.NewSlogLogger(log),
		Access:      access,
		Tracer:      tracer,
		Sessions:    identity.NewSessions(table, log, cfg.Auth.SessionLimit, cfg.Auth.SessionTTL),
		CookieName:  cfg.Auth.CookieName,
		ServiceName: cfg.Telemetry.ServiceName,
		TrustProxy:  cfg.Server.TrustProxy,
	})

	router, err := transportHTTP.NewRouter(handler, rateLimiter, cfg.Server.RequestTimeout)
	if err != nil {
		log.Error("failed to build router", logger.Error(err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", logger.Error(err))
	}

	log.Info("server stopped")
}

// newProvider builds the identity provider selected by cfg.Mode, wrapped in
// the snapshot cache when one is configured.
func newProvider(ctx context.Context, cfg config.AuthConfig) (identity.Provider, error) {
	var (
		provider identity.Provider
		err      error
	)

	switch cfg.Mode {
	case config.AuthModeOIDC:
		provider, err = identity.NewOIDCProvider(ctx, identity.OIDCConfig{
			IssuerURL:     cfg.OIDCIssuerURL,
			ClientID:      cfg.OIDCClientID,
			MetadataClaim: cfg.MetadataClaim,
		})
	default:
		provider, err = identity.NewTokenProvider(identity.TokenConfig{
			Secret:        []byte(cfg.TokenSecret),
			Issuer:        cfg.TokenIssuer,
			Audience:      cfg.TokenAudience,
			MetadataClaim: cfg.MetadataClaim,
			Leeway:        cfg.Leeway,
		})
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		provider = identity.NewCachedProvider(provider, cfg.CacheSize, cfg.CacheTTL)
	}
	return provider, nil
}
