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

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider loads the session identified by a credential (a bearer token or
// session cookie value). Implementations never return errors directly: a
// failure is reported through Snapshot.Err and resolves to anonymous.
type Provider interface {
	Load(ctx context.Context, credential string) Snapshot
}

// DefaultMetadataClaim is the token claim carrying the principal metadata map.
const DefaultMetadataClaim = "public_metadata"

// TokenConfig configures HS256 session tokens.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	// MetadataClaim names the claim holding the metadata map. Empty means
	// the top-level claims are the metadata.
	MetadataClaim string
	Leeway        time.Duration
}

// TokenProvider verifies HS256 session tokens issued by the identity provider.
type TokenProvider struct {
	cfg    TokenConfig
	parser *jwt.Parser
}

// NewTokenProvider creates a token provider.
func NewTokenProvider(cfg TokenConfig) (*TokenProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: token secret is empty", ErrProviderDisabled)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &TokenProvider{
		cfg:    cfg,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Load verifies credential and extracts the principal.
func (p *TokenProvider) Load(ctx context.Context, credential string) Snapshot {
	if credential == "" {
		return Anonymous()
	}

	claims := jwt.MapClaims{}
	_, err := p.parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return p.cfg.Secret, nil
	})
	if err != nil {
		return Failed(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Failed(fmt.Errorf("%w: missing subject", ErrInvalidToken))
	}

	principal := &Principal{
		Subject:  sub,
		Metadata: metadataFromClaims(claims, p.cfg.MetadataClaim),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		// Leeway extends acceptance past exp, so the principal does too.
		principal.ExpiresAt = exp.Add(p.cfg.Leeway)
	}
	return Authenticated(principal)
}

func metadataFromClaims(claims map[string]any, claim string) map[string]any {
	if claim == "" {
		return claims
	}
	md, ok := claims[claim].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return md
}
