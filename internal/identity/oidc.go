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
	"crypto"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures verification of OpenID Connect ID tokens.
type OIDCConfig struct {
	IssuerURL       string
	ClientID        string
	MetadataClaim   string
	SkipIssuerCheck bool
}

// OIDCProvider verifies ID tokens from an OpenID Connect issuer.
type OIDCProvider struct {
	cfg      OIDCConfig
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider discovers the issuer and builds a verifier from its JWKS.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("%w: OIDC issuer URL is empty", ErrProviderDisabled)
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCProvider{
		cfg:      cfg,
		verifier: provider.Verifier(verifierConfig(cfg)),
	}, nil
}

// NewStaticOIDCProvider verifies ID tokens against fixed public keys,
// without discovery.
func NewStaticOIDCProvider(cfg OIDCConfig, keys ...crypto.PublicKey) *OIDCProvider {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCProvider{
		cfg:      cfg,
		verifier: oidc.NewVerifier(cfg.IssuerURL, keySet, verifierConfig(cfg)),
	}
}

func verifierConfig(cfg OIDCConfig) *oidc.Config {
	return &oidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.ClientID == "",
		SkipIssuerCheck:   cfg.SkipIssuerCheck,
	}
}

// Load verifies credential as an ID token.
func (p *OIDCProvider) Load(ctx context.Context, credential string) Snapshot {
	if credential == "" {
		return Anonymous()
	}

	idToken, err := p.verifier.Verify(ctx, credential)
	if err != nil {
		return Failed(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return Failed(fmt.Errorf("%w: failed to parse claims: %w", ErrInvalidToken, err))
	}

	return Authenticated(&Principal{
		Subject:   idToken.Subject,
		Metadata:  metadataFromClaims(claims, p.cfg.MetadataClaim),
		ExpiresAt: idToken.Expiry,
	})
}
