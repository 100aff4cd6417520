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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints HS256 session tokens understood by TokenProvider. It stands in
// for the hosted identity provider in development and tests.
type Issuer struct {
	cfg TokenConfig
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an issuer for tokens valid for ttl.
func NewIssuer(cfg TokenConfig, ttl time.Duration) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: token secret is empty", ErrProviderDisabled)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{cfg: cfg, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject. An empty role omits the role claim.
func (i *Issuer) Issue(subject, role string) (string, error) {
	now := i.now()

	metadata := map[string]any{}
	if role != "" {
		metadata[RoleClaimKey] = role
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
	}
	if i.cfg.Issuer != "" {
		claims["iss"] = i.cfg.Issuer
	}
	if i.cfg.Audience != "" {
		claims["aud"] = i.cfg.Audience
	}
	if i.cfg.MetadataClaim == "" {
		for k, v := range metadata {
			claims[k] = v
		}
	} else {
		claims[i.cfg.MetadataClaim] = metadata
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
