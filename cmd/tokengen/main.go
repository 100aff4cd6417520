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

// Command tokengen mints signed session tokens for local development. The
// tokens carry a role claim and are accepted by the server in token mode.
//
//	AUTH_TOKEN_SECRET=... tokengen -sub user_42 -role moderator
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/reelgate/reelgate/internal/config"
	"github.com/reelgate/reelgate/internal/identity"
	"github.com/reelgate/reelgate/internal/rbac"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	subject := fs.String("sub", "dev-user", "subject of the token")
	role := fs.String("role", string(rbac.RoleUser), "role claim; empty omits the claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	allowUnknown := fs.Bool("allow-unknown-role", false, "mint tokens with a role outside the table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.Mode != config.AuthModeToken {
		return fmt.Errorf("AUTH_MODE is %q; tokens are only accepted in %q mode", cfg.Auth.Mode, config.AuthModeToken)
	}

	if *role != "" && !*allowUnknown {
		table, err := rbac.NewDefaultTable()
		if err != nil {
			return err
		}
		if !table.IsKnown(rbac.RoleID(*role)) {
			return fmt.Errorf("%w: %q", rbac.ErrUnknownRole, *role)
		}
	}

	issuer, err := identity.NewIssuer(identity.TokenConfig{
		Secret:        []byte(cfg.Auth.TokenSecret),
		Issuer:        cfg.Auth.TokenIssuer,
		Audience:      cfg.Auth.TokenAudience,
		MetadataClaim: cfg.Auth.MetadataClaim,
	}, *ttl)
	if err != nil {
		return err
	}

	token, err := issuer.Issue(*subject, *role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
