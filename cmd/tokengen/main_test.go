package main

import (
	"testing"

	"github.com/reelgate/reelgate/internal/rbac"
	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")

	assert.NoError(t, run([]string{"-sub", "user_1", "-role", "moderator"}))
	assert.NoError(t, run([]string{"-role", ""}))
	assert.NoError(t, run([]string{"-role", "superuser", "-allow-unknown-role"}))
	assert.ErrorIs(t, run([]string{"-role", "superuser"}), rbac.ErrUnknownRole)
}

func TestRun_RequiresTokenMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "oidc")
	t.Setenv("AUTH_OIDC_ISSUER_URL", "https://issuer.example.com")

	assert.Error(t, run(nil))
}
