package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveExplicitKeyTakesPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg, err := Resolve("explicit-key")
	require.NoError(t, err)
	require.Equal(t, "explicit-key", cfg.APIKey)
}

func TestResolveFallsBackToAPIKeyEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")
	cfg, err := Resolve("")
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.APIKey)
}

func TestResolveFallsBackToAuthTokenEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "auth-token")
	cfg, err := Resolve("")
	require.NoError(t, err)
	require.Equal(t, "auth-token", cfg.APIKey)
}

func TestResolveFailsWithNoKeyAnywhere(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "")
	_, err := Resolve("")
	require.Error(t, err)
}

func TestResolveDefaultsBaseURL(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "k")
	t.Setenv("ANTHROPIC_BASE_URL", "")
	cfg, err := Resolve("")
	require.NoError(t, err)
	require.Equal(t, "https://api.anthropic.com", cfg.BaseURL)
}
