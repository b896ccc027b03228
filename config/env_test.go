package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("ARBBOT_TEST_VAR", "set")
	assert.Equal(t, "set", GetEnvWithDefault("ARBBOT_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", GetEnvWithDefault("ARBBOT_TEST_VAR_UNSET", "fallback"))
}

func TestGetRequiredEnv(t *testing.T) {
	t.Setenv("ARBBOT_TEST_REQUIRED", "value")

	value, err := GetRequiredEnv("ARBBOT_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	_, err = GetRequiredEnv("ARBBOT_TEST_REQUIRED_UNSET")
	assert.ErrorContains(t, err, "ARBBOT_TEST_REQUIRED_UNSET")
}

func TestLoadSecureConfig(t *testing.T) {
	t.Setenv(EnvPrivateKey, "abc123")
	t.Setenv(EnvOneInchKey, "oneinch-key")
	t.Setenv(EnvBundlerAPIKey, "bundler-key")

	secrets := LoadSecureConfig()
	assert.Equal(t, "abc123", secrets.PrivateKey)
	assert.Equal(t, "oneinch-key", secrets.OneInchAPIKey)
	assert.Equal(t, "bundler-key", secrets.BundlerAPIKey)
}

func TestLoadSecureConfigAllowsMissingKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")

	// Read-only commands run without a signing key.
	secrets := LoadSecureConfig()
	assert.Empty(t, secrets.PrivateKey)
}
