package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvPrivateKey    = "ARBBOT_PRIVATE_KEY"
	EnvOneInchKey    = "ONEINCH_API_KEY"
	EnvBundlerAPIKey = "BUNDLER_API_KEY"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() error {
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv gets an environment variable or fails if it is unset
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// SecureConfig holds secrets that never enter the JSON config file.
type SecureConfig struct {
	PrivateKey    string
	OneInchAPIKey string
	BundlerAPIKey string
}

// LoadSecureConfig reads secrets from the environment. The private key
// may be absent for read-only commands; anything that signs checks for
// it explicitly.
func LoadSecureConfig() *SecureConfig {
	return &SecureConfig{
		PrivateKey:    os.Getenv(EnvPrivateKey),
		OneInchAPIKey: os.Getenv(EnvOneInchKey),
		BundlerAPIKey: os.Getenv(EnvBundlerAPIKey),
	}
}
