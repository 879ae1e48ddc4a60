// Package config resolves client construction parameters from explicit
// overrides and the environment, the way the teacher's core/client.go
// reads AIGO_DEFAULT_LLM_MODEL and its cmd/ entrypoints load a .env file
// via godotenv before falling back to the process environment.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rescrv/claudius/xerrors"
)

const (
	envAPIKey    = "ANTHROPIC_API_KEY"
	envAuthToken = "ANTHROPIC_AUTH_TOKEN"
	envBaseURL   = "ANTHROPIC_BASE_URL"
	envLogFile   = "ANTHROPIC_LOG_FILE"

	defaultBaseURL = "https://api.anthropic.com"
)

// Config is the resolved set of parameters needed to construct a Client.
type Config struct {
	APIKey  string
	BaseURL string
	LogFile string
}

// LoadDotEnv loads a .env file into the process environment if present.
// Missing files are not an error; this mirrors example/CLI entrypoints
// that call godotenv.Load() best-effort before reading configuration.
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// Resolve builds a Config from an explicit API key (highest precedence,
// empty means "not provided") and the environment. The API key is
// resolved from, in order: explicitAPIKey, ANTHROPIC_API_KEY,
// ANTHROPIC_AUTH_TOKEN. If none are set, Resolve returns an
// xerrors.Error of kind invalid_request.
func Resolve(explicitAPIKey string) (Config, error) {
	key := explicitAPIKey
	if key == "" {
		key = os.Getenv(envAPIKey)
	}
	if key == "" {
		key = os.Getenv(envAuthToken)
	}
	if key == "" {
		return Config{}, xerrors.InvalidRequest("no API key: set an explicit key or " + envAPIKey + "/" + envAuthToken)
	}

	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return Config{APIKey: key, BaseURL: baseURL, LogFile: os.Getenv(envLogFile)}, nil
}
