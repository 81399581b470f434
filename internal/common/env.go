package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envReferencePrefix marks config values that should be read from the environment, e.g. ".env:GMAIL_CREDENTIALS_PATH"
const envReferencePrefix = ".env:"

// LoadEnvFiles loads dotenv files that exist. Variables already present in the
// process environment are never overwritten.
func LoadEnvFiles(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			GetLogger().Warn().Err(err).Str("path", path).Msg("Failed to load env file")
		}
	}
}

// apiKeyEnvMapping maps logical key names to the environment variables that may hold them
var apiKeyEnvMapping = map[string][]string{
	"gemini_api_key":    {"EARNINGS_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic_api_key": {"EARNINGS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
}

// ResolveAPIKey resolves an API key from the environment, then the configured fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	if envVarNames, ok := apiKeyEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return ResolveEnvReference(fallback), nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ResolveEnvReference expands ".env:NAME" references and a leading "~".
// An unset reference resolves to the empty string.
func ResolveEnvReference(value string) string {
	if strings.HasPrefix(value, envReferencePrefix) {
		value = os.Getenv(strings.TrimPrefix(value, envReferencePrefix))
	}
	return ExpandHome(value)
}

// ExpandHome replaces a leading "~" with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
