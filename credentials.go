package filelib

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Credential is the resolved (api_key, api_secret) pair. Immutable once
// built; never logged or rendered by String()/Error() helpers elsewhere.
type Credential struct {
	APIKey    string
	APISecret string
}

// NewCredential bypasses resolution entirely for callers that already hold
// a key/secret pair.
func NewCredential(apiKey, apiSecret string) Credential {
	return Credential{APIKey: apiKey, APISecret: apiSecret}
}

// ResolveCredential implements §4.A: source is "file" (path required) or
// "env" (FILELIB_API_KEY / FILELIB_API_SECRET).
func ResolveCredential(source, path string) (Credential, error) {
	switch source {
	case SourceFile:
		return resolveFromFile(path)
	case SourceEnv:
		return resolveFromEnv()
	default:
		return Credential{}, fmt.Errorf("%w: %q", ErrUnsupportedCredentialsSource, source)
	}
}

func resolveFromFile(path string) (Credential, error) {
	abs, err := expandAndAbs(path)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s", ErrCredentialsFileDoesNotExist, path)
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return Credential{}, fmt.Errorf("%w: %s", ErrCredentialsFileDoesNotExist, abs)
	}

	cfg, err := ini.Load(abs)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s: %v", ErrCredentialsFileDoesNotExist, abs, err)
	}
	if !cfg.HasSection(CredentialsFileSection) {
		return Credential{}, fmt.Errorf("%w: %s", ErrMissingCredentialSection, CredentialsFileSection)
	}
	section := cfg.Section(CredentialsFileSection)
	apiKey := section.Key("api_key").String()
	apiSecret := section.Key("api_secret").String()
	if apiKey == "" || apiSecret == "" {
		return Credential{}, fmt.Errorf("%w: api_key/api_secret", ErrCredentialSectionKeyMissing)
	}
	return Credential{APIKey: apiKey, APISecret: apiSecret}, nil
}

func resolveFromEnv() (Credential, error) {
	apiKey := os.Getenv(EnvAPIKey)
	apiSecret := os.Getenv(EnvAPISecret)
	if apiKey == "" || apiSecret == "" {
		return Credential{}, fmt.Errorf("%w", ErrCredEnvKeyValueMissing)
	}
	return Credential{APIKey: apiKey, APISecret: apiSecret}, nil
}

func expandAndAbs(path string) (string, error) {
	expanded := path
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		expanded = filepath.Join(home, path[1:])
	}
	return filepath.Abs(expanded)
}
