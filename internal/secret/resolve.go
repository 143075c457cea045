package secret

// file: internal/secret/resolve.go

import (
	"os"

	"github.com/cockroachdb/errors"
)

// EnvToken overrides any stored token.
const EnvToken = "UNITYBRIDGE_TOKEN"

// Source says where a resolved token came from.
type Source string

// Token sources in lookup order.
const (
	SourceEnv     Source = "env"
	SourceStorage Source = "storage"
	SourceConfig  Source = "config"
	SourceNone    Source = "none"
)

// Resolve finds the token to use: the environment first, then storage, then
// the configured value. No token at all is not an error.
func Resolve(storage Storage, configured string) (string, Source, error) {
	if tok := os.Getenv(EnvToken); tok != "" {
		return tok, SourceEnv, nil
	}
	if storage != nil {
		tok, err := storage.Load()
		if err != nil {
			return "", SourceNone, errors.Wrapf(err, "failed to load token from %s", storage.Describe())
		}
		if tok != "" {
			return tok, SourceStorage, nil
		}
	}
	if configured != "" {
		return configured, SourceConfig, nil
	}
	return "", SourceNone, nil
}
