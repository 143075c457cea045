// Package secret stores the shared token that authenticates the bridge to
// the editor link (the NATS token, or any future transport credential).
package secret

// file: internal/secret/storage.go

import (
	"time"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// TokenData is what gets persisted for a token.
type TokenData struct {
	Token string `json:"token"`
	// Label says what the token is for, usually the broker URL.
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Storage persists a single token.
type Storage interface {
	// Save stores token, replacing any previous one.
	Save(token, label string) error
	// Load returns the stored token, or "" with a nil error when none is stored.
	Load() (string, error)
	// Delete removes the stored token. Deleting nothing is not an error.
	Delete() error
	// Data returns the full record, or nil when none is stored.
	Data() (*TokenData, error)
	// Describe names the backend for diagnostics.
	Describe() string
}

// NewStorage prefers the OS keyring and falls back to a token file at path.
func NewStorage(path string, logger logging.Logger) (Storage, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	secure := NewKeyringStorage(logger)
	if secure.IsAvailable() {
		logger.Debug("Using secure token storage (OS keyring).")
		return secure, nil
	}
	logger.Info("Secure token storage not available, falling back to file-based storage.", "path", path)
	return NewFileStorage(path, logger)
}
