package secret

// file: internal/secret/file.go

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// FileStorage keeps the token in a 0600 JSON file.
type FileStorage struct {
	path   string
	logger logging.Logger
	mu     sync.RWMutex
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates the token directory if needed.
func NewFileStorage(path string, logger logging.Logger) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("token file path is empty")
	}
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create token directory")
	}
	return &FileStorage{path: path, logger: logger.WithField("component", "file_token_storage")}, nil
}

// Describe implements Storage.
func (s *FileStorage) Describe() string { return "file " + s.path }

// Save implements Storage.
func (s *FileStorage) Save(token, label string) error {
	if token == "" {
		return errors.New("cannot save empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	data := TokenData{Token: token, Label: label, CreatedAt: now, UpdatedAt: now}
	if prev, err := s.read(); err == nil && prev != nil {
		data.CreatedAt = prev.CreatedAt
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal token data")
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	s.logger.Debug("Saved token to file.", "path", s.path)
	return nil
}

// Load implements Storage.
func (s *FileStorage) Load() (string, error) {
	data, err := s.Data()
	if err != nil || data == nil {
		return "", err
	}
	return data.Token, nil
}

// Data implements Storage.
func (s *FileStorage) Data() (*TokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read()
}

func (s *FileStorage) read() (*TokenData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read token file")
	}
	var data TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "failed to parse token data")
	}
	return &data, nil
}

// Delete implements Storage.
func (s *FileStorage) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete token file")
	}
	return nil
}
