package secret

// file: internal/secret/keyring.go

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"

	"github.com/dkoosis/unitybridge/internal/logging"
)

const (
	keyringService = "UnityBridge"
	keyringUser    = "BridgeAuthToken"
)

// KeyringStorage keeps the token in the OS keychain.
type KeyringStorage struct {
	logger logging.Logger
}

var _ Storage = (*KeyringStorage)(nil)

// NewKeyringStorage creates a keyring-backed storage.
func NewKeyringStorage(logger logging.Logger) *KeyringStorage {
	return &KeyringStorage{logger: logging.For(logger, "keyring_token_storage")}
}

// IsAvailable checks that the keyring service answers at all.
func (s *KeyringStorage) IsAvailable() bool {
	_, err := keyring.Get(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Warn("Keyring service is inaccessible.", "error", err)
		return false
	}
	return true
}

// Describe implements Storage.
func (s *KeyringStorage) Describe() string { return "os keyring (" + keyringService + ")" }

// Save implements Storage.
func (s *KeyringStorage) Save(token, label string) error {
	if token == "" {
		return errors.New("cannot save empty token to keyring")
	}
	now := time.Now().UTC()
	data := TokenData{Token: token, Label: label, CreatedAt: now, UpdatedAt: now}
	if prev, err := s.Data(); err == nil && prev != nil {
		data.CreatedAt = prev.CreatedAt
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode token data for secure storage")
	}
	if err := keyring.Set(keyringService, keyringUser, string(raw)); err != nil {
		s.logger.Error("keyring.Set operation failed.", "error", err)
		return errors.Wrap(err, "failed to save token to system keyring")
	}
	s.logger.Info("Token saved to system keyring.", "label", label)
	return nil
}

// Load implements Storage.
func (s *KeyringStorage) Load() (string, error) {
	data, err := s.Data()
	if err != nil || data == nil {
		return "", err
	}
	return data.Token, nil
}

// Data implements Storage. A corrupted entry is deleted.
func (s *KeyringStorage) Data() (*TokenData, error) {
	raw, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load token from system keyring")
	}
	var data TokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.logger.Error("Token data in keyring is corrupted, deleting it.", "error", err)
		_ = s.Delete()
		return nil, errors.Wrap(err, "failed to parse token data from secure storage")
	}
	return &data, nil
}

// Delete implements Storage.
func (s *KeyringStorage) Delete() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(err, "failed to delete token from system keyring")
	}
	return nil
}
