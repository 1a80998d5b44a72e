// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

// Package protectedstore is the default ProtectedStore collaborator (spec
// §1/§6): secret key material (route secrets, node ID secrets) never lands
// in the table store's content blobs, only here, under its own directory
// and its own at-rest encryption.
package protectedstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ethereum/go-ethereum/log"
)

const masterKeyFilename = ".master_key"

// Store is a file-per-secret ProtectedStore. Each secret file is
// XChaCha20-Poly1305-sealed under a locally generated master key (spec
// §6 `stores.allow_insecure_fallback`/`always_use_insecure_storage`); if
// `always_use_insecure_storage` is set, or the master key cannot be
// created/read and `allow_insecure_fallback` permits it, secrets are
// written in the clear instead — logged loudly either way.
type Store struct {
	dir      string
	log      log.Logger
	insecure bool
	masterKey []byte // nil when insecure
}

// Open opens (creating if absent) the protected-store directory at dir.
func Open(dir string, allowInsecureFallback, alwaysUseInsecureStorage bool) (*Store, error) {
	logger := log.New("component", "protectedstore")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("protectedstore: creating directory: %w", err)
	}

	s := &Store{dir: dir, log: logger}
	if alwaysUseInsecureStorage {
		s.insecure = true
		logger.Warn("protected store forced to insecure (plaintext) storage by configuration")
		return s, nil
	}

	key, err := loadOrCreateMasterKey(dir)
	if err != nil {
		if !allowInsecureFallback {
			return nil, fmt.Errorf("protectedstore: master key unavailable and insecure fallback disabled: %w", err)
		}
		logger.Warn("protected store falling back to insecure (plaintext) storage", "err", err)
		s.insecure = true
		return s, nil
	}
	s.masterKey = key
	return s, nil
}

func loadOrCreateMasterKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, masterKeyFilename)
	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := hex.DecodeString(string(data))
		if decodeErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("protectedstore: master key file is corrupt")
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, err
	}
	return key, nil
}

func secretPath(dir, label string) string {
	return filepath.Join(dir, "secret_"+hex.EncodeToString([]byte(label))+".bin")
}

// SaveSecret encrypts (unless running insecure) and writes secret under
// label, overwriting any prior value.
func (s *Store) SaveSecret(label string, secret []byte) error {
	payload := secret
	if !s.insecure {
		aead, err := chacha20poly1305.NewX(s.masterKey)
		if err != nil {
			return err
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return err
		}
		payload = aead.Seal(nonce, nonce, secret, []byte(label))
	}
	return writeFileAtomic(secretPath(s.dir, label), payload, 0600)
}

// LoadSecret reads and decrypts label's secret; ok is false (with a nil
// error) if no secret is stored under label.
func (s *Store) LoadSecret(label string) ([]byte, bool, error) {
	data, err := os.ReadFile(secretPath(s.dir, label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if s.insecure {
		return data, true, nil
	}
	aead, err := chacha20poly1305.NewX(s.masterKey)
	if err != nil {
		return nil, false, err
	}
	if len(data) < aead.NonceSize() {
		return nil, false, errors.New("protectedstore: secret file truncated")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(label))
	if err != nil {
		return nil, false, fmt.Errorf("protectedstore: decrypting secret %q: %w", label, err)
	}
	return plain, true, nil
}

// RemoveSecret deletes label's secret file, if present.
func (s *Store) RemoveSecret(label string) error {
	err := os.Remove(secretPath(s.dir, label))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// writeFileAtomic writes data to a temp file in path's directory and
// renames it into place, so a crash mid-write can never leave a
// half-written secret file behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
