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

package protectedstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoadRemoveRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), true, false)
	require.NoError(t, err)
	require.False(t, s.insecure)

	require.NoError(t, s.SaveSecret("_test_key", []byte{2, 3, 4}))
	v, ok, err := s.LoadSecret("_test_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{2, 3, 4}, v)

	require.NoError(t, s.SaveSecret("_test_key", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	v, ok, err = s.LoadSecret("_test_key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, v)

	require.NoError(t, s.RemoveSecret("_test_key"))
	_, ok, err = s.LoadSecret("_test_key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RemoveSecret("_test_key")) // removing twice is not an error
}

func TestStoreLoadMissingSecret(t *testing.T) {
	s, err := Open(t.TempDir(), true, false)
	require.NoError(t, err)
	_, ok, err := s.LoadSecret("_test_broken")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreSecretsAreEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, true, false)
	require.NoError(t, err)

	secret := []byte("plainly-visible-if-unencrypted")
	require.NoError(t, s.SaveSecret("k", secret))

	raw, err := os.ReadFile(secretPath(dir, "k"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), string(secret))
}

func TestStoreAlwaysInsecureWritesPlaintext(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, true, true)
	require.NoError(t, err)
	require.True(t, s.insecure)

	secret := []byte("visible-in-plaintext-mode")
	require.NoError(t, s.SaveSecret("k", secret))

	raw, err := os.ReadFile(secretPath(dir, "k"))
	require.NoError(t, err)
	require.Equal(t, secret, raw)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, true, false)
	require.NoError(t, err)
	require.NoError(t, s1.SaveSecret("k", []byte("persisted")))

	s2, err := Open(dir, true, false)
	require.NoError(t, err)
	v, ok, err := s2.LoadSecret("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), v)
}
