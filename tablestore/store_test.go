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

package tablestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("records", "k1", []byte("v1")))
	v, ok, err := s.Get("records", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestStoreGetMissingKey(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("records", "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreNamespaceIsolatesTables(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("subkeys", "k1", []byte("subkey-value")))
	_, ok, err := s.Get("records", "k1")
	require.NoError(t, err)
	require.False(t, ok, "same key in a different table must not collide")
}

func TestStoreDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("records", "k1", []byte("v1")))
	require.NoError(t, s.Delete("records", "k1"))
	_, ok, err := s.Get("records", "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreIterateTable(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("records", "a", []byte("1")))
	require.NoError(t, s.Put("records", "b", []byte("2")))
	require.NoError(t, s.Put("subkeys", "a", []byte("other-table")))

	seen := map[string][]byte{}
	err = s.IterateTable("records", func(key string, value []byte) bool {
		seen[key] = value
		return true
	})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, seen)
}
