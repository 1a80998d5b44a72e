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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/protectedstore"
)

func TestLoadOrGenerateIdentityPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	c := crypto.New(1)

	ps1, err := protectedstore.Open(dir, true, false)
	require.NoError(t, err)
	first, err := loadOrGenerateIdentity(c, ps1)
	require.NoError(t, err)

	ps2, err := protectedstore.Open(dir, true, false)
	require.NoError(t, err)
	second, err := loadOrGenerateIdentity(c, ps2)
	require.NoError(t, err)

	require.Equal(t, first.Key, second.Key)
	require.Equal(t, first.Secret, second.Secret)
}

func TestEncodeDecodeIdentityRoundTrip(t *testing.T) {
	c := crypto.New(1)
	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)

	raw := encodeIdentity(kp)
	require.Len(t, raw, 4+32+32)

	decoded, err := decodeIdentity(raw)
	require.NoError(t, err)
	require.Equal(t, kp.Key, decoded.Key)
	require.Equal(t, kp.Secret.Value, decoded.Secret.Value)
}

func TestDecodeIdentityRejectsWrongLength(t *testing.T) {
	_, err := decodeIdentity([]byte{1, 2, 3})
	require.Error(t, err)
}
