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

package apierr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyNotFoundMessage(t *testing.T) {
	err := KeyNotFound("VLD0:deadbeef")
	require.Equal(t, KindKeyNotFound, err.Kind)
	require.Contains(t, err.Error(), "VLD0:deadbeef")
}

func TestParseErrorUnwraps(t *testing.T) {
	err := ParseError("dial info", io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestInvalidArgumentMessage(t *testing.T) {
	err := InvalidArgument("set_value", "subkey", "-1")
	require.Contains(t, err.Error(), "set_value")
	require.Contains(t, err.Error(), "subkey")
}
