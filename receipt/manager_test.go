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

package receipt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerDeliverBeforeDeadline(t *testing.T) {
	m := NewManager()
	nonce := []byte("nonce-1")

	var result *bool
	m.Watch(nonce, time.Now().Add(time.Minute), func(ok bool) {
		v := ok
		result = &v
	})
	require.Equal(t, 1, m.Len())

	require.True(t, m.Deliver(nonce))
	require.NotNil(t, result)
	require.True(t, *result)
	require.Equal(t, 0, m.Len())
}

func TestManagerExpiresOnTick(t *testing.T) {
	m := NewManager()
	nonce := []byte("nonce-2")
	now := time.Now()

	var result *bool
	m.Watch(nonce, now.Add(time.Second), func(ok bool) {
		v := ok
		result = &v
	})

	require.Equal(t, 0, m.Tick(now)) // deadline not yet passed
	require.Equal(t, 1, m.Tick(now.Add(2*time.Second)))
	require.NotNil(t, result)
	require.False(t, *result)
}

func TestManagerDeliverUnknownNonce(t *testing.T) {
	m := NewManager()
	require.False(t, m.Deliver([]byte("never-watched")))
}

func TestManagerDeliverOnlyFiresOnce(t *testing.T) {
	m := NewManager()
	nonce := []byte("nonce-3")
	calls := 0
	m.Watch(nonce, time.Now().Add(time.Minute), func(ok bool) { calls++ })

	require.True(t, m.Deliver(nonce))
	require.False(t, m.Deliver(nonce)) // already consumed
	require.Equal(t, 1, calls)
}
