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

// Package routingtable implements the Kademlia-style bucket layout, the
// per-peer liveness state machine, peer statistics, bootstrap and the
// periodic grooming tasks described in spec §4.1.
package routingtable

import "time"

const (
	// NeverReachedPingCount is the consecutive-send-failure count at
	// which any entry is declared Dead.
	NeverReachedPingCount = 3

	// UnreliablePingSpanSecs bounds both "how long since last seen before
	// Dead" and "how long a reliable streak must hold before Reliable".
	UnreliablePingSpanSecs = 60

	// ReliablePingIntervalStartSecs/Mult/Max describe the exponential
	// backoff used to schedule pings to Reliable entries.
	ReliablePingIntervalStartSecs = 10
	ReliablePingIntervalMult      = 2.0
	ReliablePingIntervalMaxSecs  = 600

	// UnreliablePingIntervalSecs is the fixed ping cadence for Unreliable
	// entries.
	UnreliablePingIntervalSecs = 5

	// KeepalivePingIntervalSecs is the fixed ping cadence for our own
	// outbound relay, regardless of liveness state.
	KeepalivePingIntervalSecs = 20

	// RecentLostAnswersDeadThreshold: an entry never seen with at least
	// this many lost answers is declared Dead.
	RecentLostAnswersDeadThreshold = 3
)

func secs(n float64) time.Duration { return time.Duration(n * float64(time.Second)) }
