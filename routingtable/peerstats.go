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

package routingtable

import "time"

// LatencyStats is a small rolling histogram of RPC round-trip times.
// Only the statistics the sort orders and ping scheduler need are kept:
// count, running average, and most recent sample.
type LatencyStats struct {
	Count   uint64
	Average time.Duration
	Recent  time.Duration
}

func (l *LatencyStats) addSample(d time.Duration) {
	if l.Count == 0 {
		l.Average = d
	} else {
		// exponential moving average, weighting recent samples more --
		// matches the teacher's rolling-transfer-rate style smoothing.
		l.Average = l.Average + (d-l.Average)/time.Duration(min64(l.Count+1, 8))
	}
	l.Recent = d
	l.Count++
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// TransferStats tracks rolling up/down byte rates for a peer.
type TransferStats struct {
	UpBytesPerSec   float64
	DownBytesPerSec float64
	TotalUpBytes    uint64
	TotalDownBytes  uint64
}

// RPCStats tracks the counters the liveness state machine and ping
// scheduler consume.
type RPCStats struct {
	QuestionsSent          uint64
	QuestionsLost          uint64
	AnswersReceived        uint64
	FailedToSend           uint64
	RecentLostAnswers      uint64
	LastQuestionTs         time.Time
	LastSeenTs             time.Time
	FirstConsecutiveSeenTs time.Time
	FirstSeenTs            time.Time
}

// PeerStats bundles everything the routing table tracks about one peer,
// per spec §3 BucketEntry.PeerStats.
type PeerStats struct {
	TimeAdded time.Time
	Latency   LatencyStats
	Transfer  TransferStats
	RPC       RPCStats
}
