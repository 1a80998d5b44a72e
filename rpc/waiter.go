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

package rpc

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// pendingQuestion is one outstanding Question awaiting its correlated
// Answer. Answers may arrive in any order relative to the questions
// that produced them (spec §5 ordering guarantees); correlation is by
// opaque op ID alone.
type pendingQuestion struct {
	opID    uint64
	answers chan Message
	sentAt  time.Time
}

// WaiterTable correlates outbound Questions with inbound Answers by op
// ID, and drops duplicate or unsolicited Answers (logging a warning)
// rather than delivering them anywhere.
type WaiterTable struct {
	mu      sync.Mutex
	log     log.Logger
	pending map[uint64]*pendingQuestion
}

func NewWaiterTable(logger log.Logger) *WaiterTable {
	if logger == nil {
		logger = log.New("component", "rpc")
	}
	return &WaiterTable{
		log:     logger,
		pending: make(map[uint64]*pendingQuestion),
	}
}

// Register records that opID now expects exactly one Answer and returns
// a channel that will receive it. Callers must call Forget(opID) once
// they stop waiting, whether they received an answer or timed out.
func (w *WaiterTable) Register(opID uint64) <-chan Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	pq := &pendingQuestion{opID: opID, answers: make(chan Message, 1), sentAt: time.Now()}
	w.pending[opID] = pq
	return pq.answers
}

// Forget removes opID's waiter, whether or not it was ever answered.
func (w *WaiterTable) Forget(opID uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, opID)
}

// Deliver routes an inbound Answer to its waiter. If no waiter is
// registered for msg.OpID, or the waiter already received an Answer
// (its buffered channel is full), the Answer is dropped with a warning:
// per spec §4.4, duplicate/unsolicited answers are silently discarded
// at the transport layer, never delivered twice.
func (w *WaiterTable) Deliver(msg Message) {
	w.mu.Lock()
	pq, ok := w.pending[msg.OpID]
	w.mu.Unlock()

	if !ok {
		w.log.Warn("dropping unsolicited answer", "op_id", msg.OpID)
		return
	}
	select {
	case pq.answers <- msg:
	default:
		w.log.Warn("dropping duplicate answer", "op_id", msg.OpID)
	}
}

// Wait blocks until msg.OpID's Answer arrives, timeout elapses, or ctx
// (via done) is cancelled, then always forgets the waiter.
func (w *WaiterTable) Wait(answers <-chan Message, opID uint64, timeout time.Duration, done <-chan struct{}) (Message, bool) {
	defer w.Forget(opID)
	select {
	case msg := <-answers:
		return msg, true
	case <-time.After(timeout):
		return Message{}, false
	case <-done:
		return Message{}, false
	}
}

// Len reports the number of outstanding waiters.
func (w *WaiterTable) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
