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

package clientapi

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/event"
)

// Publisher fans server-pushed Updates (spec §6) out to every IPC client
// currently subscribed, over an event.Feed: every Send reaches every
// channel currently subscribed. A server
// loop that accepts client connections (out of scope here, see
// clientapi's package doc) would Subscribe once per connected client and
// filter by UpdateKind against that client's SubscribeDetail.
type Publisher struct {
	feed event.Feed
}

// NewPublisher returns a ready-to-use Publisher. The zero value also works;
// this exists for symmetry with the rest of the tree's NewX constructors.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers ch to receive every Update sent from now on. Callers
// must drain ch promptly: a slow subscriber blocks the feed the same way a
// slow channel blocks any event.Feed.
func (p *Publisher) Subscribe(ch chan<- Update) event.Subscription {
	return p.feed.Subscribe(ch)
}

func (p *Publisher) send(kind UpdateKind, detail interface{}) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return
	}
	p.feed.Send(Update{Kind: kind, Detail: raw})
}

// Attachment publishes an "attachment" update (spec §6) whenever the
// attachment state machine changes state.
func (p *Publisher) Attachment(state string) {
	p.send(UpdateAttachment, AttachmentUpdateDetail{State: state})
}

// Network publishes a "network" update describing current connectivity
// and throughput.
func (p *Publisher) Network(started bool, bpsDown, bpsUp int64, peerCount int) {
	p.send(UpdateNetwork, NetworkUpdateDetail{Started: started, BpsDown: bpsDown, BpsUp: bpsUp, PeerCount: peerCount})
}

// Log publishes a "log" update, mirroring one operational log line to
// subscribed clients.
func (p *Publisher) Log(level, message string) {
	p.send(UpdateLog, LogUpdateDetail{Level: level, Message: message})
}

// Shutdown publishes a "shutdown" update; sent once, when the attachment
// loop tears down.
func (p *Publisher) Shutdown() {
	p.send(UpdateShutdown, struct{}{})
}
