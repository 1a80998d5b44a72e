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

// Package rpc implements request/response framing, correlation,
// destination resolution, and fanout for every control message (spec
// §4.4).
package rpc

// MessageKind discriminates the three message shapes: a Question expects
// a matched Answer, a Statement is fire-and-forget, an Answer correlates
// back to a prior Question by operation ID.
type MessageKind uint8

const (
	MessageQuestion MessageKind = iota
	MessageStatement
	MessageAnswer
)

// OperationKind names the specific operation carried by a message detail.
type OperationKind uint8

const (
	OpStatusQ OperationKind = iota
	OpStatusA
	OpFindNodeQ
	OpFindNodeA
	OpAppCallQ
	OpAppCallA
	OpGetValueQ
	OpGetValueA
	OpSetValueQ
	OpSetValueA
	OpWatchValueQ
	OpWatchValueA
	OpAppMessage
	OpSignal
	OpValueChanged
	OpReturnReceipt
	OpSupplyBlockQ
	OpSupplyBlockA
	OpFindBlockQ
	OpFindBlockA
	OpStartTunnelQ
	OpStartTunnelA
	OpCompleteTunnelQ
	OpCompleteTunnelA
	OpCancelTunnelQ
	OpCancelTunnelA
)

func (o OperationKind) String() string {
	names := [...]string{
		"StatusQ", "StatusA", "FindNodeQ", "FindNodeA", "AppCallQ", "AppCallA",
		"GetValueQ", "GetValueA", "SetValueQ", "SetValueA", "WatchValueQ", "WatchValueA",
		"AppMessage", "Signal", "ValueChanged", "ReturnReceipt",
		"SupplyBlockQ", "SupplyBlockA", "FindBlockQ", "FindBlockA",
		"StartTunnelQ", "StartTunnelA", "CompleteTunnelQ", "CompleteTunnelA",
		"CancelTunnelQ", "CancelTunnelA",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}

// expectsAnswer reports whether sending this operation as a Question
// registers a waiter (every *Q operation does; statements never do).
func (o OperationKind) expectsAnswer() bool {
	switch o {
	case OpAppMessage, OpSignal, OpValueChanged, OpReturnReceipt:
		return false
	default:
		return true
	}
}

// Message is one framed RPC payload: {op_id, respond_to, detail} per
// spec §6, plus the envelope-level kind.
type Message struct {
	OpID      uint64
	Kind      MessageKind
	Operation OperationKind
	RespondTo RespondTo
	Body      []byte // opaque operation-specific payload
}
