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

package node

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dbasu/corenet/rpc"
)

// rlpMessage is rpc.Message's RLP-codable shape. rpc.Message is kept free
// of struct tags and RLP imports so the rpc package doesn't commit to a
// wire encoding; this codec is the thing that does, the same split
// storage/wire.go draws between Manager's in-memory types and their
// rlpDescriptor wire form.
type rlpMessage struct {
	OpID          uint64
	Kind          uint8
	Operation     uint8
	RespondToKind uint8
	RespondToRoute []byte
	Body          []byte
}

// RLPCodec implements rpc.Codec by RLP-encoding rpc.Message, the
// encoding already used throughout this tree for wire-shaped structs
// (routespec/persistence.go, wireformat/nodeinfo_codec.go, storage/wire.go).
type RLPCodec struct{}

func (RLPCodec) Encode(msg rpc.Message) ([]byte, error) {
	w := rlpMessage{
		OpID:           msg.OpID,
		Kind:           uint8(msg.Kind),
		Operation:      uint8(msg.Operation),
		RespondToKind:  uint8(msg.RespondTo.Kind),
		RespondToRoute: msg.RespondTo.Route,
		Body:           msg.Body,
	}
	return rlp.EncodeToBytes(&w)
}

func (RLPCodec) Decode(frame []byte) (rpc.Message, error) {
	var w rlpMessage
	if err := rlp.DecodeBytes(frame, &w); err != nil {
		return rpc.Message{}, err
	}
	return rpc.Message{
		OpID:      w.OpID,
		Kind:      rpc.MessageKind(w.Kind),
		Operation: rpc.OperationKind(w.Operation),
		RespondTo: rpc.RespondTo{
			Kind:  rpc.RespondToKind(w.RespondToKind),
			Route: w.RespondToRoute,
		},
		Body: w.Body,
	}, nil
}
