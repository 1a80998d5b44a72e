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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbasu/corenet/rpc"
)

func TestRLPCodecRoundTripQuestion(t *testing.T) {
	msg := rpc.Message{
		OpID:      42,
		Kind:      rpc.MessageQuestion,
		Operation: rpc.OpFindNodeQ,
		RespondTo: rpc.RespondTo{Kind: rpc.RespondToSender},
		Body:      []byte("find-node-body"),
	}

	frame, err := RLPCodec{}.Encode(msg)
	require.NoError(t, err)

	decoded, err := RLPCodec{}.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, msg.OpID, decoded.OpID)
	require.Equal(t, msg.Kind, decoded.Kind)
	require.Equal(t, msg.Operation, decoded.Operation)
	require.Equal(t, msg.RespondTo.Kind, decoded.RespondTo.Kind)
	require.Equal(t, msg.Body, decoded.Body)
}

func TestRLPCodecRoundTripPrivateRouteRespondTo(t *testing.T) {
	msg := rpc.Message{
		OpID:      7,
		Kind:      rpc.MessageAnswer,
		Operation: rpc.OpStatusA,
		RespondTo: rpc.RespondTo{Kind: rpc.RespondToPrivateRoute, Route: []byte{1, 2, 3, 4}},
		Body:      []byte("status"),
	}

	frame, err := RLPCodec{}.Encode(msg)
	require.NoError(t, err)

	decoded, err := RLPCodec{}.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, rpc.RespondToPrivateRoute, decoded.RespondTo.Kind)
	require.Equal(t, []byte{1, 2, 3, 4}, decoded.RespondTo.Route)
}

func TestRLPCodecDecodeGarbageFails(t *testing.T) {
	_, err := RLPCodec{}.Decode([]byte("not rlp"))
	require.Error(t, err)
}
