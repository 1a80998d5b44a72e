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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbasu/corenet/apierr"
)

func TestRequestDebugDetailRoundTrip(t *testing.T) {
	detail, err := json.Marshal(DebugDetail{Command: "dump_routing_table"})
	require.NoError(t, err)
	req := Request{ID: 1, Kind: RequestDebug, Detail: detail}

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, RequestDebug, decoded.Kind)

	var d DebugDetail
	require.NoError(t, json.Unmarshal(decoded.Detail, &d))
	require.Equal(t, "dump_routing_table", d.Command)
}

func TestSubscribeDetailRoundTrip(t *testing.T) {
	detail, err := json.Marshal(SubscribeDetail{Updates: []UpdateKind{UpdateAttachment, UpdateNetwork}})
	require.NoError(t, err)
	req := Request{ID: 2, Kind: RequestSubscribe, Detail: detail}

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var decoded Request
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var d SubscribeDetail
	require.NoError(t, json.Unmarshal(decoded.Detail, &d))
	require.Equal(t, []UpdateKind{UpdateAttachment, UpdateNetwork}, d.Updates)
}

func TestNewErrorResponseMapsApierrKind(t *testing.T) {
	err := &apierr.Error{Kind: apierr.KindKeyNotFound, Message: "no such record", Key: "abc"}
	resp := NewErrorResponse(7, err)
	require.Equal(t, uint64(7), resp.ID)
	require.NotNil(t, resp.Error)
	require.Equal(t, "key_not_found", resp.Error.Kind)
	require.Nil(t, resp.Result)
}

func TestNewErrorResponseFallsBackToGeneric(t *testing.T) {
	resp := NewErrorResponse(8, json.Unmarshal([]byte("not json"), &struct{}{}))
	require.Equal(t, "generic", resp.Error.Kind)
}

func TestNewResultResponseMarshalsResult(t *testing.T) {
	resp, err := NewResultResponse(9, map[string]int{"peer_count": 3})
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(resp.Result, &decoded))
	require.Equal(t, 3, decoded["peer_count"])
}

func TestUpdateValueChangeDetailRoundTrip(t *testing.T) {
	detail, err := json.Marshal(ValueChangeUpdateDetail{Key: "abc", Subkeys: []uint32{0, 1}, Seq: 5})
	require.NoError(t, err)
	upd := Update{Kind: UpdateValueChange, Detail: detail}

	raw, err := json.Marshal(upd)
	require.NoError(t, err)
	var decoded Update
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var d ValueChangeUpdateDetail
	require.NoError(t, json.Unmarshal(decoded.Detail, &d))
	require.Equal(t, uint32(5), d.Seq)
	require.Equal(t, []uint32{0, 1}, d.Subkeys)
}
