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

// Package clientapi defines the wire types for the optional JSON IPC/
// client API surface (spec §1, §6): a duplex JSON connection (UNIX socket,
// named pipe, or TCP) carrying client Requests and server-pushed Updates.
// The spec explicitly scopes the actual front end (CLI, JSON-RPC/IPC
// server loop) out of this module as an external collaborator — this
// package only defines the message shapes that collaborator would speak,
// the way an OpenAPI/IDL file would, without implementing the server.
package clientapi

import (
	"encoding/json"
	"fmt"

	"github.com/dbasu/corenet/apierr"
)

// RequestKind discriminates the client operations named in spec §6.
type RequestKind string

const (
	RequestAttach        RequestKind = "attach"
	RequestDetach        RequestKind = "detach"
	RequestShutdown      RequestKind = "shutdown"
	RequestDebug         RequestKind = "debug"
	RequestGetState      RequestKind = "get_state"
	RequestSubscribe     RequestKind = "subscribe"
	RequestUnsubscribe   RequestKind = "unsubscribe"
)

// Request is one client->server message: {id, kind, detail}. Detail's
// shape depends on Kind (e.g. DebugDetail for "debug", SubscribeDetail
// for "subscribe"); callers decode it with json.Unmarshal against the
// concrete type their Kind implies.
type Request struct {
	ID     uint64          `json:"id"`
	Kind   RequestKind     `json:"kind"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// DebugDetail is Request.Detail's shape when Kind is "debug".
type DebugDetail struct {
	Command string `json:"command"`
}

// SubscribeDetail is Request.Detail's shape when Kind is "subscribe" or
// "unsubscribe".
type SubscribeDetail struct {
	Updates []UpdateKind `json:"updates"`
}

// UpdateKind discriminates the server->client push messages named in spec
// §6.
type UpdateKind string

const (
	UpdateLog          UpdateKind = "log"
	UpdateAppMessage   UpdateKind = "app_message"
	UpdateAppCall      UpdateKind = "app_call"
	UpdateAttachment   UpdateKind = "attachment"
	UpdateNetwork      UpdateKind = "network"
	UpdateConfig       UpdateKind = "config"
	UpdateRouteChange  UpdateKind = "route_change"
	UpdateValueChange  UpdateKind = "value_change"
	UpdateShutdown     UpdateKind = "shutdown"
)

// Update is one server->client push message: {kind, detail}, fanned out
// to every client subscribed to Kind.
type Update struct {
	Kind   UpdateKind      `json:"kind"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// LogUpdateDetail is Update.Detail's shape when Kind is "log".
type LogUpdateDetail struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// AppMessageUpdateDetail is Update.Detail's shape when Kind is
// "app_message".
type AppMessageUpdateDetail struct {
	SenderNodeID string `json:"sender_node_id"`
	Message      []byte `json:"message"`
}

// AttachmentUpdateDetail is Update.Detail's shape when Kind is
// "attachment".
type AttachmentUpdateDetail struct {
	State string `json:"state"`
}

// NetworkUpdateDetail is Update.Detail's shape when Kind is "network".
type NetworkUpdateDetail struct {
	Started        bool `json:"started"`
	BpsDown        int64 `json:"bps_down"`
	BpsUp          int64 `json:"bps_up"`
	PeerCount      int  `json:"peer_count"`
}

// RouteChangeUpdateDetail is Update.Detail's shape when Kind is
// "route_change".
type RouteChangeUpdateDetail struct {
	DeadRoutes      []string `json:"dead_routes"`
	DeadRemoteRoutes []string `json:"dead_remote_routes"`
}

// ValueChangeUpdateDetail is Update.Detail's shape when Kind is
// "value_change".
type ValueChangeUpdateDetail struct {
	Key     string   `json:"key"`
	Subkeys []uint32 `json:"subkeys"`
	Seq     uint32   `json:"seq"`
}

// Response is one server->client reply to a Request, correlated by ID.
// Exactly one of Result/Error is populated.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the {error: {kind, message}} shape spec §6 specifies
// for mapping apierr.Error onto the JSON client API.
type ResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewErrorResponse maps err onto a Response for id, unwrapping an
// *apierr.Error for its Kind when possible and falling back to "generic".
func NewErrorResponse(id uint64, err error) Response {
	var ae *apierr.Error
	kind := "generic"
	msg := err.Error()
	if asApierr, ok := err.(*apierr.Error); ok {
		ae = asApierr
		kind = ae.Kind.String()
	}
	return Response{ID: id, Error: &ResponseError{Kind: kind, Message: msg}}
}

// NewResultResponse marshals result as a successful Response for id.
func NewResultResponse(id uint64, result interface{}) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("clientapi: marshaling result: %w", err)
	}
	return Response{ID: id, Result: raw}, nil
}
