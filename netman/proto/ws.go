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

package proto

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dbasu/corenet/netman"
	"github.com/dbasu/corenet/types"
)

// WSConnection wraps a gorilla/websocket connection; each WS frame is
// carried as one binary message, so no additional length-prefixing is
// needed the way TCPConnection needs it.
type WSConnection struct {
	conn *websocket.Conn
	desc types.ConnectionDescriptor
}

func (c *WSConnection) Descriptor() types.ConnectionDescriptor { return c.desc }

func (c *WSConnection) SendFrame(ctx context.Context, frame []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(dl)
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *WSConnection) RecvFrame(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *WSConnection) Close() error { return c.conn.Close() }

// WSDialer dials WS (and, with tls=true, WSS) connections.
type WSDialer struct {
	TLS bool
}

func (d WSDialer) Protocol() types.Protocol {
	if d.TLS {
		return types.ProtocolWSS
	}
	return types.ProtocolWS
}

func (d WSDialer) Dial(ctx context.Context, dial types.DialInfo, local *types.SocketAddress) (netman.NetworkConnection, error) {
	scheme := "ws"
	if d.TLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", dial.Address.String(), dial.Port), Path: dial.RequestURL}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if local != nil {
		netDialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: local.IP, Port: int(local.Port)}}
		dialer.NetDialContext = netDialer.DialContext
	}
	if d.TLS {
		dialer.TLSClientConfig = &tls.Config{}
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	desc := connDescriptorFromWS(d.Protocol(), conn, local)
	return &WSConnection{conn: conn, desc: desc}, nil
}

func connDescriptorFromWS(protocol types.Protocol, conn *websocket.Conn, local *types.SocketAddress) types.ConnectionDescriptor {
	remoteAddr := conn.RemoteAddr().(*net.TCPAddr)
	desc := types.ConnectionDescriptor{
		Remote: types.PeerAddress{Protocol: protocol, Address: types.SocketAddress{IP: remoteAddr.IP, Port: uint16(remoteAddr.Port)}},
	}
	if localAddr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		ls := types.SocketAddress{IP: localAddr.IP, Port: uint16(localAddr.Port)}
		desc.Local = &ls
	}
	return desc
}

// WSListener upgrades inbound HTTP connections to WS on a given path
// (spec §6's protocol.ws.path), feeding accepted connections to accept.
type WSListener struct {
	protocol types.Protocol
	upgrader websocket.Upgrader
	accept   chan netman.NetworkConnection
	server   *http.Server
}

func NewWSListener(protocol types.Protocol, listenAddr, path string) *WSListener {
	l := &WSListener{
		protocol: protocol,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		accept:   make(chan netman.NetworkConnection, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+path, l.handleUpgrade)
	l.server = &http.Server{Addr: listenAddr, Handler: mux}
	return l
}

func (l *WSListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	desc := connDescriptorFromWS(l.protocol, conn, nil)
	l.accept <- &WSConnection{conn: conn, desc: desc}
}

func (l *WSListener) Serve() error {
	return l.server.ListenAndServe()
}

func (l *WSListener) Protocol() types.Protocol { return l.protocol }

func (l *WSListener) Accept(ctx context.Context) (netman.NetworkConnection, error) {
	select {
	case conn := <-l.accept:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *WSListener) Close() error { return l.server.Close() }
