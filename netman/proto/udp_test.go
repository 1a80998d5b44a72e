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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testUDPClient struct {
	conn *net.UDPConn
}

func newTestUDPClient(t *testing.T, serverAddr string) (*testUDPClient, error) {
	t.Helper()
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &testUDPClient{conn: conn}, nil
}

func (c *testUDPClient) send(frame []byte) error {
	_, err := c.conn.Write(frame)
	return err
}

func (c *testUDPClient) recv() ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *testUDPClient) Close() error { return c.conn.Close() }

func TestUDPListenerAcceptsAndEchoesFrame(t *testing.T) {
	l, err := NewUDPListener("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	dial := l.pc.LocalAddr()
	client, err := newTestUDPClient(t, dial.String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.send([]byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	require.NoError(t, err)

	frame, err := conn.RecvFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), frame)

	require.NoError(t, conn.SendFrame(ctx, []byte("world")))
	reply, err := client.recv()
	require.NoError(t, err)
	require.Equal(t, []byte("world"), reply)
}

func TestUDPListenerSameRemoteReusesConnection(t *testing.T) {
	l, err := NewUDPListener("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	client, err := newTestUDPClient(t, l.pc.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.send([]byte("first")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := l.Accept(ctx)
	require.NoError(t, err)
	_, err = conn.RecvFrame(ctx)
	require.NoError(t, err)

	require.NoError(t, client.send([]byte("second")))
	frame, err := conn.RecvFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), frame)

	l.mu.Lock()
	n := len(l.peers)
	l.mu.Unlock()
	require.Equal(t, 1, n)
}
