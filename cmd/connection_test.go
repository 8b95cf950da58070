// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/gyrostat/pkg/msp"
)

func TestWebSocketPeerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	peers := make(chan io.ReadWriteCloser, 1)
	srv := httptest.NewServer(websocketHandler(ctx, peers))
	defer srv.Close()

	client, err := OpenWebSocketConnection("ws"+strings.TrimPrefix(srv.URL, "http")+"/msp", "", "", false)
	require.NoError(t, err)
	defer client.Close()

	var peer io.ReadWriteCloser
	select {
	case peer = <-peers:
	case <-time.After(2 * time.Second):
		t.Fatal("no peer handed over")
	}
	defer peer.Close()

	req, err := msp.EncodeRequest(msp.MspAPIVersion, nil)
	require.NoError(t, err)
	_, err = client.Write(req)
	require.NoError(t, err)

	got := make([]byte, len(req))
	_, err = io.ReadFull(peer, got)
	require.NoError(t, err)
	require.Equal(t, req, got)

	// Small reads drain one binary message across calls.
	_, err = peer.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	buf := make([]byte, 3)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buf[:n])
	n, err = client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{4}, buf[:n])
}

func TestOpenWebSocketConnectionRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://localhost/msp", "", "", false)
	require.ErrorContains(t, err, "unsupported URL scheme")
}

func TestAcceptTCPHandsOverPeers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	peers := make(chan io.ReadWriteCloser)
	done := make(chan struct{})
	go func() {
		defer close(done)
		acceptTCP(ctx, ln, peers)
	}()

	conn, err := OpenTCPConnection(ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case peer := <-peers:
		peer.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("no peer handed over")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acceptTCP did not return after cancel")
	}
}
