// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================
// Client Test Helpers
// ============================================================

// startPeer runs serve on one end of an in-memory pipe and returns a
// client on the other end. Cleanup closes the client first, then waits for
// serve to return.
func startPeer(t *testing.T, serve func(conn net.Conn), opts ...ClientOption) *Client {
	t.Helper()
	server, clientSide := net.Pipe()
	served := make(chan struct{})
	go func() {
		defer close(served)
		serve(server)
		server.Close()
	}()

	c := NewClient(clientSide, opts...)
	t.Cleanup(func() {
		c.Close()
		server.Close()
		<-served
	})
	return c
}

// serveEngine answers with a responder engine until the pipe closes.
func serveEngine(e *Engine) func(conn net.Conn) {
	return func(conn net.Conn) {
		e.SetWriter(conn)
		io.Copy(e, conn)
	}
}

func requestCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================
// Client Tests
// ============================================================

func TestClient_Request(t *testing.T) {
	c := startPeer(t, serveEngine(NewEngine(newFakeModel(), io.Discard)))

	reply, err := c.Request(requestCtx(t), MspAPIVersion, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Direction() != DirReply {
		t.Errorf("direction = %v, want %v", reply.Direction(), DirReply)
	}
	if !bytes.Equal(reply.Payload(), []byte{0, 1, 42}) {
		t.Errorf("payload = % X", reply.Payload())
	}
	if reply.ReadU8() != 0 || reply.ReadU8() != 1 || reply.ReadU8() != 42 {
		t.Error("reply cursor not at start of payload")
	}
}

func TestClient_WriteThenRead(t *testing.T) {
	m := newFakeModel()
	c := startPeer(t, serveEngine(NewEngine(m, io.Discard)))
	ctx := requestCtx(t)

	if _, err := c.Request(ctx, MspSetName, []byte("quad")); err != nil {
		t.Fatalf("SET_NAME: %v", err)
	}
	reply, err := c.Request(ctx, MspName, nil)
	if err != nil {
		t.Fatalf("NAME: %v", err)
	}
	if string(reply.Payload()) != "quad" {
		t.Errorf("name = %q", reply.Payload())
	}
}

func TestClient_ErrorReply(t *testing.T) {
	table := NewTable()
	table.Register(MspEepromWrite, func(_ *InboundMessage, out *OutboundMessage, _ Model) {
		out.Result = ResultError
	})
	c := startPeer(t, serveEngine(NewEngine(newFakeModel(), io.Discard, WithTable(table))))

	reply, err := c.Request(requestCtx(t), MspEepromWrite, nil)
	var replyErr *ReplyError
	if !errors.As(err, &replyErr) {
		t.Fatalf("err = %v, want *ReplyError", err)
	}
	if replyErr.Opcode != MspEepromWrite {
		t.Errorf("ReplyError.Opcode = %d", replyErr.Opcode)
	}
	if reply == nil || reply.Direction() != DirError {
		t.Errorf("error reply not returned: %+v", reply)
	}
}

func TestClient_Timeout(t *testing.T) {
	c := startPeer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Request(ctx, MspStatus, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	c := startPeer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Request(ctx, MspStatus, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClient_DiscardsUnmatchedReplies(t *testing.T) {
	c := startPeer(t, func(conn net.Conn) {
		req := make([]byte, FrameOverhead)
		if _, err := io.ReadFull(conn, req); err != nil {
			return
		}
		stale, _ := AppendFrame(nil, DirReply, MspStatus, []byte{1, 2, 3})
		echo, _ := AppendFrame(nil, DirCommand, MspAPIVersion, nil)
		want, _ := AppendFrame(nil, DirReply, MspAPIVersion, []byte{0, 1, 42})
		for _, f := range [][]byte{stale, echo, want} {
			if _, err := conn.Write(f); err != nil {
				return
			}
		}
		io.Copy(io.Discard, conn)
	})

	reply, err := c.Request(requestCtx(t), MspAPIVersion, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply.Opcode() != MspAPIVersion || reply.Direction() != DirReply {
		t.Errorf("got %s %v", OpcodeName(reply.Opcode()), reply.Direction())
	}
	if n := c.Stats().Frames.Load(); n != 3 {
		t.Errorf("Frames = %d, want 3", n)
	}
}

func TestClient_ConnectionLost(t *testing.T) {
	c := startPeer(t, func(conn net.Conn) {
		req := make([]byte, FrameOverhead)
		io.ReadFull(conn, req)
	})

	_, err := c.Request(requestCtx(t), MspStatus, nil)
	if err == nil {
		t.Fatal("expected an error after the peer closed")
	}
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
}

func TestClient_RequestRate(t *testing.T) {
	c := startPeer(t, serveEngine(NewEngine(newFakeModel(), io.Discard)),
		WithRequestRate(rate.Every(50*time.Millisecond), 1))
	ctx := requestCtx(t)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Request(ctx, MspAPIVersion, nil); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 requests took %v, want at least 100ms", elapsed)
	}
}

func TestClient_OversizedRequest(t *testing.T) {
	c := startPeer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})
	_, err := c.Request(requestCtx(t), MspSetName, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
}
