// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Thermoquad/gyrostat/internal/config"
	"github.com/Thermoquad/gyrostat/internal/model"
	"github.com/Thermoquad/gyrostat/pkg/msp"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type hostTestEnv struct {
	t      *testing.T
	peers  chan io.ReadWriteCloser
	cancel context.CancelFunc
	result chan error
}

func startHost(t *testing.T, opts ...Option) *hostTestEnv {
	t.Helper()
	m := model.New()
	e := msp.NewEngine(m, io.Discard)
	h := New(m, e, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	env := &hostTestEnv{
		t:      t,
		peers:  make(chan io.ReadWriteCloser),
		cancel: cancel,
		result: make(chan error, 1),
	}
	go func() { env.result <- h.Run(ctx, env.peers) }()
	return env
}

// connect attaches a new in-memory peer and returns a client on it.
func (env *hostTestEnv) connect() *msp.Client {
	env.t.Helper()
	hostSide, clientSide := net.Pipe()
	env.peers <- hostSide
	c := msp.NewClient(clientSide)
	env.t.Cleanup(func() { c.Close() })
	return c
}

func (env *hostTestEnv) stop() {
	env.t.Helper()
	env.cancel()
	require.NoError(env.t, <-env.result)
}

func request(t *testing.T, c *msp.Client, opcode uint8, payload []byte) *msp.InboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := c.Request(ctx, opcode, payload)
	require.NoError(t, err)
	return reply
}

// poll sends a request without failing the test, for use in Eventually.
func poll(c *msp.Client, opcode uint8) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := c.Request(ctx, opcode, nil)
	if err != nil {
		return ""
	}
	return string(reply.Payload())
}

func TestHostAnswersRequests(t *testing.T) {
	env := startHost(t)
	c := env.connect()

	reply := request(t, c, msp.MspAPIVersion, nil)
	require.Equal(t, []byte{0, 1, 42}, reply.Payload())

	reply = request(t, c, msp.MspFCVariant, nil)
	require.Equal(t, "BTFL", string(reply.Payload()))

	env.stop()
}

func TestHostRestartDropsUnsavedChanges(t *testing.T) {
	env := startHost(t)
	c := env.connect()

	request(t, c, msp.MspSetName, []byte("bench"))
	require.Equal(t, "bench", string(request(t, c, msp.MspName, nil).Payload()))

	request(t, c, msp.MspReboot, nil)
	require.Empty(t, request(t, c, msp.MspName, nil).Payload())

	env.stop()
}

func TestHostNewPeerReplacesCurrent(t *testing.T) {
	env := startHost(t)
	first := env.connect()
	request(t, first, msp.MspAPIVersion, nil)

	second := env.connect()
	request(t, second, msp.MspAPIVersion, nil)

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first peer was not disconnected")
	}
	env.stop()
}

func TestHostReturnsWhenLastPeerLeaves(t *testing.T) {
	env := startHost(t)
	c := env.connect()
	request(t, c, msp.MspAPIVersion, nil)

	close(env.peers)
	require.NoError(t, c.Close())

	select {
	case err := <-env.result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("host did not return")
	}
	env.cancel()
}

func TestHostSimulationTicks(t *testing.T) {
	env := startHost(t, WithSimulation(5*time.Millisecond))
	c := env.connect()

	first := string(request(t, c, msp.MspAttitude, nil).Payload())
	require.Eventually(t, func() bool {
		next := poll(c, msp.MspAttitude)
		return next != "" && next != first
	}, 2*time.Second, 20*time.Millisecond)

	env.stop()
}

func TestHostConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gyrostat.yaml")
	write := func(name string) {
		content := "board:\n  id: GYRO\n  model_name: " + name + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("before")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	env := startHost(t, WithConfigWatch(path, cfg))
	c := env.connect()

	require.Eventually(t, func() bool {
		write("after")
		return poll(c, msp.MspName) == "after"
	}, 5*time.Second, 50*time.Millisecond)

	env.stop()
}
