// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package msp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// replyQueueSize bounds replies received but not yet claimed by a request.
const replyQueueSize = 16

// Client sends requests to a flight controller and waits for the matching
// replies. MSP v1 has no sequence numbers: a reply matches the outstanding
// request by opcode, and only one request is in flight at a time.
type Client struct {
	rw      io.ReadWriter
	limiter *rate.Limiter
	log     zerolog.Logger
	stats   *Stats

	mu      sync.Mutex // serializes requests
	replies chan *InboundMessage
	done    chan struct{}
	readErr error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestRate limits how often requests are sent
func WithRequestRate(r rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithClientLogger sets the client logger
func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithClientStats makes the client count link activity into s
func WithClientStats(s *Stats) ClientOption {
	return func(c *Client) { c.stats = s }
}

// NewClient creates a client on rw and starts reading replies. The reader
// goroutine stops when a read from rw fails, e.g. because the transport
// was closed.
func NewClient(rw io.ReadWriter, opts ...ClientOption) *Client {
	c := &Client{
		rw:      rw,
		log:     zerolog.Nop(),
		replies: make(chan *InboundMessage, replyQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stats == nil {
		c.stats = NewStats()
	}
	go c.readLoop()
	return c
}

// Stats returns the client link counters
func (c *Client) Stats() *Stats {
	return c.stats
}

// Done is closed when the reader goroutine has stopped
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the transport when it is an io.Closer and waits for the
// reader goroutine to stop.
func (c *Client) Close() error {
	var err error
	if closer, ok := c.rw.(io.Closer); ok {
		err = closer.Close()
	}
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)

	parser := NewMonitorParser()
	buf := make([]byte, 256)
	for {
		n, err := c.rw.Read(buf)
		for _, b := range buf[:n] {
			c.stats.Bytes.Add(1)
			msg, ferr := parser.Feed(b)
			if ferr != nil {
				c.stats.RecordFramingError(ferr)
				continue
			}
			if msg == nil {
				continue
			}
			c.stats.Frames.Add(1)
			if msg.Direction() == DirCommand {
				parser.Reset()
				continue
			}
			reply := *msg
			parser.Reset()
			select {
			case c.replies <- &reply:
			default:
				c.log.Warn().Str("opcode", OpcodeName(reply.Opcode())).Msg("Reply queue full, dropping reply")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.stats.TransportErrors.Add(1)
			}
			c.readErr = err
			return
		}
	}
}

// Request sends opcode with payload and waits for the reply with the same
// opcode. The reply is returned with its read cursor at the start of the
// payload. An error reply ('!') is returned together with a *ReplyError.
// Replies for other opcodes received meanwhile are discarded.
func (c *Client) Request(ctx context.Context, opcode uint8, payload []byte) (*InboundMessage, error) {
	frame, err := EncodeRequest(opcode, payload)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for send slot: %w", err)
		}
	}

	c.drain()
	if _, err := c.rw.Write(frame); err != nil {
		c.stats.TransportErrors.Add(1)
		return nil, fmt.Errorf("send %s: %w", OpcodeName(opcode), err)
	}

	for {
		select {
		case reply := <-c.replies:
			if reply.Opcode() != opcode {
				c.log.Debug().
					Str("want", OpcodeName(opcode)).
					Str("got", OpcodeName(reply.Opcode())).
					Msg("Discarding unexpected reply")
				continue
			}
			if reply.Direction() == DirError {
				return reply, &ReplyError{Opcode: opcode, Payload: reply.Payload()}
			}
			return reply, nil
		case <-c.done:
			if c.readErr != nil {
				return nil, fmt.Errorf("connection lost: %w", c.readErr)
			}
			return nil, io.ErrClosedPipe
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, OpcodeName(opcode))
			}
			return nil, ctx.Err()
		}
	}
}

// drain drops stale replies left over from timed out requests.
func (c *Client) drain() {
	for {
		select {
		case <-c.replies:
		default:
			return
		}
	}
}
