// Package ws dials the chat server and bridges websocket messages to the
// session, reconnecting after every disconnect.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/outbound"
	"github.com/vovakirdan/wirebot/internal/proto"
)

const (
	writeBuffer         = 64
	defaultWriteTimeout = 10 * time.Second
)

var (
	ErrClosed          = errors.New("connection closed")
	ErrWriteBufferFull = errors.New("write buffer full")
)

// Handler receives connection events. Implementations must not block.
type Handler interface {
	OnConnect(tx outbound.Transmitter)
	OnFrame(frame string)
	OnDisconnect(err error)
}

// Options configures the client.
type Options struct {
	URL          string
	Subprotocols []string
	SockJS       bool
	ReadLimit    int64
	WriteTimeout time.Duration
	// ReconnectDelay is the wait between attempts. A larger
	// ReconnectMaxDelay turns on exponential growth up to it.
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	Clock             clock.Clock
	Logger            *zerolog.Logger
}

// Client keeps one connection to the chat server alive.
type Client struct {
	opts    Options
	codec   proto.Codec
	handler Handler
	clock   clock.Clock
	log     *zerolog.Logger
}

// New creates a client delivering events to h.
func New(opts Options, h Handler) *Client {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Client{
		opts:    opts,
		codec:   proto.NewCodec(opts.SockJS),
		handler: h,
		clock:   opts.Clock,
		log:     opts.Logger,
	}
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	policy := c.reconnectPolicy()
	for {
		connected, err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("connection lost")
		select {
		case <-c.clock.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) reconnectPolicy() backoff.BackOff {
	delay := c.opts.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	if c.opts.ReconnectMaxDelay <= delay {
		return backoff.NewConstantBackOff(delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.MaxInterval = c.opts.ReconnectMaxDelay
	b.Reset()
	return b
}

// connect runs one connection to completion. connected reports whether the
// handshake succeeded.
func (c *Client) connect(ctx context.Context) (bool, error) {
	conn, _, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{
		Subprotocols: c.opts.Subprotocols,
	})
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	if c.opts.ReadLimit > 0 {
		conn.SetReadLimit(c.opts.ReadLimit)
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	c.log.Info().Str("url", c.opts.URL).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := newWriter(ctx, conn, c.codec, c.opts.WriteTimeout)
	c.handler.OnConnect(w)

	errCh := make(chan error, 2)
	go func() {
		errCh <- c.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- w.run()
	}()

	err = <-errCh
	cancel()
	<-errCh
	w.close()

	status, reason, err := closeReason(err)
	conn.Close(status, reason)
	c.handler.OnDisconnect(err)
	return true, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		frames, err := c.codec.Decode(data)
		if err != nil {
			if errors.Is(err, proto.ErrRemoteClosed) {
				return err
			}
			c.log.Debug().Err(err).Msg("malformed message")
			continue
		}
		for _, frame := range frames {
			c.handler.OnFrame(frame)
		}
	}
}

// closeReason maps a loop error to a close status. Normal closures and
// cancellation are reported as a nil error.
func closeReason(err error) (websocket.StatusCode, string, error) {
	status := websocket.StatusNormalClosure
	reason := "closing"
	if err == nil || errors.Is(err, context.Canceled) {
		return status, reason, nil
	}
	if errors.Is(err, io.EOF) {
		return status, reason, nil
	}
	if s := websocket.CloseStatus(err); s != -1 {
		if s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			return status, reason, nil
		}
		return status, reason, err
	}
	return websocket.StatusInternalError, err.Error(), err
}
