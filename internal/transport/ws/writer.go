package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirebot/internal/proto"
)

// writer is the Transmitter handed to the session. Transmit never blocks the
// caller; a goroutine performs the actual writes in order.
type writer struct {
	ctx     context.Context
	conn    *websocket.Conn
	codec   proto.Codec
	timeout time.Duration
	out     chan string

	mu     sync.Mutex
	closed bool
}

func newWriter(ctx context.Context, conn *websocket.Conn, codec proto.Codec, timeout time.Duration) *writer {
	return &writer{
		ctx:     ctx,
		conn:    conn,
		codec:   codec,
		timeout: timeout,
		out:     make(chan string, writeBuffer),
	}
}

func (w *writer) Transmit(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.out <- line:
		return nil
	default:
		return ErrWriteBufferFull
	}
}

func (w *writer) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *writer) run() error {
	for {
		select {
		case line := <-w.out:
			data, err := w.codec.Encode(line)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
			err = w.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-w.ctx.Done():
			return w.ctx.Err()
		}
	}
}
