// Package outbound delivers protocol lines to the transport in FIFO order
// without exceeding a minimum interval between sends.
package outbound

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/proto"
)

const (
	DefaultInterval = 650 * time.Millisecond
	DefaultSlack    = 5 * time.Millisecond
)

// Transmitter writes one line to the live connection.
type Transmitter interface {
	Transmit(line string) error
}

// Item is a queued line with its destination.
type Item struct {
	Target proto.Target
	Line   string
}

// Options configures a Queue.
type Options struct {
	Interval time.Duration
	Slack    time.Duration
	Clock    clock.Clock
	// Exec runs timer callbacks on the goroutine that owns the queue.
	Exec   func(func())
	Logger *zerolog.Logger
}

// Queue is owned by a single goroutine; timer firings reach it through Exec.
type Queue struct {
	interval time.Duration
	slack    time.Duration
	clock    clock.Clock
	exec     func(func())
	log      *zerolog.Logger

	tx       Transmitter
	pending  []Item
	lastSent time.Time
	timer    *clock.Timer
	gen      uint64
}

// New creates a detached queue.
func New(opts Options) *Queue {
	if opts.Interval < 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Slack < 0 {
		opts.Slack = 0
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Exec == nil {
		opts.Exec = func(fn func()) { fn() }
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Queue{
		interval: opts.Interval,
		slack:    opts.Slack,
		clock:    opts.Clock,
		exec:     opts.Exec,
		log:      opts.Logger,
	}
}

// Attach binds a fresh connection. Pending lines from the previous
// connection are dropped and the send baseline is reset.
func (q *Queue) Attach(tx Transmitter) {
	q.reset()
	q.tx = tx
}

// Detach unbinds the connection and drops pending lines.
func (q *Queue) Detach() {
	q.reset()
	q.tx = nil
}

// Attached reports whether a connection is bound.
func (q *Queue) Attached() bool {
	return q.tx != nil
}

// Len returns the number of lines waiting for the drain timer.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Enqueue sends text to target now if the interval allows and nothing is
// waiting, otherwise appends it. Returns false if the line was dropped.
func (q *Queue) Enqueue(target proto.Target, text string) bool {
	if q.tx == nil || text == "" {
		return false
	}
	line := target.Line(text)

	now := q.clock.Now()
	if len(q.pending) == 0 && q.timer == nil && !now.Before(q.lastSent.Add(q.interval-q.slack)) {
		q.send(line)
		return true
	}

	q.pending = append(q.pending, Item{Target: target, Line: line})
	if q.timer == nil {
		wait := q.lastSent.Add(q.interval).Sub(now)
		if wait < 0 {
			wait = 0
		}
		q.schedule(wait)
	}
	return true
}

func (q *Queue) schedule(wait time.Duration) {
	gen := q.gen
	q.timer = q.clock.AfterFunc(wait, func() {
		q.exec(func() { q.drain(gen) })
	})
}

func (q *Queue) drain(gen uint64) {
	if gen != q.gen {
		return
	}
	q.timer = nil
	if q.tx == nil || len(q.pending) == 0 {
		return
	}

	head := q.pending[0]
	q.pending[0] = Item{}
	q.pending = q.pending[1:]
	q.send(head.Line)

	if len(q.pending) > 0 {
		q.schedule(q.interval)
	}
}

func (q *Queue) send(line string) {
	q.lastSent = q.clock.Now()
	q.log.Debug().Str("dir", "send").Str("line", line).Msg("outbound")
	if err := q.tx.Transmit(line); err != nil {
		q.log.Warn().Err(err).Str("line", line).Msg("transmit failed")
	}
}

func (q *Queue) reset() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.pending = nil
	q.lastSent = time.Time{}
}
