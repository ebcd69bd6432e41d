package outbound

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirebot/internal/proto"
)

type sent struct {
	line string
	at   time.Time
}

type fakeTransmitter struct {
	clock clock.Clock
	lines []sent
}

func (f *fakeTransmitter) Transmit(line string) error {
	f.lines = append(f.lines, sent{line: line, at: f.clock.Now()})
	return nil
}

type harness struct {
	clock  *clock.Mock
	events chan func()
	queue  *Queue
	tx     *fakeTransmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := clock.NewMock()
	events := make(chan func(), 16)
	q := New(Options{
		Interval: DefaultInterval,
		Slack:    DefaultSlack,
		Clock:    mock,
		Exec:     func(fn func()) { events <- fn },
	})
	tx := &fakeTransmitter{clock: mock}
	q.Attach(tx)
	return &harness{clock: mock, events: events, queue: q, tx: tx}
}

// advance moves the mock clock and runs the drain it triggers, if any.
func (h *harness) advance(t *testing.T, d time.Duration, expectDrain bool) {
	t.Helper()
	h.clock.Add(d)
	if !expectDrain {
		select {
		case fn := <-h.events:
			fn()
			t.Fatalf("unexpected drain after %s", d)
		case <-time.After(20 * time.Millisecond):
		}
		return
	}
	select {
	case fn := <-h.events:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for drain after %s", d)
	}
}

func TestQueueSpacesLinesInOrder(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now()

	for _, text := range []string{"one", "two", "three"} {
		if !h.queue.Enqueue(proto.RoomTarget("lobby"), text) {
			t.Fatalf("enqueue %q dropped", text)
		}
	}
	if len(h.tx.lines) != 1 {
		t.Fatalf("expected first line sent immediately, got %d", len(h.tx.lines))
	}
	if h.queue.Len() != 2 {
		t.Fatalf("expected 2 pending, got %d", h.queue.Len())
	}

	h.advance(t, 649*time.Millisecond, false)
	h.advance(t, time.Millisecond, true)
	h.advance(t, DefaultInterval, true)

	want := []string{"|one", "|two", "|three"}
	if len(h.tx.lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(h.tx.lines))
	}
	for i, line := range want {
		if h.tx.lines[i].line != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, h.tx.lines[i].line)
		}
		if i > 0 {
			gap := h.tx.lines[i].at.Sub(h.tx.lines[i-1].at)
			if gap < DefaultInterval-DefaultSlack {
				t.Fatalf("lines %d and %d only %s apart", i-1, i, gap)
			}
		}
	}
	if h.tx.lines[0].at != start {
		t.Fatalf("first line should go out at enqueue time")
	}
	if h.queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", h.queue.Len())
	}
}

func TestQueueSendsImmediatelyWithinSlack(t *testing.T) {
	h := newHarness(t)

	h.queue.Enqueue(proto.RoomTarget("lobby"), "one")
	h.clock.Add(DefaultInterval - DefaultSlack)
	h.queue.Enqueue(proto.UserTarget("alice"), "two")

	if len(h.tx.lines) != 2 {
		t.Fatalf("expected both lines sent without waiting, got %d", len(h.tx.lines))
	}
	if h.tx.lines[1].line != "|/pm alice, two" {
		t.Fatalf("unexpected pm line %q", h.tx.lines[1].line)
	}
}

func TestQueueFIFOWhileTimerPending(t *testing.T) {
	h := newHarness(t)

	h.queue.Enqueue(proto.RoomTarget("lobby"), "one")
	h.queue.Enqueue(proto.RoomTarget("lobby"), "two")
	h.clock.Add(time.Second)
	// The drain for "two" has fired but not yet run; "three" must still wait.
	h.queue.Enqueue(proto.RoomTarget("lobby"), "three")

	if len(h.tx.lines) != 1 {
		t.Fatalf("expected only the first line sent, got %d", len(h.tx.lines))
	}
	select {
	case fn := <-h.events:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for drain")
	}
	if got := h.tx.lines[len(h.tx.lines)-1].line; got != "|two" {
		t.Fatalf("expected |two next, got %q", got)
	}
}

func TestQueueDropsWithoutTransport(t *testing.T) {
	h := newHarness(t)
	h.queue.Enqueue(proto.RoomTarget("lobby"), "one")
	h.queue.Enqueue(proto.RoomTarget("lobby"), "two")

	h.queue.Detach()
	if h.queue.Len() != 0 {
		t.Fatalf("detach must drop pending lines")
	}
	if h.queue.Enqueue(proto.RoomTarget("lobby"), "three") {
		t.Fatalf("enqueue without transport must report false")
	}

	h.advance(t, time.Second, false)
	if len(h.tx.lines) != 1 {
		t.Fatalf("expected only the first line, got %d", len(h.tx.lines))
	}
}

func TestQueueIgnoresStaleDrain(t *testing.T) {
	h := newHarness(t)
	h.queue.Enqueue(proto.RoomTarget("lobby"), "one")
	h.queue.Enqueue(proto.RoomTarget("lobby"), "two")

	h.clock.Add(time.Second)
	var drain func()
	select {
	case drain = <-h.events:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for drain")
	}

	next := &fakeTransmitter{clock: h.clock}
	h.queue.Attach(next)
	drain()

	if len(next.lines) != 0 || len(h.tx.lines) != 1 {
		t.Fatalf("drain from the previous connection must not send")
	}
	if h.queue.Enqueue(proto.RoomTarget("lobby"), "") {
		t.Fatalf("empty text must be dropped")
	}
}

func TestQueueAttachResetsBaseline(t *testing.T) {
	h := newHarness(t)
	h.queue.Enqueue(proto.RoomTarget("lobby"), "one")

	next := &fakeTransmitter{clock: h.clock}
	h.queue.Attach(next)
	h.queue.Enqueue(proto.RoomTarget("lobby"), "again")

	if len(next.lines) != 1 {
		t.Fatalf("fresh connection should send immediately, got %d", len(next.lines))
	}
}

type failingTransmitter struct{ calls int }

func (f *failingTransmitter) Transmit(string) error {
	f.calls++
	return errors.New("closed")
}

func TestQueueTransmitErrorIsNotFatal(t *testing.T) {
	q := New(Options{Interval: 0})
	tx := &failingTransmitter{}
	q.Attach(tx)

	q.Enqueue(proto.RoomTarget("lobby"), "one")
	q.Enqueue(proto.RoomTarget("lobby"), "two")
	if tx.calls != 2 {
		t.Fatalf("expected 2 transmit attempts, got %d", tx.calls)
	}
}
