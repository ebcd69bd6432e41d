package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
)

type recorder struct {
	lines []string
}

func (r *recorder) Transmit(line string) error {
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) take() []string {
	lines := r.lines
	r.lines = nil
	return lines
}

type fakeAuth struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (f *fakeAuth) Assert(_ context.Context, keyID, challenge string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return "", err
		}
	}
	return "assertion-" + keyID + "-" + challenge, nil
}

func (f *fakeAuth) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memStore struct {
	mu      sync.Mutex
	seen    map[string]*store.Seen
	actions []*store.Action
	// saveGate, when set, holds SaveSeen until it is closed.
	saveGate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{seen: map[string]*store.Seen{}}
}

func (m *memStore) RecordAction(_ context.Context, a *store.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *memStore) ListActions(_ context.Context, userID string, limit int) ([]*store.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Action
	for i := len(m.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.actions[i].UserID == userID {
			out = append(out, m.actions[i])
		}
	}
	return out, nil
}

func (m *memStore) SaveSeen(_ context.Context, s *store.Seen) error {
	if m.saveGate != nil {
		<-m.saveGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[s.UserID] = s
	return nil
}

func (m *memStore) GetSeen(_ context.Context, userID string) (*store.Seen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seen[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) actionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actions)
}

func (m *memStore) seenFor(userID string) *store.Seen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[userID]
}

type harness struct {
	s     *Session
	clock *clock.Mock
	tx    *recorder
	auth  *fakeAuth
	store *memStore
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.ServerID = "localhost"
	cfg.Rooms = []string{"lobby", "techcode"}
	cfg.PrivateRooms = []string{"staff"}
	cfg.Throttle.Interval = 0
	cfg.Throttle.Slack = 0
	cfg.SettingsPath = ""
	cfg.BotGuide = "https://example.com/guide"
	cfg.Login.RetryDelay = time.Minute
	return cfg
}

func newHarness(t *testing.T, mutate func(*config.Config, *settings.Snapshot)) *harness {
	t.Helper()
	cfg := testConfig()
	snap := settings.NewSnapshot()
	if mutate != nil {
		mutate(&cfg, snap)
	}

	mock := clock.NewMock()
	auth := &fakeAuth{}
	st := newMemStore()
	s := New(Options{
		Config:   cfg,
		Settings: snap,
		Login:    auth,
		Store:    st,
		Clock:    mock,
	})
	tx := &recorder{}
	s.queue.Attach(tx)
	s.connected = true
	return &harness{s: s, clock: mock, tx: tx, auth: auth, store: st}
}

// pumpUntil runs posted events until cond holds. cond is also polled for
// effects of goroutines that never post back.
func (h *harness) pumpUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case fn := <-h.s.events:
			fn()
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

// login completes the handshake and discards the lines it produced.
func (h *harness) login(t *testing.T) {
	t.Helper()
	h.s.HandleFrame("|updateuser| WireBot|1|1|{}")
	if h.s.State() != StateAuthenticated {
		t.Fatalf("expected authenticated session")
	}
	h.tx.take()
}

// enter registers a room with the given user list entries.
func (h *harness) enter(t *testing.T, room string, users ...string) {
	t.Helper()
	list := strings.Join(append([]string{strconv.Itoa(len(users))}, users...), ",")
	h.s.HandleFrame(">" + room + "\n|init|chat\n|title|" + room + "\n|users|" + list)
	if h.s.Room(room) == nil {
		t.Fatalf("room %s not registered", room)
	}
}

func expectLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d lines %q, got %d %q", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
