package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/wirebot/internal/auth"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/session"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
)

const testPassword = "correct-horse"

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Transmit(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) has(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.lines, line)
}

type actionList struct {
	actions []*store.Action
}

func (a *actionList) RecordAction(_ context.Context, action *store.Action) error {
	a.actions = append(a.actions, action)
	return nil
}

func (a *actionList) ListActions(_ context.Context, userID string, limit int) ([]*store.Action, error) {
	var out []*store.Action
	for i := len(a.actions) - 1; i >= 0 && len(out) < limit; i-- {
		if a.actions[i].UserID == userID {
			out = append(out, a.actions[i])
		}
	}
	return out, nil
}

type testEnv struct {
	h     http.Handler
	sess  *session.Session
	tx    *recorder
	auth  *auth.Service
	clock *clock.Mock
	stop  func()
}

// newTestEnv runs a logged-in session in techcode with Alice present.
func newTestEnv(t *testing.T, actions store.ActionStore) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Rooms = []string{"techcode"}
	cfg.Throttle.Interval = 0
	cfg.Throttle.Slack = 0
	cfg.SettingsPath = ""

	logger := zerolog.Nop()
	sess := session.New(session.Options{
		Config:   cfg,
		Settings: settings.NewSnapshot(),
		Logger:   &logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	tx := &recorder{}
	sess.OnConnect(tx)
	sess.OnFrame("|updateuser| WireBot|1|1|{}")
	sess.OnFrame(">techcode\n|init|chat\n|title|Tech Code\n|users|2,@WireBot, Alice")

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	mock := clock.NewMock()
	mock.Set(time.Now())
	authService := auth.NewService("admin", string(hash), &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "wirebot",
		Audience: "wirebot-admin",
		TTL:      time.Hour,
	}, mock)

	return &testEnv{
		h:     NewRouter(sess, authService, actions, &logger),
		sess:  sess,
		tx:    tx,
		auth:  authService,
		clock: mock,
		stop:  stop,
	}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.auth.Login("admin", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return token
}

// request performs an authenticated request when token is non-empty.
func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}
