package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirebot/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListActions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, cmd := range []string{"warn", "mute", "hourmute"} {
		a := &store.Action{
			UserID:    "spammer",
			RoomID:    "lobby",
			Command:   cmd,
			Reason:    "caps",
			Points:    i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordAction(ctx, a); err != nil {
			t.Fatalf("record %s: %v", cmd, err)
		}
		if a.ID == "" {
			t.Fatalf("expected generated id")
		}
	}
	if err := s.RecordAction(ctx, &store.Action{UserID: "other", RoomID: "lobby", Command: "warn"}); err != nil {
		t.Fatalf("record other: %v", err)
	}

	actions, err := s.ListActions(ctx, "spammer", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Command != "hourmute" || actions[1].Command != "mute" {
		t.Fatalf("expected newest first, got %s, %s", actions[0].Command, actions[1].Command)
	}
	if !actions[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected created_at %s", actions[0].CreatedAt)
	}
}

func TestSeenUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.GetSeen(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveSeen(ctx, &store.Seen{UserID: "alice", Description: "joining lobby.", SeenAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSeen(ctx, &store.Seen{UserID: "alice", Description: "leaving lobby.", SeenAt: at.Add(time.Minute)}); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := s.SaveSeen(ctx, &store.Seen{UserID: "alice", Description: "stale.", SeenAt: at.Add(-time.Hour)}); err != nil {
		t.Fatalf("save stale: %v", err)
	}

	seen, err := s.GetSeen(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if seen.Description != "leaving lobby." {
		t.Fatalf("expected newest record, got %q", seen.Description)
	}
	if !seen.SeenAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("unexpected seen_at %s", seen.SeenAt)
	}
}
