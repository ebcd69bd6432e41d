package core

import "testing"

func newTestRegistry(t testing.TB) *Registry {
	t.Helper()

	return NewRegistry(Options{
		Self:    "WireBot",
		Ranks:   NewRanks(DefaultTiers),
		Excepts: []string{"Owner Person"},
	})
}

func mustUser(t *testing.T, r *Registry, name string) *User {
	t.Helper()

	u := r.User(name)
	if u == nil {
		t.Fatalf("expected user %q to be registered", name)
	}
	return u
}
