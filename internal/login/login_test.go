package login

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var longAssertion = strings.Repeat("a", 60)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  error
	}{
		{name: "registered nick", body: ";", err: ErrTerminal},
		{name: "too short", body: "nope", err: ErrTerminal},
		{name: "heavy load", body: strings.Repeat("x", 50) + " heavy load", err: ErrTransient},
		{name: "gateway page", body: "<!DOCTYPE html>" + strings.Repeat("x", 60), err: ErrTransient},
		{name: "json success", body: `]{"actionsuccess":true,"assertion":"` + longAssertion + `"}`, want: longAssertion},
		{name: "json failure", body: `]{"actionsuccess":false,"assertion":"","padding":"` + longAssertion + `"}`, err: ErrTransient},
		{name: "json malformed", body: "]" + strings.Repeat("{", 60), err: ErrTransient},
		{name: "raw assertion", body: longAssertion, want: longAssertion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.body)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("assertion = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAssertWithoutPasswordUsesGet(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(longAssertion))
	}))
	defer srv.Close()

	c := New(Options{ActionURL: srv.URL + "/action.php", Nick: "Wire Bot"})
	assertion, err := c.Assert(context.Background(), "4", "abc")
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if assertion != longAssertion {
		t.Fatalf("unexpected assertion %q", assertion)
	}
	if got.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", got.Method)
	}
	q := got.URL.Query()
	if q.Get("act") != "getassertion" || q.Get("userid") != "wirebot" || q.Get("challengekeyid") != "4" || q.Get("challenge") != "abc" {
		t.Fatalf("unexpected query %v", q)
	}
}

func TestAssertWithPasswordPostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("act") != "login" || r.PostForm.Get("name") != "Wire Bot" || r.PostForm.Get("pass") != "secret" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`]{"actionsuccess":true,"assertion":"` + longAssertion + `"}`))
	}))
	defer srv.Close()

	c := New(Options{ActionURL: srv.URL, Nick: "Wire Bot", Pass: "secret"})
	assertion, err := c.Assert(context.Background(), "4", "abc")
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if assertion != longAssertion {
		t.Fatalf("unexpected assertion %q", assertion)
	}
}

func TestAssertServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 60), http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{ActionURL: srv.URL, Nick: "WireBot"})
	if _, err := c.Assert(context.Background(), "4", "abc"); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestAssertUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Options{ActionURL: url, Nick: "WireBot"})
	if _, err := c.Assert(context.Background(), "4", "abc"); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
