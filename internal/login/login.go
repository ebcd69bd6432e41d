// Package login obtains a login assertion from the account server for a
// challenge sent by the chat server.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vovakirdan/wirebot/internal/utils"
)

var (
	// ErrTerminal means retrying cannot help; the credentials are wrong.
	ErrTerminal = errors.New("login rejected")
	// ErrTransient means the account server should be asked again later.
	ErrTransient = errors.New("login unavailable")
)

const (
	minAssertionLength = 50
	maxResponseBytes   = 64 << 10
)

// Options configures a Client.
type Options struct {
	ActionURL  string
	Nick       string
	Pass       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the account server's action endpoint.
type Client struct {
	http      *http.Client
	actionURL string
	nick      string
	pass      string
}

// New creates a login client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		http:      hc,
		actionURL: opts.ActionURL,
		nick:      opts.Nick,
		pass:      opts.Pass,
	}
}

// Assert requests an assertion for the challenge. Accounts without a password
// use a GET getassertion request; otherwise the credentials are POSTed.
func (c *Client) Assert(ctx context.Context, keyID, challenge string) (string, error) {
	req, err := c.buildRequest(ctx, keyID, challenge)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTerminal, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: account server returned %s", ErrTransient, resp.Status)
	}
	return Classify(string(body))
}

func (c *Client) buildRequest(ctx context.Context, keyID, challenge string) (*http.Request, error) {
	if c.pass == "" {
		u, err := url.Parse(c.actionURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("act", "getassertion")
		q.Set("userid", utils.ToID(c.nick))
		q.Set("challengekeyid", keyID)
		q.Set("challenge", challenge)
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}

	form := url.Values{}
	form.Set("act", "login")
	form.Set("name", c.nick)
	form.Set("pass", c.pass)
	form.Set("challengekeyid", keyID)
	form.Set("challenge", challenge)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

type actionResponse struct {
	ActionSuccess bool   `json:"actionsuccess"`
	Assertion     string `json:"assertion"`
}

// Classify turns an account-server response body into an assertion or an
// error wrapping ErrTerminal or ErrTransient.
func Classify(body string) (string, error) {
	switch {
	case body == ";":
		return "", fmt.Errorf("%w: nick is registered, invalid or no password given", ErrTerminal)
	case len(body) < minAssertionLength:
		return "", fmt.Errorf("%w: %q", ErrTerminal, body)
	case strings.Contains(body, "heavy load"):
		return "", fmt.Errorf("%w: account server is under heavy load", ErrTransient)
	case strings.HasPrefix(body, "<!DOCTYPE html>"):
		return "", fmt.Errorf("%w: gateway error page", ErrTransient)
	case strings.HasPrefix(body, "]"):
		var resp actionResponse
		if err := json.Unmarshal([]byte(body[1:]), &resp); err != nil {
			return "", fmt.Errorf("%w: malformed action response: %v", ErrTransient, err)
		}
		if !resp.ActionSuccess || resp.Assertion == "" {
			return "", fmt.Errorf("%w: action was not successful", ErrTransient)
		}
		return resp.Assertion, nil
	default:
		return body, nil
	}
}
