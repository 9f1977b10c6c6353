package infinity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// session is the in-memory login state. The access token doubles as the
// OAuth token secret on every signed call. Nothing is ever persisted.
type session struct {
	token    string
	issuedAt time.Time
}

func (s session) valid(now time.Time, ttl time.Duration) bool {
	return s.token != "" && now.Sub(s.issuedAt) < ttl
}

// ensureSession logs in when no session exists or the local validity window
// has lapsed. Auth rejections on signed calls are handled separately by do,
// which re-logins once before giving up.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.sess.valid(c.signer.Now(), c.sessionTTL) {
		return nil
	}
	return c.login(ctx)
}

// login authenticates against the portal and replaces the in-memory session.
// The login request itself is signed with an empty token secret.
func (c *Client) login(ctx context.Context) error {
	if c.logger != nil {
		c.logger.Infow("logging in", "username", c.username)
	}

	creds := "<credentials><username>" + xmlEscape(c.username) +
		"</username><password>" + xmlEscape(c.password) + "</password></credentials>"

	c.sess = session{}
	status, body, err := c.send(ctx, apiRequest{
		method:     http.MethodPost,
		path:       "/users/authenticated",
		form:       url.Values{"data": {creds}},
		acceptJSON: true,
	})
	if err != nil {
		return &AuthenticationError{Err: err}
	}
	if status != http.StatusOK {
		return &AuthenticationError{Message: loginFailureMessage(status, body)}
	}

	var payload struct {
		Result struct {
			AccessToken string `json:"accessToken"`
		} `json:"result"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &AuthenticationError{Err: err}
	}
	if payload.Result.AccessToken == "" {
		msg := payload.Error.Message
		if msg == "" {
			msg = "login response carried no access token"
		}
		return &AuthenticationError{Message: msg}
	}

	c.sess = session{token: payload.Result.AccessToken, issuedAt: c.signer.Now()}
	if c.logger != nil {
		c.logger.Infow("login successful", "username", c.username)
	}
	return nil
}

// loginFailureMessage extracts the server's message from a failed login
// response, falling back to a status line plus body excerpt.
func loginFailureMessage(status int, body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("status %d: %s", status, excerpt(body))
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}
