package infinity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginOKBody = `{"result":{"accessToken":"accesstoken456"}}`

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient("testuser", "secret",
		WithBaseURL(srvURL),
		WithRetryPolicy(time.Millisecond, 2),
	)
	require.NoError(t, err)
	return c
}

func TestLogin_Success(t *testing.T) {
	var loginBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/authenticated", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "CONSUMER_PORTAL", r.Header.Get("featureset"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth realm="))

		raw, _ := io.ReadAll(r.Body)
		loginBody = string(raw)
		fmt.Fprint(w, loginOKBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.login(context.Background()))

	assert.Equal(t, "accesstoken456", c.sess.token)
	assert.Contains(t, loginBody, "data=%3Ccredentials%3E")
	assert.Contains(t, loginBody, "testuser")
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid username or password"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.login(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "invalid username or password")
	assert.Empty(t, c.sess.token)
}

func TestLogin_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.login(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestDo_LazyLoginThenRequest(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/authenticated":
			logins++
			fmt.Fprint(w, loginOKBody)
		case "/ping":
			assert.Equal(t, "application/xml", r.Header.Get("Accept"))
			fmt.Fprint(w, "<pong/>")
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	body, err := c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, "<pong/>", string(body))

	// Second call reuses the session.
	_, err = c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
}

func TestDo_ExpiredSessionRelogins(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/authenticated" {
			logins++
			fmt.Fprint(w, loginOKBody)
			return
		}
		fmt.Fprint(w, "<pong/>")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.sess = session{token: "stale", issuedAt: time.Now().Add(-2 * time.Hour)}

	_, err := c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
	assert.Equal(t, "accesstoken456", c.sess.token)
}

func TestDo_AuthRejectionRetriedOnce(t *testing.T) {
	logins, pings := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/authenticated":
			logins++
			fmt.Fprint(w, loginOKBody)
		case "/ping":
			pings++
			if pings == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `<error><message>signature doesn't match</message></error>`)
				return
			}
			fmt.Fprint(w, "<pong/>")
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.sess = session{token: "expired-server-side", issuedAt: time.Now()}

	body, err := c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, "<pong/>", string(body))
	assert.Equal(t, 1, logins)
	assert.Equal(t, 2, pings)
}

func TestDo_AuthRejectionAfterReloginSurfaces(t *testing.T) {
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/authenticated" {
			logins++
			fmt.Fprint(w, loginOKBody)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.sess = session{token: "rejected", issuedAt: time.Now()}

	_, err := c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, logins, "exactly one re-login attempt")
}

func TestDo_ClientErrorMappedWithoutRetry(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/authenticated" {
			fmt.Fprint(w, loginOKBody)
			return
		}
		requests++
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<error>no such system</error>")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.do(context.Background(), apiRequest{method: http.MethodGet, path: "/systems/nope/status"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "no such system")
	assert.Equal(t, 1, requests, "4xx must not be retried")
}

func TestSend_TransientFailureRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			// Drop the connection before writing a response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		fmt.Fprint(w, "<pong/>")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	status, body, err := c.send(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<pong/>", string(body))
	assert.Equal(t, 3, attempts)
}

func TestSend_RetryBudgetExhausted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		hj, _ := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, _, err := c.send(context.Background(), apiRequest{method: http.MethodGet, path: "/ping"})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestFetchXML_ParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/authenticated" {
			fmt.Fprint(w, loginOKBody)
			return
		}
		fmt.Fprint(w, "<status><unclosed>")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.fetchXML(context.Background(), "/broken")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotNil(t, apiErr.Err)
}

func TestExcerpt_Capped(t *testing.T) {
	long := strings.Repeat("x", 2*bodyExcerptLimit)
	got := excerpt([]byte(long))
	assert.Len(t, got, bodyExcerptLimit+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(io.EOF))
	assert.True(t, isTransient(fmt.Errorf("write: %w", syscall.ECONNRESET)))
	assert.True(t, isTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.False(t, isTransient(errors.New("boom")))
	assert.False(t, isTransient(context.Canceled))
}

func TestEncodeForm(t *testing.T) {
	got := encodeForm(map[string][]string{"data": {"<a b=\"1\"/>"}})
	assert.Equal(t, "data=%3Ca%20b%3D%221%22%2F%3E", got)
}
