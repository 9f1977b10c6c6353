package infinity

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"syscall"

	"github.com/beevik/etree"
	"github.com/cenkalti/backoff"
)

const bodyExcerptLimit = 512

// apiRequest describes one portal call. form holds decoded POST body
// parameters; they are folded into the OAuth signature and transmitted
// form-encoded. Most endpoints speak XML; login and keepalive ask for JSON.
type apiRequest struct {
	method     string
	path       string
	form       url.Values
	acceptJSON bool
}

// do issues a signed request with the current session, re-authenticating
// exactly once when the portal rejects the signature, and maps any non-2xx
// outcome to a typed error.
func (c *Client) do(ctx context.Context, req apiRequest) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	// The portal answers 401 with "signature doesn't match" when the
	// access token has expired server-side.
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if c.logger != nil {
			c.logger.Infow("session rejected, re-authenticating", "path", req.path, "status", status)
		}
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		status, body, err = c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, &AuthenticationError{Message: "rejected after re-login: " + excerpt(body)}
		}
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: excerpt(body)}
	}
	return body, nil
}

// send signs and transmits one request, retrying transient network failures
// with a constant short backoff. Non-2xx statuses are returned to the caller
// untouched; they are never retried here.
func (c *Client) send(ctx context.Context, req apiRequest) (int, []byte, error) {
	fullURL := c.baseURL + req.path

	var status int
	var body []byte
	attempt := func() error {
		var err error
		status, body, err = c.roundTrip(ctx, req, fullURL)
		if err != nil {
			if isTransient(err) {
				if c.logger != nil {
					c.logger.Warnw("transient network failure, retrying", "path", req.path, "error", err)
				}
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryWait), c.retryCount)
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return 0, nil, err
	}
	return status, body, nil
}

// roundTrip performs a single signed HTTP exchange. A fresh nonce and
// timestamp are computed per attempt; a SignedRequest is never reused.
func (c *Client) roundTrip(ctx context.Context, req apiRequest, fullURL string) (int, []byte, error) {
	auth := c.signer.AuthorizationHeader(req.method, fullURL, c.username, c.sess.token, req.form)

	var bodyReader io.Reader
	if req.form != nil {
		bodyReader = strings.NewReader(encodeForm(req.form))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, fullURL, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", auth)
	httpReq.Header.Set("featureset", "CONSUMER_PORTAL")
	if req.acceptJSON {
		httpReq.Header.Set("Accept", "application/json")
	} else {
		httpReq.Header.Set("Accept", "application/xml")
	}
	if req.form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	if c.logger != nil {
		c.logger.Debugw("request completed", "method", req.method, "path", req.path, "status", resp.StatusCode)
	}
	return resp.StatusCode, data, nil
}

// fetchXML issues a signed GET and parses the XML response body.
func (c *Client) fetchXML(ctx context.Context, path string) (*etree.Document, error) {
	body, err := c.do(ctx, apiRequest{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Body: excerpt(body), Err: err}
	}
	if doc.Root() == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Body: excerpt(body), Err: errors.New("empty XML document")}
	}
	return doc, nil
}

// encodeForm percent-encodes form parameters the way the portal expects:
// RFC 3986 escaping on both keys and values, no '+' for spaces.
func encodeForm(form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range form[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(percentEncode(k))
			b.WriteByte('=')
			b.WriteString(percentEncode(v))
		}
	}
	return b.String()
}

// isTransient reports whether a network failure is worth an immediate retry.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}

// excerpt truncates a response body for inclusion in error messages.
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerptLimit {
		return s[:bodyExcerptLimit] + "..."
	}
	return s
}
