package infinity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer computes OAuth 1.0a HMAC-SHA1 authorization headers for portal
// requests. The zero value is not usable; NewSigner fills in the defaults.
//
// The portal verifies signatures against an http:// base URL even though all
// traffic travels over https. SigningScheme carries that substitution as an
// explicit setting so it is never inferred from the request URL.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	SigningScheme  string

	// Nonce and Now are injectable for deterministic tests.
	Nonce func() string
	Now   func() time.Time
}

// NewSigner returns a Signer using the given consumer credentials, a random
// nonce source, and the portal's http signing scheme.
func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		SigningScheme:  "http",
		Nonce:          randomNonce,
		Now:            time.Now,
	}
}

// randomNonce returns base64 of 12 random bytes, matching the portal's
// expected nonce shape.
func randomNonce() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("infinity: crypto/rand unavailable: " + err.Error())
	}
	return base64.StdEncoding.EncodeToString(b)
}

// AuthorizationHeader produces the complete "OAuth ..." header value for one
// request. token is the account username (the portal uses it as oauth_token);
// tokenSecret is the session access token, empty before login. bodyParams are
// the decoded form parameters of a POST body and are folded into the
// signature but not into the transmitted header.
func (s *Signer) AuthorizationHeader(method, rawURL, token, tokenSecret string, bodyParams url.Values) string {
	timestamp := strconv.FormatInt(s.Now().Unix(), 10)
	nonce := s.Nonce()

	oauthParams := []param{
		{"oauth_consumer_key", s.ConsumerKey},
		{"oauth_token", token},
		{"oauth_signature_method", "HMAC-SHA1"},
		{"oauth_timestamp", timestamp},
		{"oauth_nonce", nonce},
		{"oauth_version", "1.0"},
	}

	sigParams := make([]param, 0, len(oauthParams)+len(bodyParams))
	sigParams = append(sigParams, oauthParams...)
	for k, vs := range bodyParams {
		for _, v := range vs {
			sigParams = append(sigParams, param{k, v})
		}
	}

	signature := s.signature(method, rawURL, tokenSecret, sigParams)

	var b strings.Builder
	b.WriteString("OAuth realm=")
	b.WriteString(percentEncode(stripScheme(rawURL)))
	for _, p := range oauthParams {
		b.WriteString(",")
		b.WriteString(p.key)
		b.WriteString("=")
		b.WriteString(p.value)
	}
	b.WriteString(",oauth_signature=")
	b.WriteString(percentEncode(signature))
	return b.String()
}

// signature computes Base64(HMAC-SHA1(signing key, base string)).
func (s *Signer) signature(method, rawURL, tokenSecret string, params []param) string {
	base := s.baseString(method, rawURL, params)
	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseString builds the three-part signature base string. The URL's scheme is
// replaced with SigningScheme before encoding; the request itself still goes
// out over the real scheme.
func (s *Signer) baseString(method, rawURL string, params []param) string {
	sorted := make([]param, len(params))
	copy(sorted, params)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].key != sorted[j].key {
			return sorted[i].key < sorted[j].key
		}
		return sorted[i].value < sorted[j].value
	})

	pairs := make([]string, len(sorted))
	for i, p := range sorted {
		pairs[i] = percentEncode(p.key) + "=" + percentEncode(p.value)
	}
	paramString := strings.Join(pairs, "&")

	sigURL := s.SigningScheme + "://" + stripScheme(rawURL)
	return strings.ToUpper(method) + "&" + percentEncode(sigURL) + "&" + percentEncode(paramString)
}

type param struct {
	key   string
	value string
}

// stripScheme drops a leading http:// or https:// from a URL.
func stripScheme(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "https://")
	return strings.TrimPrefix(rest, "http://")
}

// percentEncode applies RFC 3986 encoding: everything except unreserved
// characters (ALPHA / DIGIT / "-" / "." / "_" / "~") becomes %XX.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
