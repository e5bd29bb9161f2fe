// Package oauth2 fetches OAuth2 access tokens and attaches them to requests.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// GrantType is the OAuth2 grant used to obtain tokens.
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	Password          GrantType = "password"
)

// expirySkew treats tokens as expired slightly early to absorb clock skew.
const expirySkew = 30 * time.Second

// Config describes a token endpoint and the credentials sent to it.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Username and Password are used by the password grant.
	Username  string
	Password  string
	GrantType GrantType
}

// Validate checks that the grant has what it needs.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return errors.New("oauth2: token url is required")
	}
	if c.ClientID == "" {
		return errors.New("oauth2: client id is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return errors.New("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("oauth2: unsupported grant type %q", c.GrantType)
	}
	return nil
}

// Token is an access token as returned by the token endpoint.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired reports whether the token is expired or about to be. Tokens
// without an expiry never expire.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expirySkew).After(t.ExpiresAt)
}

// authorization returns the Authorization header value.
func (t *Token) authorization() string {
	typ := t.TokenType
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// Source hands out a cached token, fetching a new one when it expires.
type Source struct {
	config    Config
	transport http.RoundTripper
	cache     *TokenCache

	// serializes fetches so concurrent requests share one token request
	fetchMu sync.Mutex
}

// NewSource returns a source sending token requests through transport, or
// http.DefaultTransport when nil.
func NewSource(config Config, transport http.RoundTripper) *Source {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Source{config: config, transport: transport, cache: NewTokenCache()}
}

func (s *Source) cacheKey() string {
	return s.config.TokenURL + "|" + s.config.ClientID + "|" + strings.Join(s.config.Scopes, ",")
}

// Token returns a valid access token.
func (s *Source) Token(ctx context.Context) (*Token, error) {
	return s.tokenVia(ctx, s.transport)
}

func (s *Source) tokenVia(ctx context.Context, rt http.RoundTripper) (*Token, error) {
	key := s.cacheKey()
	if t := s.cache.Get(key); t != nil && !t.IsExpired() {
		return t, nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if t := s.cache.Get(key); t != nil && !t.IsExpired() {
		return t, nil
	}

	t, err := s.fetch(ctx, rt)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, t)
	return t, nil
}

// Invalidate drops the cached token.
func (s *Source) Invalidate() {
	s.cache.Delete(s.cacheKey())
}

func (s *Source) fetch(ctx context.Context, rt http.RoundTripper) (*Token, error) {
	data := url.Values{}
	switch s.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", s.config.Username)
		data.Set("password", s.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(s.config.Scopes) > 0 {
		data.Set("scope", strings.Join(s.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth2: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(url.QueryEscape(s.config.ClientID), url.QueryEscape(s.config.ClientSecret))

	resp, err := rt.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("oauth2: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("oauth2: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("oauth2: token request failed: %s %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("oauth2: token request failed with status %d", resp.StatusCode)
	}

	var t Token
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("oauth2: parsing token response: %w", err)
	}
	if t.AccessToken == "" {
		return nil, errors.New("oauth2: token response has no access_token")
	}
	if t.ExpiresIn > 0 {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &t, nil
}

// Middleware authorizes requests with tokens from config's endpoint. The
// token is shared by every request of the client and token requests go
// through the rest of the chain. A 401 drops the cached token and the
// request is retried once when its body can be replayed.
func Middleware(config Config) nicehttp.Middleware {
	src := NewSource(config, nil)
	return func(next http.RoundTripper) http.RoundTripper {
		return nicehttp.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := authorized(src, next, r)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if r.Body != nil && r.Body != http.NoBody && r.GetBody == nil {
				return resp, nil
			}

			src.Invalidate()
			retry := r.Clone(r.Context())
			if r.GetBody != nil {
				body, err := r.GetBody()
				if err != nil {
					return resp, nil
				}
				retry.Body = body
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return authorized(src, next, retry)
		})
	}
}

func authorized(src *Source, next http.RoundTripper, r *http.Request) (*http.Response, error) {
	t, err := src.tokenVia(r.Context(), next)
	if err != nil {
		return nil, err
	}
	r2 := r.Clone(r.Context())
	r2.Header.Set("Authorization", t.authorization())
	return next.RoundTrip(r2)
}
