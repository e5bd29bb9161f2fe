package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenServer struct {
	*httptest.Server
	issued atomic.Int32
}

func newTokenServer(t *testing.T, expiresIn int) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "app" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client","error_description":"bad credentials"}`)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") == "password" && r.PostForm.Get("username") != "ada" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		n := ts.issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":%d,"scope":%q}`, n, expiresIn, r.PostForm.Get("scope"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"client credentials", Config{TokenURL: "http://x/token", ClientID: "app"}, false},
		{"password", Config{TokenURL: "http://x/token", ClientID: "app", GrantType: Password, Username: "ada"}, false},
		{"no url", Config{ClientID: "app"}, true},
		{"no client", Config{TokenURL: "http://x/token"}, true},
		{"password without user", Config{TokenURL: "http://x/token", ClientID: "app", GrantType: Password}, true},
		{"unknown grant", Config{TokenURL: "http://x/token", ClientID: "app", GrantType: "implicit"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSourceCachesToken(t *testing.T) {
	ts := newTokenServer(t, 3600)
	src := NewSource(Config{TokenURL: ts.URL, ClientID: "app", ClientSecret: "s3cret", Scopes: []string{"read", "write"}}, nil)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "read write", tok.Scope)
	assert.False(t, tok.IsExpired())

	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)

	src.Invalidate()
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.AccessToken)
}

func TestSourceRefreshesExpiredToken(t *testing.T) {
	// tokens shorter than the skew are stale on arrival
	ts := newTokenServer(t, 10)
	src := NewSource(Config{TokenURL: ts.URL, ClientID: "app", ClientSecret: "s3cret"}, nil)

	for range 3 {
		_, err := src.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), ts.issued.Load())
}

func TestSourceErrors(t *testing.T) {
	ts := newTokenServer(t, 3600)

	_, err := NewSource(Config{TokenURL: ts.URL, ClientID: "app", ClientSecret: "wrong"}, nil).Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")

	_, err = NewSource(Config{TokenURL: ts.URL, ClientID: "app", ClientSecret: "s3cret", GrantType: Password, Username: "bob"}, nil).Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenExpiry(t *testing.T) {
	assert.False(t, (&Token{}).IsExpired())
	assert.True(t, (&Token{ExpiresAt: time.Now().Add(10 * time.Second)}).IsExpired())
	assert.False(t, (&Token{ExpiresAt: time.Now().Add(time.Hour)}).IsExpired())
	assert.Equal(t, "Bearer abc", (&Token{AccessToken: "abc", TokenType: "bearer"}).authorization())
	assert.Equal(t, "MAC abc", (&Token{AccessToken: "abc", TokenType: "MAC"}).authorization())
}

func TestMiddleware(t *testing.T) {
	ts := newTokenServer(t, 3600)

	var rejected atomic.Bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		// the first token is revoked after one use
		if auth == "Bearer tok-1" && !rejected.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		fmt.Fprintf(w, "%s %s", auth, r.PostForm.Get("n"))
	}))
	defer api.Close()

	client := nicehttp.NewClient(nicehttp.WithMiddleware(Middleware(Config{
		TokenURL:     ts.URL,
		ClientID:     "app",
		ClientSecret: "s3cret",
	})))
	ctx := context.Background()

	resp, err := client.Get(ctx, api.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1 ", resp.String())

	resp, err = client.Post(ctx, api.URL, nicehttp.Data(map[string]string{"n": "2"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer tok-2 2", resp.String())
	assert.Equal(t, int32(2), ts.issued.Load())
}

func TestMiddlewareTokenFailure(t *testing.T) {
	ts := newTokenServer(t, 3600)
	client := nicehttp.NewClient(nicehttp.WithMiddleware(Middleware(Config{
		TokenURL:     ts.URL,
		ClientID:     "app",
		ClientSecret: "nope",
	})))

	_, err := client.Get(context.Background(), ts.URL)
	assert.ErrorContains(t, err, "invalid_client")
}
