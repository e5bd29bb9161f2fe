package http

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// countingBody counts reads so tests can tell whether the stream was reused.
type countingBody struct {
	r      io.Reader
	reads  atomic.Int32
	closed atomic.Bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	b.reads.Add(1)
	return b.r.Read(p)
}

func (b *countingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func testResponse(status int, header http.Header, text string, maxTextSize int64) (*Response, *countingBody) {
	b := &countingBody{r: strings.NewReader(text)}
	if header == nil {
		header = make(http.Header)
	}
	raw := &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		Body:          b,
		ContentLength: int64(len(text)),
	}
	return newResponse(raw, 0, parser.NewJSON(), maxTextSize, nil), b
}

func TestResponse_TextIsIdempotent(t *testing.T) {
	resp, b := testResponse(200, nil, "hello", 0)

	first, err := resp.Text()
	require.NoError(t, err)
	reads := b.reads.Load()

	second, err := resp.Text()
	require.NoError(t, err)

	assert.Equal(t, "hello", first)
	assert.Equal(t, first, second)
	assert.Equal(t, reads, b.reads.Load(), "second call must not touch the stream")
	assert.True(t, b.closed.Load())
}

func TestResponse_TextLargeAfterTextReturnsBoundedResult(t *testing.T) {
	resp, b := testResponse(200, nil, "123456789", 5)

	_, err := resp.Text()
	assert.ErrorIs(t, err, ErrSizeLimitExceeded)
	reads := b.reads.Load()

	_, err = resp.TextLarge()
	assert.ErrorIs(t, err, ErrSizeLimitExceeded)
	assert.Equal(t, reads, b.reads.Load())
}

func TestResponse_TextAfterTextLargeReturnsUnboundedResult(t *testing.T) {
	resp, _ := testResponse(200, nil, "123456789", 5)

	large, err := resp.TextLarge()
	require.NoError(t, err)
	assert.Equal(t, "123456789", large)

	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, large, text)
}

func TestResponse_ConcurrentFirstAccess(t *testing.T) {
	payload := strings.Repeat("abc", 10000)
	resp, _ := testResponse(200, nil, payload, 0)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				results[i], _ = resp.Text()
			} else {
				results[i], _ = resp.TextLarge()
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, payload, r)
	}
}

func TestResponse_Document(t *testing.T) {
	resp, _ := testResponse(200, http.Header{"Content-Type": {"text/html"}},
		`<html><head><title>Nice</title></head><body><p>x</p></body></html>`, 0)

	doc, err := resp.Document()
	require.NoError(t, err)

	again, err := resp.Document()
	require.NoError(t, err)
	assert.Same(t, doc, again)

	assert.Equal(t, "Nice", findText(doc, "title"))
}

func TestResponse_DocumentLargeSharesTheFirstRead(t *testing.T) {
	resp, _ := testResponse(200, nil, `<p>big</p>`, 5)

	doc, err := resp.DocumentLarge()
	require.NoError(t, err)
	assert.Equal(t, "big", findText(doc, "p"))

	_, err = resp.Document()
	require.NoError(t, err, "bounded view reuses the unbounded text")
}

func TestResponse_DocumentPropagatesSizeLimit(t *testing.T) {
	resp, _ := testResponse(200, nil, strings.Repeat("<p>x</p>", 10), 8)

	_, err := resp.Document()
	assert.ErrorIs(t, err, ErrSizeLimitExceeded)
}

func findText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findText(c, tag); s != "" {
			return s
		}
	}
	return ""
}

func TestResponse_Get(t *testing.T) {
	resp, _ := testResponse(200, nil, `{"user":{"name":"ada","tags":["a","b"]}}`, 0)

	name, err := resp.Get("user.name")
	require.NoError(t, err)
	assert.Equal(t, "ada", name.String())

	count, err := resp.Get("user.tags.#")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Int())

	bad, _ := testResponse(200, nil, `<html>`, 0)
	_, err = bad.Get("user")
	assert.ErrorIs(t, err, ErrParse)
}

type user struct {
	Name string `json:"name"`
}

func TestParsed(t *testing.T) {
	resp, _ := testResponse(200, nil, `{"name":"ada"}`, 0)

	u, err := Parsed[user](resp)
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Name)

	bad, _ := testResponse(200, nil, `not json`, 0)
	_, err = Parsed[user](bad)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParsed_NoParser(t *testing.T) {
	resp, _ := testResponse(200, nil, `{"name":"ada"}`, 0)
	resp.parser = nil

	_, err := Parsed[user](resp)
	assert.ErrorIs(t, err, ErrNoParser)
	assert.ErrorIs(t, err, ErrParse)

	_, ok := ParsedSafe[user](resp)
	assert.False(t, ok)
}

func TestParsedSafe(t *testing.T) {
	resp, _ := testResponse(200, nil, `{"name":"ada"}`, 0)
	u, ok := ParsedSafe[user](resp)
	assert.True(t, ok)
	assert.Equal(t, "ada", u.Name)

	bad, _ := testResponse(200, nil, `{"name":`, 0)
	u, ok = ParsedSafe[user](bad)
	assert.False(t, ok)
	assert.Empty(t, u.Name)
}

func TestResponse_Cookies(t *testing.T) {
	resp, _ := testResponse(200, http.Header{"Set-Cookie": {
		"session=abc; Path=/; HttpOnly",
		"lang=en",
		"lang=fr",
	}}, "", 0)

	assert.Equal(t, map[string]string{"session": "abc", "lang": "fr"}, resp.Cookies())
}

func TestResponse_Size(t *testing.T) {
	resp, _ := testResponse(200, nil, "12345", 0)
	size, ok := resp.Size()
	assert.True(t, ok)
	assert.Equal(t, int64(5), size)

	resp.raw.ContentLength = -1
	_, ok = resp.Size()
	assert.False(t, ok)
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{200, true},
		{201, true},
		{299, true},
		{300, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp, _ := testResponse(tt.status, nil, "", 0)
		assert.Equal(t, tt.expected, resp.IsSuccessful(), "status %d", tt.status)
	}
}

func TestResponse_EnsureSuccess(t *testing.T) {
	ok, _ := testResponse(204, nil, "", 0)
	assert.NoError(t, ok.EnsureSuccess())

	notFound, _ := testResponse(404, nil, "", 0)
	notFound.URL = "https://x/missing"
	err := notFound.EnsureSuccess()

	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "https://x/missing")
}

func TestResponse_Close(t *testing.T) {
	resp, b := testResponse(200, nil, "unread", 0)

	require.NoError(t, resp.Close())
	assert.True(t, b.closed.Load())

	_, err := resp.Text()
	assert.ErrorIs(t, err, ErrBodyClosed)
	assert.Empty(t, resp.String())
}

func TestResponse_CloseAfterReadIsNoop(t *testing.T) {
	resp, _ := testResponse(200, nil, "read", 0)
	assert.Equal(t, "read", resp.String())

	require.NoError(t, resp.Close())
	assert.Equal(t, "read", resp.String())
}
