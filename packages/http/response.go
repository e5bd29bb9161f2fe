package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

type bodyState int

const (
	bodyUnconsumed bodyState = iota
	bodyBounded
	bodyUnbounded
	bodyClosed
)

// Response is a completed call. The body is read at most once, by whichever
// of Text or TextLarge runs first; every later text accessor returns that
// first result.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	// URL is the final URL after redirects.
	URL       string
	Duration  time.Duration
	RequestID string

	raw         *http.Response
	parser      parser.Parser
	maxTextSize int64
	logger      *slog.Logger

	mu      sync.Mutex
	state   bodyState
	text    string
	textErr error

	doc      lazy[*html.Node]
	docLarge lazy[*html.Node]
}

func newResponse(raw *http.Response, duration time.Duration, p parser.Parser, maxTextSize int64, logger *slog.Logger) *Response {
	r := &Response{
		StatusCode:  raw.StatusCode,
		Status:      raw.Status,
		Header:      raw.Header,
		Duration:    duration,
		raw:         raw,
		parser:      p,
		maxTextSize: maxTextSize,
		logger:      logger,
	}
	if raw.Request != nil {
		r.URL = raw.Request.URL.String()
		r.RequestID = raw.Request.Header.Get(RequestIDHeader)
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Raw returns the underlying response. Reading its body directly bypasses the
// consumption tracking of the text accessors.
func (r *Response) Raw() *http.Response {
	return r.raw
}

// Text returns the body decoded as text, failing with a *SizeLimitError when
// it reaches the client's max text size.
func (r *Response) Text() (string, error) {
	return r.consume(bodyBounded)
}

// TextLarge returns the body without a size cap. If Text already consumed the
// body, its result is returned instead.
func (r *Response) TextLarge() (string, error) {
	return r.consume(bodyUnbounded)
}

func (r *Response) consume(want bodyState) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != bodyUnconsumed {
		return r.text, r.textErr
	}

	r.state = want
	ct := r.Header.Get("Content-Type")
	if want == bodyBounded {
		r.text, r.textErr = ReadBounded(r.raw.Body, ct, r.maxTextSize)
	} else {
		r.text, r.textErr = ReadUnbounded(r.raw.Body, ct)
	}
	return r.text, r.textErr
}

// Document parses Text as HTML.
func (r *Response) Document() (*html.Node, error) {
	return r.doc.get(func() (*html.Node, error) {
		return parseDocument(r.Text())
	})
}

// DocumentLarge parses TextLarge as HTML.
func (r *Response) DocumentLarge() (*html.Node, error) {
	return r.docLarge.get(func() (*html.Node, error) {
		return parseDocument(r.TextLarge())
	})
}

func parseDocument(text string, err error) (*html.Node, error) {
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// Get evaluates a gjson path against the body.
func (r *Response) Get(path string) (gjson.Result, error) {
	text, err := r.Text()
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.Valid(text) {
		return gjson.Result{}, &ParseError{Err: errors.New("body is not valid json")}
	}
	return gjson.Get(text, path), nil
}

// Parsed decodes the body into a T with the response's parser.
func Parsed[T any](r *Response) (T, error) {
	var v T
	if r.parser == nil {
		return v, &ParseError{Err: ErrNoParser}
	}
	text, err := r.Text()
	if err != nil {
		return v, err
	}
	if err := r.parser.Parse(text, &v); err != nil {
		return v, &ParseError{Err: err}
	}
	return v, nil
}

// ParsedSafe is Parsed with failures reported as false.
func ParsedSafe[T any](r *Response) (T, bool) {
	var v T
	if r.parser == nil {
		r.logger.Debug("no parser configured", "url", r.URL)
		return v, false
	}
	text, err := r.Text()
	if err != nil {
		r.logger.Debug("reading body failed", "url", r.URL, "error", err)
		return v, false
	}
	if !r.parser.ParseSafe(text, &v) {
		r.logger.Debug("parsing body failed", "url", r.URL, "type", fmt.Sprintf("%T", v))
		return v, false
	}
	return v, true
}

// Cookies returns the cookies set by this response, keyed by name.
func (r *Response) Cookies() map[string]string {
	cookies := make(map[string]string)
	for _, c := range (&http.Response{Header: r.Header}).Cookies() {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		cookies[c.Name] = c.Value
	}
	return cookies
}

// Size returns the declared Content-Length.
func (r *Response) Size() (int64, bool) {
	if r.raw.ContentLength < 0 {
		return 0, false
	}
	return r.raw.ContentLength, true
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

func (r *Response) IsSuccessful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// EnsureSuccess returns a *StatusError for non-2xx responses.
func (r *Response) EnsureSuccess() error {
	if r.IsSuccessful() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, URL: r.URL}
}

// Close releases an unread body. Text accessors called afterwards fail with
// ErrBodyClosed.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != bodyUnconsumed {
		return nil
	}
	r.state = bodyClosed
	r.textErr = ErrBodyClosed

	_, _ = io.CopyN(io.Discard, r.raw.Body, 4<<10)
	if err := r.raw.Body.Close(); err != nil {
		r.logger.Error("closing response body", "url", r.URL, "error", err)
		return err
	}
	return nil
}

// String returns the body text, or an empty string if it cannot be read.
func (r *Response) String() string {
	text, err := r.Text()
	if err != nil {
		return ""
	}
	return text
}
