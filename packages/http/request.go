package http

import (
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
)

// Request describes one call. Zero values mean "use the client default".
// Body inputs are mutually exclusive; see [Negotiate] for which one wins.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Referer string
	Params  map[string]*string
	Cookies map[string]string
	Data    map[string]string
	Files   []File
	JSON    any
	Body    *RawBody
	Timeout time.Duration
	Parser  parser.Parser

	AllowRedirects *bool
	CacheTime      *time.Duration
	Verify         *bool
	Interceptor    Middleware
}

// RequestOption configures a Request.
type RequestOption func(*Request)

func NewRequest(method, requestURL string, opts ...RequestOption) *Request {
	r := &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
		Params:  make(map[string]*string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Headers adds per-call headers. They override client default headers.
func Headers(headers map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range headers {
			r.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}
}

func Header(key, value string) RequestOption {
	return func(r *Request) {
		r.Headers[http.CanonicalHeaderKey(key)] = value
	}
}

// Referer sets the Referer header, overriding any other source.
func Referer(referer string) RequestOption {
	return func(r *Request) {
		r.Referer = referer
	}
}

func Params(params map[string]string) RequestOption {
	return func(r *Request) {
		for k, v := range params {
			r.Params[k] = &v
		}
	}
}

// NullableParams adds query parameters; nil values are left out of the URL.
func NullableParams(params map[string]*string) RequestOption {
	return func(r *Request) {
		for k, v := range params {
			r.Params[k] = v
		}
	}
}

func Param(key, value string) RequestOption {
	return func(r *Request) {
		r.Params[key] = &value
	}
}

// Cookies adds cookies sent in the Cookie header. They override session and
// client default cookies of the same name.
func Cookies(cookies map[string]string) RequestOption {
	return func(r *Request) {
		if r.Cookies == nil {
			r.Cookies = make(map[string]string, len(cookies))
		}
		for k, v := range cookies {
			r.Cookies[k] = v
		}
	}
}

func Cookie(name, value string) RequestOption {
	return Cookies(map[string]string{name: value})
}

// Data sends fields as a url-encoded form. An empty, non-nil map still
// selects an (empty) form body.
func Data(fields map[string]string) RequestOption {
	return func(r *Request) {
		if r.Data == nil {
			r.Data = make(map[string]string, len(fields))
		}
		for k, v := range fields {
			r.Data[k] = v
		}
	}
}

// Files sends a multipart body.
func Files(files ...File) RequestOption {
	return func(r *Request) {
		r.Files = append(r.Files, files...)
	}
}

// JSON sends v as the body. Strings are sent as text/plain; use JSONString
// for pre-encoded JSON.
func JSON(v any) RequestOption {
	return func(r *Request) {
		r.JSON = v
	}
}

// Body sends data unchanged with the given content type.
func Body(data []byte, contentType string) RequestOption {
	return func(r *Request) {
		r.Body = &RawBody{Data: data, ContentType: contentType}
	}
}

func AllowRedirects(follow bool) RequestOption {
	return func(r *Request) {
		r.AllowRedirects = &follow
	}
}

// Cache serves GET responses younger than d from the client's cache store.
// Zero disables the cache for this call.
func Cache(d time.Duration) RequestOption {
	return func(r *Request) {
		r.CacheTime = &d
	}
}

func Timeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}

// Interceptor wraps the transport for this call only, inside the client's
// own middlewares.
func Interceptor(mw Middleware) RequestOption {
	return func(r *Request) {
		r.Interceptor = mw
	}
}

// Verify toggles TLS verification for this call. Verify(false) accepts any
// certificate and is meant for development only.
func Verify(verify bool) RequestOption {
	return func(r *Request) {
		r.Verify = &verify
	}
}

// Parser overrides the client's parser for the request body and the
// response accessors.
func Parser(p parser.Parser) RequestOption {
	return func(r *Request) {
		r.Parser = p
	}
}
