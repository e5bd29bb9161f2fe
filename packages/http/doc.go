// Package http is a convenience layer over net/http for application code
// that issues many small requests.
//
// It adds:
//   - One method per verb taking functional request options
//   - Header, referer, cookie and query parameter merging with client defaults
//   - Body negotiation between raw, form, JSON and multipart inputs
//   - Lazy responses with size-capped, charset-aware text, HTML and parsed views
//   - Sessions that replay cookies set by earlier responses
//   - A forced response cache, transport middlewares and request throttling
//   - TLS verification bypass and DNS-over-HTTPS dialing for development
package http
