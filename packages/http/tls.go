package http

import (
	"crypto/tls"
	"net/http"
)

// InsecureTLSConfig returns a TLS config that accepts any certificate chain
// and any host name. Development only.
func InsecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec
}

// IgnoreAllSSLErrors returns a copy of t that skips certificate and host name
// verification. Development only.
func IgnoreAllSSLErrors(t *http.Transport) *http.Transport {
	c := t.Clone()
	if c.TLSClientConfig == nil {
		c.TLSClientConfig = InsecureTLSConfig()
	} else {
		c.TLSClientConfig.InsecureSkipVerify = true
	}
	return c
}
