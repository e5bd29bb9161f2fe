// Package doh resolves host names over DNS-over-HTTPS (RFC 8484) and dials
// through the resolved addresses.
//
// The resolver's own host is reached through bootstrap IP literals so that
// resolving it does not depend on the system resolver.
package doh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/dns/dnsmessage"
)

const (
	// DefaultTimeout bounds a single DNS query.
	DefaultTimeout = 10 * time.Second

	mediaType      = "application/dns-message"
	maxMessageSize = 65535
)

// Resolver sends A and AAAA queries to a DNS-over-HTTPS endpoint.
type Resolver struct {
	endpoint  string
	host      string
	bootstrap []netip.Addr
	client    *http.Client
	timeout   time.Duration
	dialer    *net.Dialer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the client used for queries. Bootstrap addresses
// are not applied to a custom client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithTimeout bounds each query.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// NewResolver returns a resolver for endpoint. Every bootstrap entry must be
// an IP literal.
func NewResolver(endpoint string, bootstrap []string, opts ...Option) (*Resolver, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid resolver url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported resolver url scheme: %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.New("resolver url must have a host")
	}

	addrs := make([]netip.Addr, 0, len(bootstrap))
	for _, s := range bootstrap {
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap address %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}

	r := &Resolver{
		endpoint:  endpoint,
		host:      u.Hostname(),
		bootstrap: addrs,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dialer = &net.Dialer{Timeout: r.timeout, KeepAlive: 30 * time.Second}

	if r.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = r.bootstrapDial
		r.client = &http.Client{Transport: transport}
	}

	return r, nil
}

// Endpoint returns the resolver URL.
func (r *Resolver) Endpoint() string {
	return r.endpoint
}

func (r *Resolver) bootstrapDial(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host != r.host || len(r.bootstrap) == 0 {
		return r.dialer.DialContext(ctx, network, address)
	}
	return r.dialEach(ctx, network, r.bootstrap, port)
}

// LookupIP returns the IPv4 and IPv6 addresses of host. IP literals are
// returned as is.
func (r *Resolver) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}

	var (
		addrs   []netip.Addr
		lastErr error
	)
	for _, qtype := range []dnsmessage.Type{dnsmessage.TypeA, dnsmessage.TypeAAAA} {
		found, err := r.query(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) > 0 {
		return addrs, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, Server: r.endpoint, IsNotFound: true}
}

func (r *Resolver) query(ctx context.Context, host string, qtype dnsmessage.Type) ([]netip.Addr, error) {
	name, err := dnsmessage.NewName(strings.TrimSuffix(host, ".") + ".")
	if err != nil {
		return nil, fmt.Errorf("invalid host name %q: %w", host, err)
	}

	msg := dnsmessage.Message{
		Header: dnsmessage.Header{RecursionDesired: true},
		Questions: []dnsmessage.Question{
			{Name: name, Type: qtype, Class: dnsmessage.ClassINET},
		},
	}
	packed, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("packing dns query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Accept", mediaType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dns query for %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dns query for %s: resolver returned %s", host, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageSize))
	if err != nil {
		return nil, fmt.Errorf("reading dns answer: %w", err)
	}

	return parseAnswer(body)
}

func parseAnswer(body []byte) ([]netip.Addr, error) {
	var p dnsmessage.Parser
	h, err := p.Start(body)
	if err != nil {
		return nil, fmt.Errorf("parsing dns answer: %w", err)
	}
	switch h.RCode {
	case dnsmessage.RCodeSuccess:
	case dnsmessage.RCodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("dns answer: %s", h.RCode)
	}

	if err := p.SkipAllQuestions(); err != nil {
		return nil, fmt.Errorf("parsing dns answer: %w", err)
	}

	var addrs []netip.Addr
	for {
		ah, err := p.AnswerHeader()
		if errors.Is(err, dnsmessage.ErrSectionDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing dns answer: %w", err)
		}

		switch ah.Type {
		case dnsmessage.TypeA:
			rr, err := p.AResource()
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, netip.AddrFrom4(rr.A))
		case dnsmessage.TypeAAAA:
			rr, err := p.AAAAResource()
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, netip.AddrFrom16(rr.AAAA))
		default:
			if err := p.SkipAnswer(); err != nil {
				return nil, err
			}
		}
	}
	return addrs, nil
}

// DialContext resolves the host of address over DoH and dials the resulting
// addresses in order until one connects. It fits http.Transport.DialContext.
func (r *Resolver) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	addrs, err := r.LookupIP(ctx, host)
	if err != nil {
		return nil, err
	}
	return r.dialEach(ctx, network, addrs, port)
}

func (r *Resolver) dialEach(ctx context.Context, network string, addrs []netip.Addr, port string) (net.Conn, error) {
	var lastErr error
	for _, addr := range addrs {
		if network == "tcp4" && !addr.Is4() || network == "tcp6" && !addr.Is6() {
			continue
		}
		conn, err := r.dialer.DialContext(ctx, network, net.JoinHostPort(addr.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no %s address to dial", network)
	}
	return nil, lastErr
}
