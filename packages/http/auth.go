package http

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// BasicAuth sets an Authorization header with HTTP basic credentials.
func BasicAuth(username, password string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			r2 := r.Clone(r.Context())
			r2.SetBasicAuth(username, password)
			return next.RoundTrip(r2)
		})
	}
}

// DigestAuth answers a Digest challenge. The first attempt goes out without
// credentials; a 401 carrying a Digest WWW-Authenticate header is retried
// once with the computed Authorization header. Requests whose body cannot be
// replayed are not retried.
func DigestAuth(username, password string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(r)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			challenge := resp.Header.Get("WWW-Authenticate")
			if !strings.HasPrefix(challenge, "Digest ") {
				return resp, nil
			}
			if r.Body != nil && r.Body != http.NoBody && r.GetBody == nil {
				return resp, nil
			}

			params := ParseWWWAuthenticate(challenge)
			auth := &digestChallenge{
				Username: username,
				Password: password,
				Realm:    params["realm"],
				Nonce:    params["nonce"],
				URI:      r.URL.RequestURI(),
				Qop:      params["qop"],
				Opaque:   params["opaque"],
				Method:   r.Method,
			}
			if auth.Qop != "" {
				auth.Nc = "00000001"
				cnonce, err := generateCnonce()
				if err != nil {
					return resp, nil
				}
				auth.Cnonce = cnonce
				// Prefer "auth" qop
				if strings.Contains(auth.Qop, "auth") {
					auth.Qop = "auth"
				}
			}

			r2 := r.Clone(r.Context())
			if r.GetBody != nil {
				body, err := r.GetBody()
				if err != nil {
					return resp, nil
				}
				r2.Body = body
			}
			r2.Header.Set("Authorization", auth.header())

			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			_ = resp.Body.Close()
			return next.RoundTrip(r2)
		})
	}
}

// digestChallenge contains the parameters needed for digest authentication
type digestChallenge struct {
	Username string
	Password string
	Realm    string
	Nonce    string
	URI      string
	Qop      string
	Nc       string
	Cnonce   string
	Opaque   string
	Method   string
}

// ParseWWWAuthenticate parses the WWW-Authenticate header from a 401 response
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	header = strings.TrimPrefix(header, "Digest ")

	// Parse key="value" pairs
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, "="); idx != -1 {
			key := strings.TrimSpace(part[:idx])
			value := strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
			result[key] = value
		}
	}

	return result
}

func (d *digestChallenge) response() string {
	// HA1 = MD5(username:realm:password)
	ha1 := md5Hash(fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))
	// HA2 = MD5(method:uri)
	ha2 := md5Hash(fmt.Sprintf("%s:%s", d.Method, d.URI))

	if d.Qop == "auth" || d.Qop == "auth-int" {
		return md5Hash(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	return md5Hash(fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

func (d *digestChallenge) header() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.response()),
	}

	if d.Qop != "" {
		parts = append(parts, "qop="+d.Qop, "nc="+d.Nc, fmt.Sprintf(`cnonce="%s"`, d.Cnonce))
	}
	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

func generateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hash(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// AWSCredentials holds credentials for AWS Signature v4 authentication
type AWSCredentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
}

// AWSSigV4 signs every request with AWS Signature Version 4, setting the
// Authorization, X-Amz-Date and X-Amz-Content-Sha256 headers.
func AWSSigV4(creds AWSCredentials) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			payload, err := replayBody(r)
			if err != nil {
				return nil, fmt.Errorf("aws sigv4: %w", err)
			}
			r2 := r.Clone(r.Context())
			if r.GetBody != nil {
				if r2.Body, err = r.GetBody(); err != nil {
					return nil, fmt.Errorf("aws sigv4: %w", err)
				}
			}
			signAWS(r2, payload, creds, time.Now().UTC())
			return next.RoundTrip(r2)
		})
	}
}

func replayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed for signing")
	}
	body, err := r.GetBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func signAWS(r *http.Request, payload []byte, creds AWSCredentials, t time.Time) {
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")
	host := r.URL.Host

	signedHeaders := "host;x-amz-date"
	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-date:%s\n", host, amzDate)

	payloadHash := sha256Hex(payload)

	canonicalURI := r.URL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonicalRequest := strings.Join([]string{
		r.Method,
		canonicalURI,
		canonicalQueryString(r.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, creds.Region, creds.Service)

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := signatureKey(creds.SecretKey, dateStamp, creds.Region, creds.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	r.Header.Set("Authorization", fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		creds.AccessKey, credentialScope, signedHeaders, signature))
	r.Header.Set("X-Amz-Date", amzDate)
	r.Header.Set("X-Amz-Content-Sha256", payloadHash)
}

func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}

	return strings.Join(pairs, "&")
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func signatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}
