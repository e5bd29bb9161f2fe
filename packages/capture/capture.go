package capture

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// Source is where a captured value comes from.
type Source string

const (
	Body     Source = "body"
	Header   Source = "header"
	Cookie   Source = "cookie"
	Status   Source = "status"
	Duration Source = "duration"
)

// ErrNotFound reports a capture whose value is absent from the response.
var ErrNotFound = errors.New("value not found")

// Capture binds a name to a value in a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads an expression such as body.data.id or header.X-Token.
func Parse(name, expr string) (*Capture, error) {
	if name == "" {
		return nil, errors.New("capture name is empty")
	}
	src, path, _ := strings.Cut(strings.TrimSpace(expr), ".")
	c := &Capture{Name: name, Source: Source(src), Path: path}

	switch c.Source {
	case Body:
	case Header, Cookie:
		if path == "" {
			return nil, fmt.Errorf("capture %s: %s needs a name", name, src)
		}
	case Status, Duration:
		if path != "" {
			return nil, fmt.Errorf("capture %s: %s takes no path", name, src)
		}
	default:
		return nil, fmt.Errorf("capture %s: unknown source %q", name, src)
	}
	return c, nil
}

// ParseAll parses a name to expression map in name order.
func ParseAll(exprs map[string]string) ([]*Capture, error) {
	captures := make([]*Capture, 0, len(exprs))
	for _, name := range slices.Sorted(maps.Keys(exprs)) {
		c, err := Parse(name, exprs[name])
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

// Extract returns the captured value as text.
func Extract(resp *nicehttp.Response, c *Capture) (string, error) {
	switch c.Source {
	case Status:
		return strconv.Itoa(resp.StatusCode), nil
	case Duration:
		return strconv.FormatInt(resp.Duration.Milliseconds(), 10), nil
	case Header:
		if v := resp.Header.Get(c.Path); v != "" {
			return v, nil
		}
	case Cookie:
		if v, ok := resp.Cookies()[c.Path]; ok {
			return v, nil
		}
	case Body:
		if c.Path == "" {
			return resp.Text()
		}
		result, err := resp.Get(c.Path)
		if err != nil {
			return "", fmt.Errorf("capture %s: %w", c.Name, err)
		}
		if result.Exists() {
			return result.String(), nil
		}
	}
	return "", fmt.Errorf("capture %s: %w", c.Name, ErrNotFound)
}

// ExtractAll returns every capture that resolved and the errors of those
// that did not.
func ExtractAll(resp *nicehttp.Response, captures []*Capture) (map[string]string, error) {
	values := make(map[string]string, len(captures))
	var errs []error
	for _, c := range captures {
		v, err := Extract(resp, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[c.Name] = v
	}
	return values, errors.Join(errs...)
}
