package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func computes a value from the call's arguments.
type Func func(args []string) (string, error)

// Registry maps function names to implementations.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.funcs["uuid"] = func([]string) (string, error) { return uuid.NewString(), nil }
	r.funcs["now"] = func([]string) (string, error) { return time.Now().UTC().Format(time.RFC3339), nil }
	r.funcs["timestamp"] = func([]string) (string, error) { return strconv.FormatInt(time.Now().Unix(), 10), nil }
	r.funcs["timestampMs"] = func([]string) (string, error) { return strconv.FormatInt(time.Now().UnixMilli(), 10), nil }
	r.funcs["date"] = funcDate
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = unary(func(s string) (string, error) { return base64.StdEncoding.EncodeToString([]byte(s)), nil })
	r.funcs["base64Decode"] = unary(func(s string) (string, error) {
		b, err := base64.StdEncoding.DecodeString(s)
		return string(b), err
	})
	r.funcs["urlEncode"] = unary(func(s string) (string, error) { return url.QueryEscape(s), nil })
	r.funcs["sha256"] = unary(func(s string) (string, error) {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:]), nil
	})
	return r
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var callPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr has the shape of a function call.
func IsCall(expr string) bool {
	return callPattern.MatchString(expr)
}

// Call evaluates an expression such as randomString(8).
func (r *Registry) Call(expr string) (string, error) {
	m := callPattern.FindStringSubmatch(expr)
	if m == nil {
		return "", fmt.Errorf("not a function call: %q", expr)
	}
	fn, ok := r.funcs[m[1]]
	if !ok {
		return "", fmt.Errorf("unknown function %q", m[1])
	}
	v, err := fn(parseArgs(m[2]))
	if err != nil {
		return "", fmt.Errorf("%s: %w", m[1], err)
	}
	return v, nil
}

// parseArgs splits on commas outside single or double quotes.
func parseArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		args  []string
		cur   strings.Builder
		quote byte
	)
	for i := range len(s) {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(cur.String()))
}

func unary(fn func(string) (string, error)) Func {
	return func(args []string) (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("want 1 argument, got %d", len(args))
		}
		return fn(args[0])
	}
}

func funcDate(args []string) (string, error) {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout), nil
}

func funcRandom(args []string) (string, error) {
	lo, hi := 0, 100
	if len(args) == 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return "", fmt.Errorf("min %q is not an integer", args[0])
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return "", fmt.Errorf("max %q is not an integer", args[1])
		}
	}
	if hi < lo {
		return "", fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return strconv.Itoa(lo + rand.IntN(hi-lo+1)), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, error) {
	n := 16
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
			return "", fmt.Errorf("length %q is not a non-negative integer", args[0])
		}
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b), nil
}
