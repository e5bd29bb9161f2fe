package env

import (
	"maps"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/nicehttp/packages/builtin"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives placeholders that could not be resolved.
type WarnFunc func(format string, args ...any)

// Resolver substitutes placeholders. It is safe for concurrent use, so
// parallel steps can resolve while others record captures.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	captures  map[string]string
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		captures:  make(map[string]string),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets the callback for unresolved placeholders.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.Copy(r.variables, vars)
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture records a captured value under both name and step.name.
// Captures shadow variables of the same name.
func (r *Resolver) SetCapture(step, name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[name] = value
	if step != "" {
		r.captures[step+"."+name] = value
	}
}

// Lookup returns the value of a variable or capture.
func (r *Resolver) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) resolveExpr(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		return os.LookupEnv(name)
	}
	if builtin.IsCall(expr) {
		v, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function %s: %v", expr, err)
			return "", false
		}
		return v, true
	}
	return r.Lookup(expr)
}

// Resolve replaces every resolvable placeholder in input.
func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := r.resolveExpr(expr); ok {
			return v
		}
		r.warn("unresolved placeholder %s", match)
		return match
	})
}

// ResolveMap resolves every value of m into a new map.
func (r *Resolver) ResolveMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = r.Resolve(v)
	}
	return out
}

// ResolveValue resolves the strings nested in a decoded YAML or JSON value.
func (r *Resolver) ResolveValue(v any) any {
	switch t := v.(type) {
	case string:
		return r.Resolve(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = r.ResolveValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.ResolveValue(e)
		}
		return out
	}
	return v
}

// Unresolved lists the placeholders in input that name neither a variable
// nor a capture, in order of appearance. Functions and environment
// variables are not checked.
func (r *Resolver) Unresolved(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
			continue
		}
		if _, ok := r.Lookup(expr); !ok {
			names = append(names, expr)
		}
	}
	return names
}

// Clone copies variables and captures into an independent resolver.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewResolver()
	maps.Copy(c.variables, r.variables)
	maps.Copy(c.captures, r.captures)
	c.warnFunc = r.warnFunc
	return c
}
