package env

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Setenv("NICEHTTP_TEST_HOST", "example.com")

	r := NewResolver()
	r.SetVariables(map[string]string{"greeting": "Hello", "name": "World", "id": "var"})
	r.SetCapture("login", "token", "abc")
	r.SetCapture("", "id", "captured")

	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello world"},
		{"{{greeting}} {{ name }}!", "Hello World!"},
		{"Bearer {{token}}", "Bearer abc"},
		{"Bearer {{login.token}}", "Bearer abc"},
		{"/items/{{id}}", "/items/captured"},
		{"https://{{$NICEHTTP_TEST_HOST}}/", "https://example.com/"},
		{"{{base64(\"a:b\")}}", "YTpi"},
		{"hello {{unknown}}", "hello {{unknown}}"},
		{"{{$NICEHTTP_TEST_UNSET_VAR}}", "{{$NICEHTTP_TEST_UNSET_VAR}}"},
		{"{{nope()}}", "{{nope()}}"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolveWarns(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{a}} {{b}}")
	assert.Equal(t, []string{"unresolved placeholder {{a}}", "unresolved placeholder {{b}}"}, warnings)
}

func TestResolveValue(t *testing.T) {
	r := NewResolver()
	r.SetVariable("user", "ada")

	got := r.ResolveValue(map[string]any{
		"name":  "{{user}}",
		"tags":  []any{"x-{{user}}", 3},
		"admin": true,
	})
	assert.Equal(t, map[string]any{
		"name":  "ada",
		"tags":  []any{"x-ada", 3},
		"admin": true,
	}, got)
}

func TestResolveMap(t *testing.T) {
	r := NewResolver()
	r.SetVariable("v", "1")

	assert.Nil(t, r.ResolveMap(nil))
	assert.Equal(t, map[string]string{"a": "1", "b": "x"}, r.ResolveMap(map[string]string{"a": "{{v}}", "b": "x"}))
}

func TestUnresolved(t *testing.T) {
	r := NewResolver()
	r.SetVariable("bar", "middle")

	assert.Nil(t, r.Unresolved("hello world"))
	assert.Equal(t, []string{"foo", "setup.id"}, r.Unresolved("{{foo}} {{bar}} {{setup.id}} {{$HOME}} {{uuid()}}"))
}

func TestClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	c := r.Clone()
	c.SetCapture("step", "a", "2")

	v, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, _ = c.Lookup("a")
	assert.Equal(t, "2", v)
	v, _ = c.Lookup("step.a")
	assert.Equal(t, "2", v)
}

func TestConcurrentCaptures(t *testing.T) {
	r := NewResolver()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SetCapture("s", fmt.Sprintf("k%d", i), "v")
			_ = r.Resolve("{{k0}}")
		}()
	}
	wg.Wait()

	assert.Empty(t, r.Unresolved("{{k0}} {{k19}}"))
}
