package output

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/assertions"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *scenario.Result {
	return &scenario.Result{
		Name:     "login flow",
		Duration: 42 * time.Millisecond,
		Skipped:  1,
		Steps: []*scenario.StepResult{
			{
				Name:       "login",
				Method:     "POST",
				URL:        "http://example.test/login",
				StatusCode: 200,
				Duration:   10 * time.Millisecond,
				Assertions: []*assertions.Result{{Subject: "status", Operator: "==", Expected: 200, Actual: 200, Passed: true}},
			},
			{
				Name:       "profile",
				Method:     "GET",
				URL:        "http://example.test/me",
				StatusCode: 401,
				Duration:   5 * time.Millisecond,
				Assertions: []*assertions.Result{{Subject: "status", Operator: "<", Expected: 400, Actual: 401, Passed: false}},
			},
			{
				Name:   "broken",
				Method: "GET",
				URL:    "http://127.0.0.1:1/",
				Err:    errors.New("connection refused"),
			},
		},
	}
}

func TestConsoleFormatter_FormatResult(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatResult(sampleResult())
	out := buf.String()

	assert.Contains(t, out, "Running: login flow")
	assert.Contains(t, out, "✓ login (200, 10ms)")
	assert.Contains(t, out, "✗ profile (401, 5ms)")
	assert.Contains(t, out, "x broken (connection refused)")
	assert.Contains(t, out, "GET http://example.test/me")
	assert.Contains(t, out, "Expected: 400")
	assert.Contains(t, out, "Actual:   401")
	assert.Contains(t, out, "1 passed, 2 failed, 1 skipped, 4 total")
}

func TestConsoleFormatter_FormatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace", "abc")
		_, _ = w.Write([]byte(`{"name":"ada","tags":[1,2]}`))
	}))
	defer server.Close()

	resp, err := nicehttp.NewClient().Get(context.Background(), server.URL)
	require.NoError(t, err)
	body, err := resp.Text()
	require.NoError(t, err)

	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithInclude(true)).FormatResponse(resp, body)
	out := buf.String()

	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "X-Trace: abc")
	assert.Contains(t, out, "{\n  \"name\": \"ada\",\n  \"tags\": [1, 2]\n}\n")
}

func TestConsoleFormatter_PlainBody(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf), WithNoColor(true)).FormatResponse(nil, "hello")
	assert.Equal(t, "hello\n", buf.String())
}

func TestConsoleFormatter_FormatLines(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleFormatter(WithWriter(&buf)).FormatLines([]string{"a", "b"})
	assert.Equal(t, "a\nb\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "<missing>", formatValue(nil, 10))
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 10))
	assert.Equal(t, "abc...", formatValue("abcdef", 3))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatResult(sampleResult())
	f.FormatError(errors.New("bad.yaml: invalid scenario"))
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	require.Len(t, out.Steps, 3)
	assert.Equal(t, "login flow", out.Steps[0].Scenario)
	assert.Equal(t, 401, out.Steps[1].StatusCode)
	assert.Equal(t, "connection refused", out.Steps[2].Error)
	assert.Equal(t, []string{"bad.yaml: invalid scenario"}, out.Errors)
	assert.Equal(t, float64(1000), out.Duration)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))

	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	assert.Contains(t, buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`)

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)

	require.Len(t, suites.TestSuites, 1)
	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 3)
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Contains(t, cases[1].Failure.Content, "status <: expected 400, got 401")
	require.NotNil(t, cases[2].Error)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))

	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))
	out := buf.String()

	assert.Contains(t, out, "TAP version 13\n1..4\n")
	assert.Contains(t, out, "ok 1 - login flow: login\n")
	assert.Contains(t, out, "not ok 2 - login flow: profile\n")
	assert.Contains(t, out, "    - \"status <: expected 400, got 401\"\n")
	assert.Contains(t, out, "not ok 3 - login flow: broken\n")
	assert.Contains(t, out, "ok 4 - login flow # SKIP bail\n")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: \"b\""`, escapeYAML(`a: "b"`))
}
