package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with fresh flag state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	reqFlags = requestFlags{}
	bailFlag, watchFlag = false, false
	outputFlag, outputFileFlag = "console", ""
	benchJSON, benchThreshold, benchNoProgress = false, "", false
	configFlag = ""
	runVars, runEnvFile = nil, ""
	forceInit = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ada","tags":["a","b"],"page":"` + r.URL.Query().Get("page") + `"}`))
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>First</h1><p>x</p><h1> Second </h1></body></html>`))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		user, pass, _ := r.BasicAuth()
		fmt.Fprintf(w, "%s %s %s %s", r.Method, r.PostFormValue("user"), user+":"+pass, r.Header.Get("X-Test"))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, _ := r.BasicAuth()
		if id != "app" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/bearer", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"a=1", "b = two", "a=3", "url=http://x?y=z"}, "=")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3", "b": "two", "url": "http://x?y=z"}, got)

	got, err = parsePairs([]string{"X-Token: abc:def"}, ":")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Token": "abc:def"}, got)

	got, err = parsePairs(nil, "=")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parsePairs([]string{"novalue"}, "=")
	assert.Error(t, err)
	_, err = parsePairs([]string{"=x"}, "=")
	assert.Error(t, err)
}

func TestParseFormParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	parts, err := parseFormParts([]string{"title=greeting", "doc=@" + path})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.False(t, parts[0].IsFile())
	assert.Equal(t, "title", parts[0].Name)
	assert.True(t, parts[1].IsFile())
	assert.Equal(t, "note.txt", parts[1].FileName)

	_, err = parseFormParts([]string{"doc=@" + filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = parseFormParts([]string{"bare"})
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("NICEHTTP_TEST_STR", "value")
	t.Setenv("NICEHTTP_TEST_BOOL", "yes")
	t.Setenv("NICEHTTP_TEST_INT", "12")
	t.Setenv("NICEHTTP_TEST_BAD_INT", "x")

	assert.Equal(t, "value", getEnvString("NICEHTTP_TEST_STR", "d"))
	assert.Equal(t, "d", getEnvString("NICEHTTP_TEST_UNSET", "d"))
	assert.True(t, getEnvBool("NICEHTTP_TEST_BOOL", false))
	assert.Equal(t, 12, getEnvInt("NICEHTTP_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("NICEHTTP_TEST_BAD_INT", 1))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit", withExitCode(ExitParseError, errors.New("x")), ExitParseError},
		{"wrapped explicit", fmt.Errorf("outer: %w", withExitCode(ExitUsageError, errors.New("x"))), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.FieldErrors{{Field: "timeout", Err: "bad"}}), ExitConfigError},
		{"network", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, ExitNetworkError},
		{"timeout", fmt.Errorf("call: %w", nicehttp.ErrTimeout), ExitNetworkError},
		{"other", errors.New("boom"), ExitTestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}

	assert.NoError(t, withExitCode(ExitTestFailure, nil))
}

func TestQueryJSON(t *testing.T) {
	got, err := queryJSON(`{"a":{"b":[1,"x"]},"n":3}`, "a.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "x"}, got)

	got, err = queryJSON(`{"n":3}`, "n")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, got)

	_, err = queryJSON(`{"n":3}`, "missing")
	assert.Error(t, err)

	_, err = queryJSON(`<html>`, "n")
	assert.Error(t, err)
}

func TestIsScenarioFile(t *testing.T) {
	assert.True(t, isScenarioFile("login.yaml"))
	assert.True(t, isScenarioFile("dir/flow.yml"))
	assert.False(t, isScenarioFile("dir/nicehttp.yaml"))
	assert.False(t, isScenarioFile(".nicehttp.yml"))
	assert.False(t, isScenarioFile("notes.txt"))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.yaml", "nested/b.yml", "nicehttp.yaml", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "nested", "b.yml")}, files)

	_, err = collectFiles([]string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"console", "json", "junit", "tap", "JSON"} {
		f, err := newFormatter(format, io.Discard, true, false)
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}

	_, err := newFormatter("html", io.Discard, true, false)
	assert.Error(t, err)
}

func TestRequestCommand_Query(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "get", server.URL+"/json", "--query", "tags")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)

	out, err = execute(t, "get", server.URL+"/json", "-p", "page=2", "--query", "page")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestRequestCommand_PrettyJSON(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "request", "get", server.URL+"/json", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "  \"name\": \"ada\",\n")
}

func TestRequestCommand_Select(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "get", server.URL+"/html", "--select", "h1")
	require.NoError(t, err)
	assert.Equal(t, "First\nSecond\n", out)
}

func TestRequestCommand_FormAndAuth(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "post", server.URL+"/echo", "-d", "user=ada", "-u", "bob:secret", "-H", "X-Test: yes")
	require.NoError(t, err)
	assert.Equal(t, "POST ada bob:secret yes\n", out)
}

func TestRequestCommand_Fail(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, "get", server.URL+"/missing")
	require.NoError(t, err)

	_, err = execute(t, "get", server.URL+"/missing", "--fail")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))
}

func TestRequestCommand_Schema(t *testing.T) {
	server := newTestServer(t)
	schema := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`), 0o644))

	out, err := execute(t, "get", server.URL+"/json", "--schema", schema)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	strict := filepath.Join(t.TempDir(), "strict.json")
	require.NoError(t, os.WriteFile(strict, []byte(`{"type":"object","required":["id"]}`), 0o644))

	_, err = execute(t, "get", server.URL+"/json", "--schema", strict)
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))
}

func TestRequestCommand_InvalidJSONBody(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, "post", server.URL+"/echo", "--json", "{nope")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestRunCommand(t *testing.T) {
	server := newTestServer(t)
	dir := t.TempDir()

	passing := filepath.Join(dir, "pass.yaml")
	require.NoError(t, os.WriteFile(passing, []byte(`
name: pass
baseURL: `+server.URL+`
steps:
  - url: /json
    expect: [status == 200, body.name == ada]
`), 0o644))

	out, err := execute(t, "run", passing, "-o", "json")
	require.NoError(t, err)

	var report struct {
		Summary struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Summary.Passed)
	assert.Zero(t, report.Summary.Failed)
}

func TestRunCommand_Failures(t *testing.T) {
	server := newTestServer(t)
	dir := t.TempDir()

	failing := filepath.Join(dir, "fail.yaml")
	require.NoError(t, os.WriteFile(failing, []byte("baseURL: "+server.URL+"\nsteps:\n  - url: /missing\n"), 0o644))

	_, err := execute(t, "run", failing, "-o", "tap")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("steps: []\n"), 0o644))

	_, err = execute(t, "run", broken)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))

	_, err = execute(t, "run", failing, "-o", "html")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestValidateAndList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: flow
steps:
  - name: first
    url: http://example.test/a
    expect: [status == 200]
  - url: http://example.test/b
    method: post
    parallel: true
`), 0o644))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+path)

	out, err = execute(t, "list", path)
	require.NoError(t, err)
	assert.Contains(t, out, "flow ("+path+"):")
	assert.Contains(t, out, "  - first: GET http://example.test/a\n      expect status == 200\n")
	assert.Contains(t, out, "  - step 2: POST http://example.test/b [parallel]\n")
}

func TestBenchCommand(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "bench", server.URL+"/json", "-n", "10", "-c", "2", "--json")
	require.NoError(t, err)

	var report struct {
		Requests struct {
			Total   int64 `json:"total"`
			Success int64 `json:"success"`
		} `json:"requests"`
		StatusCodes map[string]int64 `json:"statusCodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, int64(10), report.Requests.Total)
	assert.Equal(t, int64(10), report.Requests.Success)
	assert.Equal(t, map[string]int64{"200": 10}, report.StatusCodes)
}

func TestBenchCommand_Thresholds(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, "bench", server.URL+"/error", "-n", "5", "-c", "1", "--json", "--threshold", "errors<1%")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	_, err = execute(t, "bench", server.URL+"/json", "--threshold", "p95=1")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nicehttp version")
}

func TestRequestCommand_OAuth2(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, "get", server.URL+"/bearer",
		"--oauth2-token-url", server.URL+"/token",
		"--oauth2-client-id", "app",
		"--oauth2-client-secret", "s3cret",
	)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok\n", out)

	_, err = execute(t, "get", server.URL+"/bearer", "--oauth2-token-url", server.URL+"/token")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestRunCommand_Variables(t *testing.T) {
	server := newTestServer(t)
	dir := t.TempDir()

	file := filepath.Join(dir, "vars.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
baseURL: "{{base}}"
vars:
  user: nobody
steps:
  - method: POST
    url: /echo
    data: {user: "{{user}}"}
    headers: {X-Test: "{{tag}}"}
    expect:
      - 'body == "POST ada : yes"'
`), 0o644))

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("base="+server.URL+"\ntag=no\n"), 0o644))

	out, err := execute(t, "run", file, "--env-file", envFile, "--var", "user=ada", "--var", "tag=yes")
	require.NoError(t, err, out)

	_, err = execute(t, "run", file, "--env-file", filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "nicehttp.yaml")

	sc, err := scenario.Load("example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ada", sc.Vars["user"])

	cfg, err := config.LoadConfig("nicehttp.yaml")
	require.NoError(t, err)
	assert.Equal(t, "nicehttp/"+version, cfg.UserAgent)

	_, err = execute(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = execute(t, "init", "--force")
	assert.NoError(t, err)
}
