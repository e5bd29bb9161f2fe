package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/assertions"
	"github.com/abdul-hamid-achik/nicehttp/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/abdul-hamid-achik/nicehttp/packages/output"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

var requestCmd = &cobra.Command{
	Use:   "request <METHOD> <url>",
	Short: "Send an HTTP request",
	Long: `Send an HTTP request and print the response body. JSON bodies are
pretty-printed.

Examples:
  nicehttp request GET https://httpbin.org/get -p page=2
  nicehttp post https://httpbin.org/post -d user=ada -d password=secret
  nicehttp post https://httpbin.org/post --json '{"name":"ada"}'
  nicehttp post https://httpbin.org/post -F avatar=@me.png -F name=ada
  nicehttp get https://api.github.com/repos/golang/go --query stargazers_count
  nicehttp get https://example.com --select h1
  nicehttp get https://httpbin.org/status/404 --fail`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestCommand(cmd, strings.ToUpper(args[0]), args[1])
	},
}

var methodCmds = []*cobra.Command{
	methodCommand(http.MethodGet),
	methodCommand(http.MethodPost),
	methodCommand(http.MethodPut),
	methodCommand(http.MethodDelete),
	methodCommand(http.MethodHead),
	methodCommand(http.MethodPatch),
	methodCommand(http.MethodOptions),
}

func methodCommand(method string) *cobra.Command {
	return &cobra.Command{
		Use:   strings.ToLower(method) + " <url>",
		Short: "Send a " + method + " request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return requestCommand(cmd, method, args[0])
		},
	}
}

type requestFlags struct {
	headers    []string
	referer    string
	params     []string
	cookies    []string
	data       []string
	json       string
	form       []string
	noRedirect bool
	insecure   bool
	timeout    time.Duration
	cache      time.Duration
	cacheDB    string
	maxSize    int64
	large      bool
	query      string
	selectTag  string
	schema     string
	include    bool
	fail       bool
	user       string
	digest     bool
	awsSigV4   string

	oauth2TokenURL string
	oauth2ClientID string
	oauth2Secret   string
	oauth2Scopes   []string
}

var reqFlags requestFlags

func init() {
	addRequestFlags(requestCmd)
	for _, c := range methodCmds {
		addRequestFlags(c)
	}
}

func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringArrayVarP(&reqFlags.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringVar(&reqFlags.referer, "referer", "", "Referer header")
	f.StringArrayVarP(&reqFlags.params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	f.StringArrayVarP(&reqFlags.cookies, "cookie", "c", nil, "Cookie as name=value (repeatable)")
	f.StringArrayVarP(&reqFlags.data, "data", "d", nil, "Form field as key=value (repeatable)")
	f.StringVar(&reqFlags.json, "json", "", "JSON body, or @file to read it from a file")
	f.StringArrayVarP(&reqFlags.form, "form", "F", nil, "Multipart part as name=value or name=@path (repeatable)")
	f.BoolVar(&reqFlags.noRedirect, "no-redirect", false, "Do not follow redirects")
	f.BoolVarP(&reqFlags.insecure, "insecure", "k", getEnvBool("NICEHTTP_INSECURE", false), "Disable SSL certificate validation (env: NICEHTTP_INSECURE)")
	f.DurationVar(&reqFlags.timeout, "timeout", 0, "Request timeout (e.g. 10s), overrides the config")
	f.DurationVar(&reqFlags.cache, "cache", 0, "Reuse a cached response younger than this (e.g. 10m)")
	f.StringVar(&reqFlags.cacheDB, "cache-db", getEnvString("NICEHTTP_CACHE_DB", ""), "SQLite file for the response cache (env: NICEHTTP_CACHE_DB)")
	f.Int64Var(&reqFlags.maxSize, "max-size", 0, "Largest body read as text, in bytes")
	f.BoolVar(&reqFlags.large, "large", false, "Read the body without a size limit")
	f.StringVar(&reqFlags.query, "query", "", "Print the JSON value at this path")
	f.StringVar(&reqFlags.selectTag, "select", "", "Print the text of every HTML element with this tag")
	f.StringVar(&reqFlags.schema, "schema", "", "Validate the JSON body against this JSON schema file")
	f.BoolVarP(&reqFlags.include, "include", "i", false, "Print the status line and headers")
	f.BoolVar(&reqFlags.fail, "fail", false, "Exit non-zero on a non-2xx status")
	f.StringVarP(&reqFlags.user, "user", "u", "", "Credentials as user:password")
	f.BoolVar(&reqFlags.digest, "digest", false, "Use digest instead of basic authentication")
	f.StringVar(&reqFlags.oauth2TokenURL, "oauth2-token-url", getEnvString("NICEHTTP_OAUTH2_TOKEN_URL", ""), "Fetch a client credentials token from this URL (env: NICEHTTP_OAUTH2_TOKEN_URL)")
	f.StringVar(&reqFlags.oauth2ClientID, "oauth2-client-id", getEnvString("NICEHTTP_OAUTH2_CLIENT_ID", ""), "OAuth2 client id (env: NICEHTTP_OAUTH2_CLIENT_ID)")
	f.StringVar(&reqFlags.oauth2Secret, "oauth2-client-secret", getEnvString("NICEHTTP_OAUTH2_CLIENT_SECRET", ""), "OAuth2 client secret (env: NICEHTTP_OAUTH2_CLIENT_SECRET)")
	f.StringSliceVar(&reqFlags.oauth2Scopes, "oauth2-scope", nil, "OAuth2 scopes (comma separated or repeatable)")
	f.StringVar(&reqFlags.awsSigV4, "aws-sigv4", "", "Sign with AWS SigV4 as region/service (keys from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)")
}

// apply overlays the flags that change client construction.
func (f *requestFlags) apply(cfg *config.Config) {
	if f.insecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if f.timeout > 0 {
		cfg.Timeout = f.timeout
	}
	if f.cache > 0 {
		cfg.CacheTime = f.cache
	}
	if f.cacheDB != "" {
		cfg.CacheDB = f.cacheDB
	}
	if f.maxSize > 0 {
		cfg.MaxTextSize = f.maxSize
	}
}

func (f *requestFlags) middlewares() ([]nicehttp.Middleware, error) {
	var mws []nicehttp.Middleware

	if f.user != "" {
		user, pass, _ := strings.Cut(f.user, ":")
		if f.digest {
			mws = append(mws, nicehttp.DigestAuth(user, pass))
		} else {
			mws = append(mws, nicehttp.BasicAuth(user, pass))
		}
	}

	if f.awsSigV4 != "" {
		region, service, ok := strings.Cut(f.awsSigV4, "/")
		if !ok || region == "" || service == "" {
			return nil, fmt.Errorf("invalid --aws-sigv4 %q, expected region/service", f.awsSigV4)
		}
		mws = append(mws, nicehttp.AWSSigV4(nicehttp.AWSCredentials{
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:    region,
			Service:   service,
		}))
	}

	if f.oauth2TokenURL != "" {
		cfg := oauth2.Config{
			TokenURL:     f.oauth2TokenURL,
			ClientID:     f.oauth2ClientID,
			ClientSecret: f.oauth2Secret,
			Scopes:       f.oauth2Scopes,
			GrantType:    oauth2.ClientCredentials,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		mws = append(mws, oauth2.Middleware(cfg))
	}

	return mws, nil
}

func (f *requestFlags) requestOptions() ([]nicehttp.RequestOption, error) {
	var opts []nicehttp.RequestOption

	headers, err := parsePairs(f.headers, ":")
	if err != nil {
		return nil, err
	}
	params, err := parsePairs(f.params, "=")
	if err != nil {
		return nil, err
	}
	cookies, err := parsePairs(f.cookies, "=")
	if err != nil {
		return nil, err
	}
	opts = append(opts, nicehttp.Headers(headers), nicehttp.Params(params), nicehttp.Cookies(cookies))

	if f.referer != "" {
		opts = append(opts, nicehttp.Referer(f.referer))
	}

	switch {
	case f.json != "":
		payload := f.json
		if path, ok := strings.CutPrefix(payload, "@"); ok {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			payload = string(b)
		}
		if !gjson.Valid(payload) {
			return nil, errors.New("--json is not valid JSON")
		}
		opts = append(opts, nicehttp.JSON(nicehttp.JSONString(payload)))
	case len(f.form) > 0:
		parts, err := parseFormParts(f.form)
		if err != nil {
			return nil, err
		}
		fields, err := parsePairs(f.data, "=")
		if err != nil {
			return nil, err
		}
		opts = append(opts, nicehttp.Files(append(nicehttp.FilesFromMap(fields), parts...)...))
	case len(f.data) > 0:
		data, err := parsePairs(f.data, "=")
		if err != nil {
			return nil, err
		}
		opts = append(opts, nicehttp.Data(data))
	}

	if f.noRedirect {
		opts = append(opts, nicehttp.AllowRedirects(false))
	}

	return opts, nil
}

func requestCommand(cmd *cobra.Command, method, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reqFlags.apply(cfg)

	mws, err := reqFlags.middlewares()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	opts, err := reqFlags.requestOptions()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	client, closeClient, err := newClient(cfg, nicehttp.WithMiddleware(mws...))
	if err != nil {
		return err
	}
	defer closeClient()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := client.Custom(ctx, method, url, opts...)
	if err != nil {
		return err
	}
	defer resp.Close()

	body, err := readBody(resp, reqFlags.large)
	if err != nil {
		return err
	}

	out := output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithNoColor(cfg.GetNoColor()),
		output.WithInclude(reqFlags.include),
	)

	switch {
	case reqFlags.query != "":
		values, err := queryJSON(body, reqFlags.query)
		if err != nil {
			return withExitCode(ExitTestFailure, err)
		}
		out.FormatLines(values)
	case reqFlags.selectTag != "":
		doc, err := readDocument(resp, reqFlags.large)
		if err != nil {
			return err
		}
		out.FormatLines(assertions.SelectText(doc, reqFlags.selectTag))
	case reqFlags.schema != "":
		schema, err := os.ReadFile(reqFlags.schema)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		if err := assertions.ValidateSchema(schema, []byte(body)); err != nil {
			return withExitCode(ExitTestFailure, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "valid")
	default:
		out.FormatResponse(resp, body)
	}

	if reqFlags.fail {
		return withExitCode(ExitTestFailure, resp.EnsureSuccess())
	}
	return nil
}

func readBody(resp *nicehttp.Response, large bool) (string, error) {
	if large {
		return resp.TextLarge()
	}
	return resp.Text()
}

func readDocument(resp *nicehttp.Response, large bool) (*html.Node, error) {
	if large {
		return resp.DocumentLarge()
	}
	return resp.Document()
}

// queryJSON returns the value at path, one line per element for arrays.
func queryJSON(body, path string) ([]string, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("response body is not JSON")
	}
	result := gjson.Get(body, path)
	if !result.Exists() {
		return nil, fmt.Errorf("no value at %q", path)
	}
	if !result.IsArray() {
		return []string{result.String()}, nil
	}
	var values []string
	for _, v := range result.Array() {
		values = append(values, v.String())
	}
	return values, nil
}
