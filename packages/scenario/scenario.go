package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/assertions"
	"github.com/abdul-hamid-achik/nicehttp/packages/capture"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario is an ordered list of requests sharing one cookie session.
type Scenario struct {
	Name        string            `yaml:"name"`
	BaseURL     string            `yaml:"baseURL" validate:"omitempty,url|contains={{"`
	Headers     map[string]string `yaml:"headers"`
	Vars        map[string]string `yaml:"vars"`
	Concurrency int               `yaml:"concurrency" validate:"gte=0"` // limit for parallel steps, 0 is unlimited
	Steps       []Step            `yaml:"steps" validate:"required,min=1,dive"`

	// Dir resolves relative file and schema paths.
	Dir string `yaml:"-"`
}

// Step is one request and its expectations.
type Step struct {
	Name           string            `yaml:"name"`
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url" validate:"required"`
	Headers        map[string]string `yaml:"headers"`
	Referer        string            `yaml:"referer"`
	Params         map[string]string `yaml:"params"`
	Cookies        map[string]string `yaml:"cookies"`
	Data           map[string]string `yaml:"data"`
	Files          map[string]string `yaml:"files"` // form field to file path
	JSON           any               `yaml:"json"`
	Body           string            `yaml:"body"`
	ContentType    string            `yaml:"contentType"`
	Timeout        time.Duration     `yaml:"timeout" validate:"gte=0s"`
	AllowRedirects *bool             `yaml:"allowRedirects"`
	Cache          time.Duration     `yaml:"cache" validate:"gte=0s"`
	Parallel       bool              `yaml:"parallel"` // runs alongside adjacent parallel steps
	Expect         []string          `yaml:"expect"`
	Capture        map[string]string `yaml:"capture"` // variable name to capture expression

	assertions []*assertions.Assertion
	captures   []*capture.Capture
}

// DefaultExpectation applies to steps without expectations.
const DefaultExpectation = "status < 400"

var validate = validator.New()

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Dir = filepath.Dir(path)
	return sc, nil
}

// Parse decodes and validates a scenario. Relative paths resolve against
// the working directory until Dir is set.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}

	if err := validate.Struct(&sc); err != nil {
		var verrors validator.ValidationErrors
		if errors.As(err, &verrors) {
			msgs := make([]string, len(verrors))
			for i, v := range verrors {
				msgs[i] = fmt.Sprintf("%s failed %q", v.Namespace(), v.Tag())
			}
			return nil, fmt.Errorf("invalid scenario: %s", strings.Join(msgs, "; "))
		}
		return nil, err
	}

	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step %d", i+1)
		}
		step.Method = strings.ToUpper(step.Method)
		if step.Method == "" {
			step.Method = "GET"
		}

		expect := step.Expect
		if len(expect) == 0 {
			expect = []string{DefaultExpectation}
		}
		parsed, err := assertions.ParseAll(expect)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name, err)
		}
		step.assertions = parsed

		if step.captures, err = capture.ParseAll(step.Capture); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name, err)
		}
	}

	return &sc, nil
}

// groups splits the steps into runs of sequential steps and runs of
// adjacent parallel steps.
func (s *Scenario) groups() [][]*Step {
	var out [][]*Step
	for i := range s.Steps {
		step := &s.Steps[i]
		n := len(out)
		if step.Parallel && n > 0 && out[n-1][0].Parallel {
			out[n-1] = append(out[n-1], step)
			continue
		}
		out = append(out, []*Step{step})
	}
	return out
}
