package assertions

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator compares an actual value with an expected one.
type Operator string

const (
	OpEquals         Operator = "=="
	OpNotEquals      Operator = "!="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpContains       Operator = "contains"
	OpNotContains    Operator = "!contains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
	OpMatches        Operator = "matches"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "!exists"
	OpLength         Operator = "length"
	OpIncludes       Operator = "includes"
	OpIn             Operator = "in"
	OpType           Operator = "type"
	OpSchema         Operator = "schema"
)

var operators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true,
	OpGreaterThan: true, OpGreaterOrEqual: true, OpLessThan: true, OpLessOrEqual: true,
	OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true,
	OpMatches: true, OpExists: true, OpNotExists: true, OpLength: true,
	OpIncludes: true, OpIn: true, OpType: true, OpSchema: true,
}

// unary operators take no value
func (o Operator) unary() bool {
	return o == OpExists || o == OpNotExists
}

// Assertion is one parsed expectation.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

func (a *Assertion) String() string {
	if a.Operator.unary() {
		return a.Subject + " " + string(a.Operator)
	}
	return fmt.Sprintf("%s %s %v", a.Subject, a.Operator, a.Expected)
}

// Parse reads an expectation such as "body.id > 10".
func Parse(s string) (*Assertion, error) {
	fields, ends := splitFields(s)

	for i, f := range fields {
		op := Operator(f)
		if i == 0 || !operators[op] {
			continue
		}

		a := &Assertion{
			Subject:  strings.Join(fields[:i], " "),
			Operator: op,
		}

		rest := strings.TrimSpace(s[ends[i]:])
		if op.unary() {
			if rest != "" {
				return nil, fmt.Errorf("%q: %s takes no value", s, op)
			}
			return a, nil
		}
		if rest == "" {
			return nil, fmt.Errorf("%q: missing value after %s", s, op)
		}

		a.Expected = decodeValue(op, rest)
		return a, nil
	}

	return nil, fmt.Errorf("%q: no operator found", s)
}

// decodeValue keeps text operands verbatim, minus surrounding quotes, and
// reads everything else as YAML.
func decodeValue(op Operator, raw string) any {
	switch op {
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpMatches, OpSchema, OpType:
		if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
			return raw[1 : len(raw)-1]
		}
		return raw
	}

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// splitFields is strings.Fields that also reports where each field ends.
func splitFields(s string) ([]string, []int) {
	var fields []string
	var ends []int
	start := -1
	for i, r := range s + " " {
		space := r == ' ' || r == '\t'
		switch {
		case !space && start < 0:
			start = i
		case space && start >= 0:
			fields = append(fields, s[start:i])
			ends = append(ends, i)
			start = -1
		}
	}
	return fields, ends
}

// ParseAll parses every expectation, stopping at the first error.
func ParseAll(lines []string) ([]*Assertion, error) {
	out := make([]*Assertion, 0, len(lines))
	for _, line := range lines {
		a, err := Parse(line)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
