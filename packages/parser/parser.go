// Package parser defines the pluggable body codec used by nicehttp for
// structured request payloads and response decoding.
//
// A Parser is passed to the client at construction time (or per request);
// nicehttp itself never decodes structured text on its own.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parser converts between text and Go values.
//
// Parse decodes text into v, which must be a non-nil pointer.
// ParseSafe is Parse with the error dropped.
// Serialize encodes v to text.
type Parser interface {
	Parse(text string, v any) error
	ParseSafe(text string, v any) bool
	Serialize(v any) (string, error)
}

// JSONParser is a Parser backed by encoding/json.
// Unknown fields are ignored unless DisallowUnknownFields is set.
type JSONParser struct {
	DisallowUnknownFields bool
	UseNumber             bool
}

// JSONOption configures a JSONParser.
type JSONOption func(*JSONParser)

// WithStrictFields rejects objects containing fields the target does not declare.
func WithStrictFields() JSONOption {
	return func(p *JSONParser) {
		p.DisallowUnknownFields = true
	}
}

// WithNumbers decodes numbers into json.Number instead of float64.
func WithNumbers() JSONOption {
	return func(p *JSONParser) {
		p.UseNumber = true
	}
}

// NewJSON returns a JSON parser.
func NewJSON(opts ...JSONOption) *JSONParser {
	p := &JSONParser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *JSONParser) Parse(text string, v any) error {
	d := json.NewDecoder(bytes.NewBufferString(text))
	if p.DisallowUnknownFields {
		d.DisallowUnknownFields()
	}
	if p.UseNumber {
		d.UseNumber()
	}
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("decoding json: %w", err)
	}
	return nil
}

func (p *JSONParser) ParseSafe(text string, v any) bool {
	return p.Parse(text, v) == nil
}

func (p *JSONParser) Serialize(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return string(b), nil
}

// YAMLParser is a Parser backed by gopkg.in/yaml.v3.
type YAMLParser struct{}

// NewYAML returns a YAML parser.
func NewYAML() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Parse(text string, v any) error {
	if err := yaml.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}

func (p *YAMLParser) ParseSafe(text string, v any) bool {
	return p.Parse(text, v) == nil
}

func (p *YAMLParser) Serialize(v any) (string, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return string(b), nil
}
