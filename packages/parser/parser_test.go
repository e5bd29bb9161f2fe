package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repo struct {
	Description string `json:"description" yaml:"description"`
	Stars       int    `json:"stargazers_count" yaml:"stars"`
}

func TestJSONParser_Parse(t *testing.T) {
	p := NewJSON()

	var r repo
	err := p.Parse(`{"description":"nice","stargazers_count":42,"private":false}`, &r)

	require.NoError(t, err)
	assert.Equal(t, "nice", r.Description)
	assert.Equal(t, 42, r.Stars)
}

func TestJSONParser_StrictFields(t *testing.T) {
	p := NewJSON(WithStrictFields())

	var r repo
	err := p.Parse(`{"description":"nice","private":false}`, &r)

	assert.Error(t, err)
}

func TestJSONParser_UseNumber(t *testing.T) {
	p := NewJSON(WithNumbers())

	var v map[string]any
	require.NoError(t, p.Parse(`{"id":12345678901234567}`, &v))

	n, ok := v["id"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, "12345678901234567", n.String())
}

func TestJSONParser_ParseSafe(t *testing.T) {
	p := NewJSON()

	var r repo
	assert.False(t, p.ParseSafe(`{not json`, &r))
	assert.True(t, p.ParseSafe(`{"description":"ok"}`, &r))
	assert.Equal(t, "ok", r.Description)
}

func TestJSONParser_Serialize(t *testing.T) {
	p := NewJSON()

	s, err := p.Serialize(repo{Description: "x", Stars: 1})

	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"x","stargazers_count":1}`, s)
}

func TestJSONParser_SerializeError(t *testing.T) {
	_, err := NewJSON().Serialize(make(chan int))
	assert.Error(t, err)
}

func TestYAMLParser(t *testing.T) {
	p := NewYAML()

	var r repo
	require.NoError(t, p.Parse("description: from yaml\nstars: 7\n", &r))
	assert.Equal(t, "from yaml", r.Description)
	assert.Equal(t, 7, r.Stars)

	assert.False(t, p.ParseSafe("description: [unclosed", &r))

	out, err := p.Serialize(r)
	require.NoError(t, err)
	assert.Contains(t, out, "description: from yaml")
}
