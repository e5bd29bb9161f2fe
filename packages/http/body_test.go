package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"testing"

	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate_GetAndHeadNeverCarryBody(t *testing.T) {
	for _, method := range []string{"GET", "get", "HEAD"} {
		choice, err := Negotiate(method,
			&RawBody{Data: []byte("raw")},
			map[string]string{"a": "1"},
			map[string]any{"b": 2},
			[]File{Field("c", "3")},
			parser.NewJSON(),
		)

		require.NoError(t, err)
		assert.Equal(t, BodyNone, choice.Kind, method)
		assert.Nil(t, choice.Reader(), method)
	}
}

func TestNegotiate_EmptyFormForBodylessPostAndPut(t *testing.T) {
	for _, method := range []string{"POST", "PUT"} {
		choice, err := Negotiate(method, nil, nil, nil, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, BodyForm, choice.Kind, method)
		assert.Equal(t, ContentTypeForm, choice.ContentType)
		assert.Empty(t, choice.Data)
		assert.NotNil(t, choice.Reader())
	}
}

func TestNegotiate_NoBodyForBodylessDeleteAndPatch(t *testing.T) {
	for _, method := range []string{"DELETE", "PATCH", "OPTIONS"} {
		choice, err := Negotiate(method, nil, nil, nil, nil, nil)

		require.NoError(t, err)
		assert.Equal(t, BodyNone, choice.Kind, method)
	}
}

func TestNegotiate_Priority(t *testing.T) {
	raw := &RawBody{Data: []byte("<x/>"), ContentType: "application/xml"}
	form := map[string]string{"a": "1"}
	payload := map[string]int{"b": 2}
	files := []File{Field("c", "3")}

	tests := []struct {
		name    string
		raw     *RawBody
		form    map[string]string
		payload any
		files   []File
		want    BodyKind
	}{
		{"raw wins over everything", raw, form, payload, files, BodyRaw},
		{"form wins over json and files", nil, form, payload, files, BodyForm},
		{"json wins over files", nil, nil, payload, files, BodyJSON},
		{"files last", nil, nil, nil, files, BodyMultipart},
		{"empty files fall through", nil, nil, nil, []File{}, BodyForm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err := Negotiate("POST", tt.raw, tt.form, tt.payload, tt.files, parser.NewJSON())
			require.NoError(t, err)
			assert.Equal(t, tt.want, choice.Kind)
		})
	}
}

func TestNegotiate_RawKeepsContentType(t *testing.T) {
	choice, err := Negotiate("PATCH", &RawBody{Data: []byte("<x/>"), ContentType: "application/xml"}, nil, nil, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/xml", choice.ContentType)
	assert.Equal(t, "<x/>", string(choice.Data))
}

func TestNegotiate_FormEncoding(t *testing.T) {
	choice, err := Negotiate("POST", nil, map[string]string{"name": "a b", "id": "1"}, nil, nil, nil)
	require.NoError(t, err)

	values, err := url.ParseQuery(string(choice.Data))
	require.NoError(t, err)
	assert.Equal(t, "a b", values.Get("name"))
	assert.Equal(t, "1", values.Get("id"))
}

func TestNegotiate_JSONPayloads(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		wantKind BodyKind
		wantType string
		wantData string
	}{
		{"plain string is text", `{"raw":true}`, BodyText, ContentTypeText, `{"raw":true}`},
		{"json string verbatim", JSONString(`{"a":1}`), BodyJSON, ContentTypeJSON, `{"a":1}`},
		{"raw message verbatim", json.RawMessage(`[1,2]`), BodyJSON, ContentTypeJSON, `[1,2]`},
		{"struct serialized", struct {
			A int `json:"a"`
		}{A: 1}, BodyJSON, ContentTypeJSON, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err := Negotiate("POST", nil, nil, tt.payload, nil, parser.NewJSON())
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, choice.Kind)
			assert.Equal(t, tt.wantType, choice.ContentType)
			assert.Equal(t, tt.wantData, string(choice.Data))
		})
	}
}

func TestNegotiate_JSONWithoutParser(t *testing.T) {
	_, err := Negotiate("POST", nil, nil, map[string]int{"a": 1}, nil, nil)
	assert.ErrorIs(t, err, ErrNoParser)

	choice, err := Negotiate("POST", nil, nil, "text needs no parser", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BodyText, choice.Kind)
}

func TestNegotiate_Multipart(t *testing.T) {
	files := []File{
		Field("title", "report"),
		NewFile("upload", "data.csv", []byte("a,b\n1,2\n"), "text/csv"),
		NewFile("blob", "blob.bin", []byte{0x1, 0x2}, ""),
	}

	choice, err := Negotiate("POST", nil, nil, nil, files, nil)
	require.NoError(t, err)
	assert.Equal(t, BodyMultipart, choice.Kind)

	mediaType, params, err := mime.ParseMediaType(choice.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(bytes.NewReader(choice.Data), params["boundary"])

	part, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "title", part.FormName())
	assert.Empty(t, part.FileName())
	b, _ := io.ReadAll(part)
	assert.Equal(t, "report", string(b))

	part, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "upload", part.FormName())
	assert.Equal(t, "data.csv", part.FileName())
	assert.Equal(t, "text/csv", part.Header.Get("Content-Type"))
	b, _ = io.ReadAll(part)
	assert.Equal(t, "a,b\n1,2\n", string(b))

	part, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", part.Header.Get("Content-Type"))
}

func TestFilesFromMap(t *testing.T) {
	files := FilesFromMap(map[string]string{"b": "2", "a": "1"})

	require.Len(t, files, 2)
	assert.Equal(t, Field("a", "1"), files[0])
	assert.Equal(t, Field("b", "2"), files[1])
	assert.False(t, files[0].IsFile())
}

func TestBodyKind_String(t *testing.T) {
	assert.Equal(t, "multipart", BodyMultipart.String())
	assert.Equal(t, "none", BodyNone.String())
}
