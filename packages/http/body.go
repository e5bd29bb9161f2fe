package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/nicehttp/packages/parser"
)

const (
	ContentTypeJSON = "application/json;charset=utf-8"
	ContentTypeText = "text/plain;charset=utf-8"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// BodyKind identifies the encoding chosen for an outgoing body.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyRaw
	BodyForm
	BodyJSON
	BodyText
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyRaw:
		return "raw"
	case BodyForm:
		return "form"
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	case BodyMultipart:
		return "multipart"
	default:
		return "none"
	}
}

// RawBody is a pre-built body sent as is.
type RawBody struct {
	Data        []byte
	ContentType string
}

// JSONString is already-encoded JSON. It is sent verbatim with the JSON
// content type, where a plain string would be sent as text/plain.
type JSONString string

// BodyChoice is the single encoding selected for a request.
type BodyChoice struct {
	Kind        BodyKind
	ContentType string
	Data        []byte
}

// Reader returns the body reader for http.NewRequest, nil for BodyNone.
func (b BodyChoice) Reader() io.Reader {
	if b.Kind == BodyNone {
		return nil
	}
	return bytes.NewReader(b.Data)
}

// Negotiate picks the outgoing body.
//
// The first present input wins: raw, then form, then json, then a non-empty
// files list. GET and HEAD never carry a body and their inputs are ignored.
// POST and PUT without any input get an empty form body.
func Negotiate(method string, raw *RawBody, form map[string]string, payload any, files []File, p parser.Parser) (BodyChoice, error) {
	m := strings.ToUpper(method)
	if m == http.MethodGet || m == http.MethodHead {
		return BodyChoice{Kind: BodyNone}, nil
	}

	if raw != nil {
		return BodyChoice{Kind: BodyRaw, ContentType: raw.ContentType, Data: raw.Data}, nil
	}

	switch {
	case form != nil:
		return formBody(form), nil
	case payload != nil:
		return jsonBody(payload, p)
	case len(files) > 0:
		return multipartBody(files)
	}

	if m == http.MethodPost || m == http.MethodPut {
		return formBody(nil), nil
	}
	return BodyChoice{Kind: BodyNone}, nil
}

func formBody(form map[string]string) BodyChoice {
	values := make(url.Values, len(form))
	for k, v := range form {
		values.Set(k, v)
	}
	return BodyChoice{Kind: BodyForm, ContentType: ContentTypeForm, Data: []byte(values.Encode())}
}

func jsonBody(payload any, p parser.Parser) (BodyChoice, error) {
	switch v := payload.(type) {
	case string:
		return BodyChoice{Kind: BodyText, ContentType: ContentTypeText, Data: []byte(v)}, nil
	case JSONString:
		return BodyChoice{Kind: BodyJSON, ContentType: ContentTypeJSON, Data: []byte(v)}, nil
	case json.RawMessage:
		return BodyChoice{Kind: BodyJSON, ContentType: ContentTypeJSON, Data: v}, nil
	}

	if p == nil {
		return BodyChoice{}, fmt.Errorf("encoding json payload: %w", ErrNoParser)
	}
	s, err := p.Serialize(payload)
	if err != nil {
		return BodyChoice{}, fmt.Errorf("encoding json payload: %w", err)
	}
	return BodyChoice{Kind: BodyJSON, ContentType: ContentTypeJSON, Data: []byte(s)}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody builds a multipart/form-data body from files.
func multipartBody(files []File) (BodyChoice, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, f := range files {
		if !f.IsFile() {
			if err := writer.WriteField(f.Name, f.FileName); err != nil {
				return BodyChoice{}, fmt.Errorf("writing field %s: %w", f.Name, err)
			}
			continue
		}

		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Name), quoteEscaper.Replace(f.FileName)))
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return BodyChoice{}, fmt.Errorf("creating part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return BodyChoice{}, fmt.Errorf("writing part %s: %w", f.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return BodyChoice{}, err
	}

	return BodyChoice{Kind: BodyMultipart, ContentType: writer.FormDataContentType(), Data: body.Bytes()}, nil
}
