package http

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const (
	// DefaultMaxTextSize caps the bounded text accessors.
	DefaultMaxTextSize int64 = 10 << 20

	readChunkSize = 8 << 10
)

type byteOrderMark struct {
	mark []byte
	enc  encoding.Encoding
}

// Checked in order; UTF-32LE must come before UTF-16LE since both start FF FE.
var byteOrderMarks = []byteOrderMark{
	{[]byte{0xEF, 0xBB, 0xBF}, unicode.UTF8},
	{[]byte{0xFE, 0xFF}, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)},
	{[]byte{0xFF, 0xFE}, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)},
}

// DetectEncoding returns the encoding for a body starting with head and the
// length of the byte order mark to skip. Without a mark it uses the charset
// parameter of contentType, falling back to UTF-8.
func DetectEncoding(head []byte, contentType string) (encoding.Encoding, int) {
	for _, b := range byteOrderMarks {
		if bytes.HasPrefix(head, b.mark) {
			return b.enc, len(b.mark)
		}
	}
	return declaredEncoding(contentType), 0
}

func declaredEncoding(contentType string) encoding.Encoding {
	if contentType == "" {
		return unicode.UTF8
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return unicode.UTF8
	}
	enc, name := charset.Lookup(params["charset"])
	if enc == nil || name == "utf-8" {
		return unicode.UTF8
	}
	return enc
}

// ReadBounded reads body into a string, failing with a *SizeLimitError once
// max bytes have been read. The body is closed on return. max <= 0 selects
// DefaultMaxTextSize.
func ReadBounded(body io.ReadCloser, contentType string, max int64) (string, error) {
	if max <= 0 {
		max = DefaultMaxTextSize
	}
	return readText(body, contentType, max)
}

// ReadUnbounded reads all of body into a string and closes it.
func ReadUnbounded(body io.ReadCloser, contentType string) (string, error) {
	return readText(body, contentType, -1)
}

func readText(body io.ReadCloser, contentType string, max int64) (string, error) {
	defer body.Close()

	br := bufio.NewReaderSize(body, readChunkSize)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading body: %w", err)
	}

	enc, skip := DetectEncoding(head, contentType)
	if _, err := br.Discard(skip); err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	var buf bytes.Buffer
	total := int64(skip)
	chunk := make([]byte, readChunkSize)
	for max < 0 || total < max {
		n, err := br.Read(chunk)
		buf.Write(chunk[:n])
		total += int64(n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading body: %w", err)
		}
	}

	if max >= 0 && total >= max {
		return "", &SizeLimitError{Limit: max}
	}

	text, err := enc.NewDecoder().Bytes(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return string(text), nil
}
