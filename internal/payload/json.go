package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrNotObject = errors.New("payload is not a JSON object")

// Compact re-encodes a JSON document without insignificant whitespace. Object
// key order, number literals and nesting are kept exactly; strings are
// re-escaped minimally so non-ASCII text stays literal and <, >, & are not
// turned into \u escapes. Invalid JSON or trailing data is an error.
func Compact(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var buf bytes.Buffer
	buf.Grow(len(raw))
	if err := encodeValue(dec, &buf); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("invalid JSON: unexpected data after top-level value")
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// CompactObject is Compact restricted to top-level objects.
func CompactObject(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	return Compact(trimmed)
}

func encodeValue(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return errors.New("invalid JSON: unexpected end of input")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return encodeObject(dec, buf)
		case '[':
			return encodeArray(dec, buf)
		default:
			return fmt.Errorf("invalid JSON: unexpected %q", v)
		}
	case string:
		writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	}
	return nil
}

func encodeObject(dec *json.Decoder, buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for first := true; dec.More(); first = false {
		if !first {
			buf.WriteByte(',')
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid JSON: object key %v is not a string", tok)
		}
		writeString(buf, key)
		buf.WriteByte(':')
		if err := encodeValue(dec, buf); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(dec *json.Decoder, buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for first := true; dec.More(); first = false {
		if !first {
			buf.WriteByte(',')
		}
		if err := encodeValue(dec, buf); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	buf.WriteByte(']')
	return nil
}

const hexDigits = "0123456789abcdef"

// writeString quotes s escaping only what JSON requires: the quote, the
// backslash and control characters below U+0020. Everything else, including
// U+2028 and U+2029, is written literally.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}
