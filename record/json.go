package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeJSONColumns replaces every string value that starts with '[' or
// '{' and parses as JSON with the decoded structure. Anything else,
// including malformed JSON, is left untouched. Decoded values are no longer
// strings, so calling it again is a no-op.
func DecodeJSONColumns(r *Record) *Record {
	if r == nil {
		return r
	}
	for _, k := range r.keys {
		if decoded, ok := DecodeValue(r.values[k]); ok {
			r.values[k] = decoded
		}
	}
	return r
}

// DecodeValue decodes v when it is a JSON array or object encoded as a
// string. ok is false when v was left as is.
func DecodeValue(v any) (any, bool) {
	s, isString := v.(string)
	if !isString {
		return v, false
	}
	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		return v, false
	}
	decoded, err := decodeJSON(s)
	if err != nil {
		return v, false
	}
	return decoded, true
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	value, err := decodeNext(dec)
	if err != nil {
		return nil, err
	}
	// Trailing data means the text was not a single JSON document.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("record: trailing data after JSON value")
	}
	return value, nil
}

func decodeNext(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("record: unexpected delimiter %q", t)
	case json.Number:
		return normalizeNumber(t)
	default:
		// string, bool, nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*Record, error) {
	r := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("record: object key must be a string")
		}
		value, err := decodeNext(dec)
		if err != nil {
			return nil, err
		}
		r.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	out := make([]any, 0)
	for dec.More() {
		value, err := decodeNext(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeNumber(n json.Number) (any, error) {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return n.Float64()
}

// MarshalRecords encodes a slice of records as a JSON array.
func MarshalRecords(records []*Record) ([]byte, error) {
	if records == nil {
		records = []*Record{}
	}
	return json.Marshal(records)
}

// UnmarshalRecords decodes a JSON array of objects into records.
func UnmarshalRecords(data []byte) ([]*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("record: expected JSON array")
	}
	out := make([]*Record, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("record: expected JSON object in array")
		}
		r, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}
