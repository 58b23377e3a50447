// Package fingerprint derives content-addressed keys from canonical JSON.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Canonical marshals v as JSON with map keys sorted at every depth.
func Canonical(v any) ([]byte, error) {
	b, err := json.Marshal(normalize(v))
	if err != nil {
		return nil, errors.Wrap(err, "canonical json")
	}
	return b, nil
}

// Sum returns the lowercase-hex SHA-256 of the canonical JSON of v.
func Sum(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Valid reports whether s looks like a value returned by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Decode turns raw JSON into plain values suitable for Canonical. Numbers
// keep their literal text so re-encoding is lossless.
func Decode(raw json.RawMessage) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

func normalize(v any) any {
	if v == nil {
		return nil
	}

	switch vv := v.(type) {
	case json.RawMessage:
		return normalize(Decode(vv))
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, value := range vv {
			out[k] = normalize(value)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i := range vv {
			out[i] = normalize(vv[i])
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
