package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Well-known metadata keys
const (
	MetaTopic      = "topic"
	MetaSource     = "source"
	MetaConfidence = "confidence"
	MetaAgent      = "agent"
	MetaQuery      = "query"
	MetaComplexity = "complexity"
)

// Field is one metadata entry
type Field struct {
	Key   string
	Value any
}

// Metadata is an ordered key-value list. Keys are unique; setting an existing
// key replaces the value in place.
type Metadata []Field

// NewMetadata builds Metadata from alternating key and value arguments
func NewMetadata(kv ...any) Metadata {
	var md Metadata
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		md = md.With(key, kv[i+1])
	}
	return md
}

// Get returns the value of key
func (m Metadata) Get(key string) (any, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value of key formatted as text, or empty string
func (m Metadata) String(key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// With returns a copy with key set to value
func (m Metadata) With(key string, value any) Metadata {
	out := m.Clone()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Key: key, Value: value})
}

// Clone returns a deep copy of m. Nested maps, slices and metadata are copied
// so a stored record never shares mutable values with its caller.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for i, f := range m {
		out[i] = Field{Key: f.Key, Value: cloneValue(f.Value)}
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Metadata:
		return x.Clone()
	case map[string]any:
		if x == nil {
			return x
		}
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	case map[string]string:
		if x == nil {
			return x
		}
		out := make(map[string]string, len(x))
		for k, val := range x {
			out[k] = val
		}
		return out
	case []string:
		if x == nil {
			return x
		}
		return append([]string(nil), x...)
	case []float64:
		if x == nil {
			return x
		}
		return append([]float64(nil), x...)
	case []int:
		if x == nil {
			return x
		}
		return append([]int(nil), x...)
	default:
		return v
	}
}

// Keys returns keys in insertion order
func (m Metadata) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON encodes metadata as a JSON object in insertion order
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal metadata key", goerr.V("key", f.Key))
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal metadata value", goerr.V("key", f.Key))
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the input
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return goerr.Wrap(err, "failed to read metadata")
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return goerr.New("metadata must be a JSON object", goerr.V("token", tok))
	}

	var md Metadata
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return goerr.Wrap(err, "failed to read metadata key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return goerr.New("metadata key must be a string", goerr.V("token", keyTok))
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return goerr.Wrap(err, "failed to read metadata value", goerr.V("key", key))
		}
		md = md.With(key, value)
	}
	*m = md
	return nil
}
