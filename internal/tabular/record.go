package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one row of extracted data as an ordered field-name→text-value
// map. Field order follows the cleaned header list, which matters only for
// serialization: consumers must treat a Record as an unordered map.
//
// Records are dynamic by design; field sets vary per upload and there is no
// declared schema, so a fixed struct cannot model them.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{values: map[string]string{}}
}

// Set stores a value, appending the key on first sight.
func (r *Record) Set(key, value string) {
	if r.values == nil {
		r.values = map[string]string{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key and whether the field exists.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value for key, or "" when the field is absent.
func (r Record) Value(key string) string {
	return r.values[key]
}

// Keys returns the field names in insertion order. The slice is shared;
// callers must not mutate it.
func (r Record) Keys() []string {
	return r.keys
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the record as a JSON object with fields in header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order. Non-string scalar
// values are coerced to their literal text (numbers keep their exact JSON
// representation); nested values are kept as compact JSON text.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("registro: esperado objeto JSON")
	}

	out := NewRecord()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("registro: chave invalida")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out.Set(key, coerceScalar(raw))
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}

	*r = out
	return nil
}

func coerceScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// RecordSet is the ordered sequence of records extracted from one upload.
type RecordSet []Record

// UnmarshalJSON decodes a persisted record-set blob. The blob is
// schema-on-read: elements that are not JSON objects are skipped rather than
// raised, so one malformed entry cannot poison a whole dataset.
func (rs *RecordSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(RecordSet, 0, len(raw))
	for _, el := range raw {
		trimmed := bytes.TrimSpace(el)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var rec Record
		if err := rec.UnmarshalJSON(trimmed); err != nil {
			continue
		}
		out = append(out, rec)
	}
	*rs = out
	return nil
}

// Fields returns the field-name set of the record set, taken from the first
// record. Every record produced by Normalize shares the same key set.
func (rs RecordSet) Fields() []string {
	if len(rs) == 0 {
		return nil
	}
	return rs[0].Keys()
}

// Normalize converts a decoded table into the final record set.
//
// Header cleanup: names are trimmed; names empty after trimming become
// "Coluna N" (1-based position); duplicate names get a numeric suffix so the
// key set is unique. Row cleanup: rows whose every cell trims to "" are
// dropped and surviving cells are trimmed. Fails with ErrEmptyDataset when
// zero records remain.
func Normalize(t Table) (RecordSet, error) {
	if len(t.Headers) == 0 || len(t.Rows) == 0 {
		return nil, ErrEmptyDataset
	}

	headers := cleanHeaders(t.Headers)

	records := make(RecordSet, 0, len(t.Rows))
	for _, row := range t.Rows {
		if isBlankRow(row) {
			continue
		}
		rec := NewRecord()
		for i, h := range headers {
			var v string
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec.Set(h, v)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	return records, nil
}

func cleanHeaders(raw []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Coluna %d", i+1)
		}
		if seen[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
