package tabular

import (
	"strconv"
	"strings"
)

// inferSampleSize bounds how many records field inference inspects.
const inferSampleSize = 10

// ValueField is a numeric field candidate with a display label for pickers.
type ValueField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// FieldInfo is the advisory output of field inference, consumed by chart
// builder UIs. It never reflects back into stored data.
type FieldInfo struct {
	LabelFields []string     `json:"label_fields"`
	ValueFields []ValueField `json:"value_fields"`
}

// InferFields classifies the fields of a record set as label-like or
// numeric-like.
//
// Label fields are names that look like identifier columns (contain
// "indicador" or end with "nome"); when none match, the first field is the
// fallback. A field counts as numeric when every non-blank value in the
// sample (first 10 records) parses as a number; the first non-numeric value
// disqualifies the field immediately. Blank values are skipped and never
// count against numeric-ness.
//
// Inference is best-effort and tolerates irregular records without raising.
func InferFields(rs RecordSet) FieldInfo {
	fields := rs.Fields()
	if len(fields) == 0 {
		return FieldInfo{}
	}

	var labels []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "indicador") || strings.HasSuffix(lower, "nome") {
			labels = append(labels, f)
		}
	}
	if len(labels) == 0 {
		labels = []string{fields[0]}
	}

	sample := rs
	if len(sample) > inferSampleSize {
		sample = sample[:inferSampleSize]
	}

	var values []ValueField
	for _, f := range fields {
		if isNumericField(sample, f) {
			values = append(values, ValueField{Key: f, Label: FieldLabel(f)})
		}
	}

	return FieldInfo{LabelFields: labels, ValueFields: values}
}

func isNumericField(sample RecordSet, field string) bool {
	seen := false
	for _, rec := range sample {
		v, ok := rec.Get(field)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if !parsesAsNumber(v) {
			return false
		}
		seen = true
	}
	return seen
}

// parsesAsNumber accepts plain float syntax and the pt-BR convention where
// "." separates thousands and "," is the decimal mark ("1.234,56").
func parsesAsNumber(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	normalized := strings.ReplaceAll(s, ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)
	_, err := strconv.ParseFloat(normalized, 64)
	return err == nil
}

// FieldLabel renders a raw field key as a human-readable label: underscore
// segments are capitalized and joined with spaces. A key with no usable
// segments is returned verbatim.
func FieldLabel(key string) string {
	parts := strings.Split(key, "_")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, capitalize(p))
	}
	if len(out) == 0 {
		return key
	}
	return strings.Join(out, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}
