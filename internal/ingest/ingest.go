// Package ingest orchestrates spreadsheet uploads: validation, extraction,
// deterministic file placement, persistence sequencing, and the per-upload
// hidden-row set.
//
// Sequencing guarantee: the physical file hits disk before the database row
// is committed; when the insert fails afterwards the just-written file is
// removed again (best-effort compensating action, not a transaction). On
// delete the order inverts: the row goes first and the file unlink is
// best-effort, because dangling metadata is the worse failure.
package ingest

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidCategory indicates an unknown analise_jp category slug.
var ErrInvalidCategory = errors.New("categoria invalida")

// ErrWorkflowTypeMismatch indicates the target workflow's type does not
// accept the requested upload kind.
var ErrWorkflowTypeMismatch = errors.New("workflow nao suporta este tipo de upload")

// ErrNoValidIndices indicates a hide/restore request whose index list is
// empty after cleaning.
var ErrNoValidIndices = errors.New("nenhuma linha valida informada")

// Categories is the closed list of analise_jp business-data slots.
var Categories = []string{
	"simples_nacional",
	"lucro_real",
	"banco_horas",
	"notas",
	"lucro_presumido",
	"departamento_pessoal",
	"colaboradores",
	"impostos_fiscal",
	"empresas_mes",
	"servicos_simples",
	"servicos_lucro_presumido",
	"servicos_contabil",
	"servicos_contabil_det",
}

// ValidCategory reports whether slug is a known analise_jp category.
func ValidCategory(slug string) bool {
	for _, c := range Categories {
		if c == slug {
			return true
		}
	}
	return false
}

// CategoryLabel renders a category slug for display: underscore segments
// capitalized and joined with spaces.
func CategoryLabel(slug string) string {
	parts := strings.Split(slug, "_")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
	}
	if len(out) == 0 {
		return slug
	}
	return strings.Join(out, " ")
}

// NormalizeIndices cleans a caller-supplied index list: non-negative ints
// only, structurally invalid entries dropped silently, result sorted
// ascending and de-duplicated. Values arrive as any because JSON payloads
// deliver numbers as float64 and sometimes as strings.
func NormalizeIndices(values []any) []int {
	set := map[int]struct{}{}
	for _, v := range values {
		idx, ok := coerceIndex(v)
		if !ok || idx < 0 {
			continue
		}
		set[idx] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func coerceIndex(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		// JSON numbers; reject fractional values.
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
