package ingest

import (
	"reflect"
	"testing"
)

func TestNormalizeIndices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []any
		want []int
	}{
		{"sorted dedup", []any{float64(3), float64(1), float64(3), float64(0)}, []int{0, 1, 3}},
		{"negatives dropped", []any{float64(-1), float64(2)}, []int{2}},
		{"strings coerced", []any{"5", " 2 ", "x"}, []int{2, 5}},
		{"fractions dropped", []any{1.5, float64(2)}, []int{2}},
		{"ints pass", []any{1, int64(4)}, []int{1, 4}},
		{"garbage dropped", []any{nil, true, []any{1}}, []int{}},
		{"empty", nil, []int{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeIndices(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("NormalizeIndices(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidCategory(t *testing.T) {
	t.Parallel()

	if !ValidCategory("simples_nacional") {
		t.Fatalf("known category rejected")
	}
	if ValidCategory("outra_coisa") || ValidCategory("") {
		t.Fatalf("unknown category accepted")
	}
	if len(Categories) != 13 {
		t.Fatalf("expected 13 categories, got %d", len(Categories))
	}
}

func TestCategoryLabel(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"simples_nacional", "Simples Nacional"},
		{"departamento_pessoal", "Departamento Pessoal"},
		{"notas", "Notas"},
		{"servicos_contabil_det", "Servicos Contabil Det"},
	}
	for _, tt := range tests {
		if got := CategoryLabel(tt.in); got != tt.want {
			t.Fatalf("CategoryLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"relatório mensal.xlsx", "relatorio_mensal.xlsx"},
		{"../../etc/passwd", "passwd"},
		{"dados (1).csv", "dados_1.csv"},
		{"ação#çã@.csv", "acaoca.csv"},
		{"   ", "arquivo"},
		{"normal.csv", "normal.csv"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
