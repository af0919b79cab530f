package ingest

import (
	"context"

	"painel/internal/storage"
	"painel/internal/tabular"
)

// Hide adds the given record indices to an upload's hidden set and persists
// the merged set. Indices are cleaned with NormalizeIndices and entries
// beyond the record count are dropped; the request fails with
// ErrNoValidIndices only when nothing usable remains. Returns the new
// hidden set.
func (m *Manager) Hide(ctx context.Context, u storage.Upload, indices []any) ([]int, error) {
	clean := inRange(NormalizeIndices(indices), len(u.Dados))
	if len(clean) == 0 {
		return nil, ErrNoValidIndices
	}

	merged := NormalizeIndices(toAny(append(append([]int{}, u.LinhasOcultas...), clean...)))
	if err := m.repo.UpdateHiddenRows(ctx, u.ID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Restore removes the given indices from an upload's hidden set and
// persists the remainder. Cleaning mirrors Hide: out-of-range entries are
// dropped and an empty remainder fails with ErrNoValidIndices. Indices not
// currently hidden are ignored.
func (m *Manager) Restore(ctx context.Context, u storage.Upload, indices []any) ([]int, error) {
	clean := inRange(NormalizeIndices(indices), len(u.Dados))
	if len(clean) == 0 {
		return nil, ErrNoValidIndices
	}

	drop := map[int]struct{}{}
	for _, idx := range clean {
		drop[idx] = struct{}{}
	}
	kept := make([]int, 0, len(u.LinhasOcultas))
	for _, idx := range u.LinhasOcultas {
		if _, hidden := drop[idx]; !hidden {
			kept = append(kept, idx)
		}
	}

	if err := m.repo.UpdateHiddenRows(ctx, u.ID, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// VisibleRecords returns the upload's records minus the hidden ones, in
// original order. Hidden indices outside the record range are ignored.
func VisibleRecords(u storage.Upload) tabular.RecordSet {
	if len(u.LinhasOcultas) == 0 {
		return u.Dados
	}
	hidden := map[int]struct{}{}
	for _, idx := range u.LinhasOcultas {
		hidden[idx] = struct{}{}
	}
	out := make(tabular.RecordSet, 0, len(u.Dados))
	for i, rec := range u.Dados {
		if _, h := hidden[i]; h {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// inRange keeps only indices below total. NormalizeIndices already removed
// negatives and duplicates.
func inRange(in []int, total int) []int {
	out := in[:0]
	for _, idx := range in {
		if idx < total {
			out = append(out, idx)
		}
	}
	return out
}

func toAny(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
