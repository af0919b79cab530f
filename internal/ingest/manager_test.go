package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"painel/internal/storage"
	"painel/internal/tabular"
)

// fakeRepo implements storage.Repository for manager tests. Only the upload
// methods matter here; the rest are stubs.
type fakeRepo struct {
	storage.Repository

	createCalls int
	createErr   error
	lastUpload  *storage.Upload

	hiddenCalls  int
	hiddenErr    error
	lastHiddenID int64
	lastHidden   []int

	deleteCalls int
	deleteErr   error
	deletedID   int64

	workflowUploads   []storage.Upload
	deleteWorkflowErr error
	deletedWorkflowID int64
}

func (f *fakeRepo) CreateUpload(ctx context.Context, u *storage.Upload) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = 77
	f.lastUpload = u
	return nil
}

func (f *fakeRepo) UpdateHiddenRows(ctx context.Context, uploadID int64, indices []int) error {
	f.hiddenCalls++
	if f.hiddenErr != nil {
		return f.hiddenErr
	}
	f.lastHiddenID = uploadID
	f.lastHidden = indices
	return nil
}

func (f *fakeRepo) DeleteUpload(ctx context.Context, id int64) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedID = id
	return nil
}

func (f *fakeRepo) ListUploadsByWorkflow(ctx context.Context, workflowID int64) ([]storage.Upload, error) {
	return f.workflowUploads, nil
}

func (f *fakeRepo) DeleteWorkflow(ctx context.Context, ownerID, id int64) error {
	if f.deleteWorkflowErr != nil {
		return f.deleteWorkflowErr
	}
	f.deletedWorkflowID = id
	return nil
}

func analiseWorkflow() storage.Workflow {
	return storage.Workflow{ID: 9, Nome: "wf", Tipo: storage.TipoAnaliseJP, UsuarioID: 1}
}

func TestStore_WritesFileThenRow(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())
	m.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	data := []byte("indicador,valor\nreceita,100\n")
	u, err := m.Store(context.Background(), analiseWorkflow(), "notas", "dados.csv", data)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if u.ID != 77 {
		t.Fatalf("repo id not adopted: %d", u.ID)
	}
	if len(u.Dados) != 1 {
		t.Fatalf("expected 1 record, got %d", len(u.Dados))
	}
	if u.LinhasOcultas == nil || len(u.LinhasOcultas) != 0 {
		t.Fatalf("hidden set should start empty, got %v", u.LinhasOcultas)
	}

	raw, err := os.ReadFile(u.CaminhoArquivo)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(raw) != string(data) {
		t.Fatalf("stored bytes differ")
	}

	base := filepath.Base(u.CaminhoArquivo)
	if !strings.HasPrefix(base, "9_notas_20250301T120000_") || !strings.HasSuffix(base, "_dados.csv") {
		t.Fatalf("unexpected stored name: %q", base)
	}
	wantDir := filepath.Join(m.root, "analise_uploads", "9", "notas")
	if filepath.Dir(u.CaminhoArquivo) != wantDir {
		t.Fatalf("stored in %q, want %q", filepath.Dir(u.CaminhoArquivo), wantDir)
	}
}

func TestStore_RemovesFileWhenInsertFails(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	m := NewManager(repo, t.TempDir())

	_, err := m.Store(context.Background(), analiseWorkflow(), "notas", "dados.csv", []byte("a,b\n1,2\n"))
	if err == nil {
		t.Fatalf("expected error")
	}

	dir := filepath.Join(m.root, "analise_uploads", "9", "notas")
	entries, readErr := os.ReadDir(dir)
	if readErr == nil && len(entries) > 0 {
		t.Fatalf("orphaned file left behind: %v", entries)
	}
}

func TestStore_ValidatesCategoryAndType(t *testing.T) {
	m := NewManager(&fakeRepo{}, t.TempDir())
	ctx := context.Background()
	data := []byte("a,b\n1,2\n")

	if _, err := m.Store(ctx, analiseWorkflow(), "inexistente", "d.csv", data); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	bal := storage.Workflow{ID: 2, Tipo: storage.TipoBalancete}
	if _, err := m.Store(ctx, bal, "notas", "d.csv", data); !errors.Is(err, ErrWorkflowTypeMismatch) {
		t.Fatalf("expected ErrWorkflowTypeMismatch, got %v", err)
	}
	if _, err := m.Store(ctx, bal, "", "d.csv", data); err != nil {
		t.Fatalf("balancete upload with empty category should pass validation, got %v", err)
	}
}

func TestStore_RejectsBadPayloads(t *testing.T) {
	m := NewManager(&fakeRepo{}, t.TempDir())
	ctx := context.Background()
	wf := analiseWorkflow()

	if _, err := m.Store(ctx, wf, "notas", "d.pdf", []byte("x")); !errors.Is(err, tabular.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := m.Store(ctx, wf, "notas", "d.csv", nil); !errors.Is(err, tabular.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := m.Store(ctx, wf, "notas", "d.csv", []byte("a,b\n \n")); !errors.Is(err, tabular.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestDelete_RowFirstThenFile(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())

	path := filepath.Join(m.root, "f.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	u := storage.Upload{ID: 5, CaminhoArquivo: path}
	if err := m.Delete(context.Background(), u); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if repo.deletedID != 5 {
		t.Fatalf("row not deleted")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file not unlinked")
	}
}

func TestDelete_KeepsFileWhenRowDeleteFails(t *testing.T) {
	repo := &fakeRepo{deleteErr: errors.New("db down")}
	m := NewManager(repo, t.TempDir())

	path := filepath.Join(m.root, "f.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := m.Delete(context.Background(), storage.Upload{ID: 5, CaminhoArquivo: path}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should survive a failed row delete: %v", err)
	}
}

func TestDeleteWorkflow_RemovesRowsThenFiles(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())
	wf := analiseWorkflow()

	dir := filepath.Join(m.root, "analise_uploads", "9", "notas")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	inside := filepath.Join(dir, "a.csv")
	outside := filepath.Join(t.TempDir(), "antigo.csv")
	for _, p := range []string{inside, outside} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}
	repo.workflowUploads = []storage.Upload{
		{ID: 1, CaminhoArquivo: inside},
		{ID: 2, CaminhoArquivo: outside},
	}

	if err := m.DeleteWorkflow(context.Background(), wf); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if repo.deletedWorkflowID != 9 {
		t.Fatalf("rows not deleted for workflow 9: %d", repo.deletedWorkflowID)
	}
	// Files recorded outside the workflow directory are unlinked too.
	for _, p := range []string{inside, outside} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("file should be gone: %s", p)
		}
	}
	if _, err := os.Stat(filepath.Join(m.root, "analise_uploads", "9")); !os.IsNotExist(err) {
		t.Fatalf("workflow directory should be gone")
	}
}

func TestDeleteWorkflow_RowFailureKeepsFiles(t *testing.T) {
	repo := &fakeRepo{deleteWorkflowErr: errors.New("db down")}
	m := NewManager(repo, t.TempDir())

	path := filepath.Join(m.root, "f.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	repo.workflowUploads = []storage.Upload{{ID: 1, CaminhoArquivo: path}}

	if err := m.DeleteWorkflow(context.Background(), analiseWorkflow()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should survive a failed row delete: %v", err)
	}
}

func TestDelete_MissingFileIsNotAnError(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())

	u := storage.Upload{ID: 5, CaminhoArquivo: filepath.Join(m.root, "nope.csv")}
	if err := m.Delete(context.Background(), u); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func uploadWithRecords(n int, hidden []int) storage.Upload {
	records := make(tabular.RecordSet, 0, n)
	for i := 0; i < n; i++ {
		rec := tabular.NewRecord()
		rec.Set("indicador", string(rune('a'+i)))
		records = append(records, rec)
	}
	return storage.Upload{ID: 3, Dados: records, LinhasOcultas: hidden}
}

func TestHide_MergesAndPersists(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())

	u := uploadWithRecords(5, []int{1})
	got, err := m.Hide(context.Background(), u, []any{float64(3), float64(1)})
	if err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("hidden = %v, want [1 3]", got)
	}
	if repo.lastHiddenID != 3 || !reflect.DeepEqual(repo.lastHidden, []int{1, 3}) {
		t.Fatalf("persisted %v for id %d", repo.lastHidden, repo.lastHiddenID)
	}
}

func TestHide_DropsOutOfRangeIndices(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())

	u := uploadWithRecords(5, nil)
	got, err := m.Hide(context.Background(), u, []any{float64(1), float64(100)})
	if err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("hidden = %v, want [1]", got)
	}
	if !reflect.DeepEqual(repo.lastHidden, []int{1}) {
		t.Fatalf("persisted %v", repo.lastHidden)
	}
}

func TestHideRestore_NoValidIndices(t *testing.T) {
	m := NewManager(&fakeRepo{}, t.TempDir())
	u := uploadWithRecords(3, nil)

	if _, err := m.Hide(context.Background(), u, []any{"x", float64(-2)}); !errors.Is(err, ErrNoValidIndices) {
		t.Fatalf("Hide: expected ErrNoValidIndices, got %v", err)
	}
	// Index == record count is out of range; dropping it empties the list.
	if _, err := m.Hide(context.Background(), u, []any{float64(3)}); !errors.Is(err, ErrNoValidIndices) {
		t.Fatalf("Hide out of range: expected ErrNoValidIndices, got %v", err)
	}
	if _, err := m.Restore(context.Background(), u, nil); !errors.Is(err, ErrNoValidIndices) {
		t.Fatalf("Restore: expected ErrNoValidIndices, got %v", err)
	}
	if _, err := m.Restore(context.Background(), u, []any{float64(100)}); !errors.Is(err, ErrNoValidIndices) {
		t.Fatalf("Restore out of range: expected ErrNoValidIndices, got %v", err)
	}
}

func TestRestore_RemovesOnlyGivenIndices(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(repo, t.TempDir())

	u := uploadWithRecords(5, []int{1, 3})
	got, err := m.Restore(context.Background(), u, []any{float64(3), float64(4)})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("hidden = %v, want [1]", got)
	}
}

func TestVisibleRecords(t *testing.T) {
	t.Parallel()

	u := uploadWithRecords(4, []int{1, 3, 99})
	visible := VisibleRecords(u)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible records, got %d", len(visible))
	}
	if visible[0].Value("indicador") != "a" || visible[1].Value("indicador") != "c" {
		t.Fatalf("wrong records kept: %v %v", visible[0], visible[1])
	}

	u.LinhasOcultas = nil
	if len(VisibleRecords(u)) != 4 {
		t.Fatalf("no hidden rows should mean all visible")
	}
}
