package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"painel/internal/metrics"
	"painel/internal/storage"
	"painel/internal/tabular"
)

// Manager runs the upload lifecycle against one storage root and one
// repository.
type Manager struct {
	repo storage.Repository
	root string

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

// NewManager builds a Manager storing files under root.
func NewManager(repo storage.Repository, root string) *Manager {
	return &Manager{repo: repo, root: root, now: time.Now}
}

// Store validates, extracts, and persists one uploaded spreadsheet for the
// given workflow. filename is the client-supplied name, data the raw bytes.
//
// The physical file is written before the database insert; when the insert
// fails the file is removed again so a failed upload leaves no trace. A
// failure of that compensating removal is only logged.
func (m *Manager) Store(ctx context.Context, wf storage.Workflow, categoria, filename string, data []byte) (storage.Upload, error) {
	if err := checkCategory(wf, categoria); err != nil {
		return storage.Upload{}, err
	}

	start := m.now()
	table, err := tabular.Decode(data, filepath.Ext(filename))
	if err != nil {
		return storage.Upload{}, err
	}
	records, err := tabular.Normalize(table)
	if err != nil {
		return storage.Upload{}, err
	}
	metrics.ObserveHistogram(metrics.DecodeDuration, m.now().Sub(start).Seconds(), metrics.Labels{"categoria": categoria})

	dir := uploadDir(m.root, wf.ID, categoria)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.Upload{}, fmt.Errorf("criar diretorio de upload: %w", err)
	}
	path := filepath.Join(dir, storedName(wf.ID, categoria, filename, m.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return storage.Upload{}, fmt.Errorf("gravar arquivo de upload: %w", err)
	}

	u := storage.Upload{
		WorkflowID:     wf.ID,
		Categoria:      categoria,
		NomeArquivo:    filename,
		CaminhoArquivo: path,
		Dados:          records,
		LinhasOcultas:  []int{},
	}
	if err := m.repo.CreateUpload(ctx, &u); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Printf("ingest: remover arquivo apos falha de insert path=%s err=%v", path, rmErr)
		}
		return storage.Upload{}, fmt.Errorf("persistir upload: %w", err)
	}

	metrics.IncCounter(metrics.UploadsTotal, 1, metrics.Labels{"categoria": categoria, "tipo": wf.Tipo})
	metrics.IncCounter(metrics.UploadRecordsTotal, float64(len(records)), metrics.Labels{"categoria": categoria})
	metrics.IncCounter(metrics.UploadBytesTotal, float64(len(data)), metrics.Labels{"categoria": categoria})
	return u, nil
}

// Delete removes an upload. The database row goes first; the physical file
// unlink afterwards is best-effort, a missing or locked file never fails
// the delete.
func (m *Manager) Delete(ctx context.Context, u storage.Upload) error {
	if err := m.repo.DeleteUpload(ctx, u.ID); err != nil {
		return err
	}
	if u.CaminhoArquivo != "" {
		if err := os.Remove(u.CaminhoArquivo); err != nil && !os.IsNotExist(err) {
			log.Printf("ingest: remover arquivo de upload path=%s err=%v", u.CaminhoArquivo, err)
		}
	}
	return nil
}

// DeleteWorkflow removes a workflow's database rows and then its stored
// files. Upload paths are captured before the transactional row delete so
// files written under an older storage root still get unlinked; the file
// cleanup itself is best-effort, log-only.
func (m *Manager) DeleteWorkflow(ctx context.Context, wf storage.Workflow) error {
	uploads, err := m.repo.ListUploadsByWorkflow(ctx, wf.ID)
	if err != nil {
		return err
	}
	if err := m.repo.DeleteWorkflow(ctx, wf.UsuarioID, wf.ID); err != nil {
		return err
	}

	for _, u := range uploads {
		if u.CaminhoArquivo == "" {
			continue
		}
		if err := os.Remove(u.CaminhoArquivo); err != nil && !os.IsNotExist(err) {
			log.Printf("ingest: remover arquivo de upload path=%s err=%v", u.CaminhoArquivo, err)
		}
	}
	dir := filepath.Join(m.root, "analise_uploads", fmt.Sprint(wf.ID))
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("ingest: remover diretorio do workflow dir=%s err=%v", dir, err)
	}
	return nil
}

func checkCategory(wf storage.Workflow, categoria string) error {
	switch wf.Tipo {
	case storage.TipoAnaliseJP:
		if !ValidCategory(categoria) {
			return ErrInvalidCategory
		}
	case storage.TipoBalancete:
		if categoria != "" {
			return ErrWorkflowTypeMismatch
		}
	default:
		return ErrWorkflowTypeMismatch
	}
	return nil
}
