package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"painel/internal/ingest"
	"painel/internal/storage"
	"painel/internal/tabular"
)

// maxUploadBytes caps spreadsheet uploads at 16 MiB.
const maxUploadBytes = 16 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	categoria, err := pathCategoria(r, wf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("arquivo")
	if err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("arquivo nao enviado: %w", err)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("ler arquivo enviado: %w", err))
		return
	}

	u, err := s.manager.Store(r.Context(), wf, categoria, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":           "arquivo processado com sucesso",
		"upload":            uploadMeta(u),
		"dados_processados": u.Dados,
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	categoria, err := pathCategoria(r, wf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	list, err := s.repo.ListUploads(r.Context(), wf.ID, categoria)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, u := range list {
		out = append(out, uploadMeta(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": out})
}

// handleDataset serves the latest processed dataset of a category.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	categoria, err := pathCategoria(r, wf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u, err := s.repo.LatestUpload(r.Context(), wf.ID, categoria)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetBody(u))
}

// handleUploadDataset serves one specific upload's dataset.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	u, err := s.upload(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetBody(u))
}

func (s *Server) handleHiddenRows(w http.ResponseWriter, r *http.Request) {
	u, err := s.upload(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var p struct {
		Acao    string `json:"acao"`
		Indices []any  `json:"indices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("json invalido: %w", err)))
		return
	}

	var hidden []int
	switch strings.ToLower(strings.TrimSpace(p.Acao)) {
	case "ocultar":
		hidden, err = s.manager.Hide(r.Context(), u, p.Indices)
	case "restaurar":
		hidden, err = s.manager.Restore(r.Context(), u, p.Indices)
	default:
		err = badRequest(fmt.Errorf("acao invalida: %q (use ocultar ou restaurar)", p.Acao))
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u.LinhasOcultas = hidden
	visible := ingest.VisibleRecords(u)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "linhas atualizadas com sucesso",
		"linhas_ocultas":     hidden,
		"registros_visiveis": visible,
		"total_registros":    len(u.Dados),
		"hidden_count":       len(hidden),
	})
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	u, err := s.upload(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.manager.Delete(r.Context(), u); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "upload removido com sucesso"})
}

// upload loads the path upload after workflow and category checks.
func (s *Server) upload(r *http.Request) (storage.Upload, error) {
	wf, err := s.workflow(r)
	if err != nil {
		return storage.Upload{}, err
	}
	categoria, err := pathCategoria(r, wf)
	if err != nil {
		return storage.Upload{}, err
	}
	uid, err := pathID(r, "uid")
	if err != nil {
		return storage.Upload{}, err
	}
	return s.repo.GetUpload(r.Context(), wf.ID, categoria, uid)
}

// uploadMeta is the upload response shape without the record blob.
func uploadMeta(u storage.Upload) map[string]any {
	return map[string]any{
		"id":             u.ID,
		"workflow_id":    u.WorkflowID,
		"categoria":      u.Categoria,
		"nome_arquivo":   u.NomeArquivo,
		"linhas_ocultas": u.LinhasOcultas,
		"record_count":   len(u.Dados),
		"data_upload":    u.CreatedAt,
	}
}

func datasetBody(u storage.Upload) map[string]any {
	visible := ingest.VisibleRecords(u)
	fields := visible.Fields()
	info := tabular.InferFields(visible)

	label := ingest.CategoryLabel(u.Categoria)
	if u.Categoria == "" {
		label = "Balancete"
	}
	return map[string]any{
		"categoria":       u.Categoria,
		"categoria_label": label,
		"record_count":    len(visible),
		"total_records":   len(u.Dados),
		"hidden_count":    len(u.LinhasOcultas),
		"linhas_ocultas":  u.LinhasOcultas,
		"fields":          fields,
		"label_fields":    info.LabelFields,
		"value_fields":    info.ValueFields,
		"records":         visible,
		"upload":          uploadMeta(u),
	}
}
