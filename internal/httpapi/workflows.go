package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"painel/internal/ingest"
	"painel/internal/storage"
)

type workflowPayload struct {
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
	Tipo      string `json:"tipo"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		s.respondError(w, r, errUnauthorized{err})
		return
	}

	// ?nome= resolves a single workflow by its exact name.
	if nome := strings.TrimSpace(r.URL.Query().Get("nome")); nome != "" {
		wf, err := s.repo.GetWorkflowByName(r.Context(), owner, nome)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workflow": wf})
		return
	}

	list, err := s.repo.ListWorkflows(r.Context(), owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": list})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		s.respondError(w, r, errUnauthorized{err})
		return
	}

	var p workflowPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("json invalido: %w", err)))
		return
	}
	p.Nome = strings.TrimSpace(p.Nome)
	if p.Nome == "" {
		s.respondError(w, r, badRequest(fmt.Errorf("informe o nome do workflow")))
		return
	}
	if !storage.ValidTipo(p.Tipo) {
		s.respondError(w, r, badRequest(fmt.Errorf("tipo de workflow invalido: %q", p.Tipo)))
		return
	}

	wf := storage.Workflow{
		Nome:      p.Nome,
		Descricao: strings.TrimSpace(p.Descricao),
		Tipo:      p.Tipo,
		UsuarioID: owner,
	}
	if err := s.repo.CreateWorkflow(r.Context(), &wf); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "workflow criado com sucesso",
		"workflow": wf,
	})
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var p workflowPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("json invalido: %w", err)))
		return
	}
	if nome := strings.TrimSpace(p.Nome); nome != "" {
		wf.Nome = nome
	}
	wf.Descricao = strings.TrimSpace(p.Descricao)
	if p.Tipo != "" {
		if !storage.ValidTipo(p.Tipo) {
			s.respondError(w, r, badRequest(fmt.Errorf("tipo de workflow invalido: %q", p.Tipo)))
			return
		}
		// Changing the type leaves existing uploads and charts under the
		// old type's semantics; nothing migrates them.
		wf.Tipo = p.Tipo
	}

	if err := s.repo.UpdateWorkflow(r.Context(), wf); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "workflow atualizado com sucesso",
		"workflow": wf,
	})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	// Rows go first; physical file cleanup is best-effort afterwards.
	if err := s.manager.DeleteWorkflow(r.Context(), wf); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "workflow removido com sucesso"})
}

// handleCategories lists the category slots of a workflow, flagging which
// already hold data.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	withData, err := s.repo.CategoriesWithData(r.Context(), wf.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	filled := map[string]bool{}
	for _, c := range withData {
		filled[c] = true
	}

	type categoria struct {
		Slug     string `json:"slug"`
		Label    string `json:"label"`
		ComDados bool   `json:"com_dados"`
	}

	var out []categoria
	if wf.Tipo == storage.TipoAnaliseJP {
		for _, slug := range ingest.Categories {
			out = append(out, categoria{Slug: slug, Label: ingest.CategoryLabel(slug), ComDados: filled[slug]})
		}
	} else {
		out = append(out, categoria{Slug: "balancete", Label: "Balancete", ComDados: filled[""]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categorias": out})
}
