package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"painel/internal/chart"
	"painel/internal/ingest"
	"painel/internal/metrics"
	"painel/internal/storage"
	"painel/internal/tabular"
	"painel/internal/theme"
)

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list, err := s.repo.ListCharts(r.Context(), wf.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charts": list})
}

func (s *Server) handleCreateChart(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.buildChart(r, wf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	c.WorkflowID = wf.ID
	if err := s.repo.CreateChart(r.Context(), &c); err != nil {
		s.respondError(w, r, err)
		return
	}

	metrics.IncCounter(metrics.ChartsTotal, 1, metrics.Labels{"kind": c.ChartType, "tipo": wf.Tipo})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "grafico criado com sucesso",
		"chart":   c,
	})
}

func (s *Server) handleUpdateChart(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cid, err := pathID(r, "cid")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	existing, err := s.repo.GetChart(r.Context(), wf.ID, cid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.buildChart(r, wf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	c.ID = existing.ID
	c.WorkflowID = wf.ID
	c.CreatedAt = existing.CreatedAt
	if err := s.repo.UpdateChart(r.Context(), c); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "grafico atualizado com sucesso",
		"chart":   c,
	})
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cid, err := pathID(r, "cid")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.repo.DeleteChart(r.Context(), wf.ID, cid); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "grafico removido com sucesso"})
}

func (s *Server) handleDuplicateChart(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	cid, err := pathID(r, "cid")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	original, err := s.repo.GetChart(r.Context(), wf.ID, cid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cp := chart.Duplicate(original)
	cp.WorkflowID = wf.ID
	if err := s.repo.CreateChart(r.Context(), &cp); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "grafico duplicado com sucesso",
		"chart":   cp,
	})
}

// buildChart decodes and validates a chart payload against the latest
// dataset of its source, using the caller's theme palette for fallback
// colors.
func (s *Server) buildChart(r *http.Request, wf storage.Workflow) (storage.Chart, error) {
	var p chart.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return storage.Chart{}, badRequest(fmt.Errorf("json invalido: %w", err))
	}

	categoria := p.SourceID
	if wf.Tipo == storage.TipoBalancete {
		categoria = ""
	} else if !ingest.ValidCategory(categoria) {
		return storage.Chart{}, ingest.ErrInvalidCategory
	}

	latest, err := s.repo.LatestUpload(r.Context(), wf.ID, categoria)
	if err != nil {
		return storage.Chart{}, err
	}
	visible := ingest.VisibleRecords(latest)

	// Analise JP charts may reference any column of the dataset; only
	// balancete narrows the choice to the inferred label/value split.
	fields := visible.Fields()
	if wf.Tipo == storage.TipoBalancete {
		info := tabular.InferFields(visible)
		fields = append([]string(nil), info.LabelFields...)
		for _, vf := range info.ValueFields {
			fields = append(fields, vf.Key)
		}
	}

	palette := theme.Get(theme.DefaultName).Palette
	if owner, uerr := userID(r); uerr == nil {
		if name, terr := s.repo.GetUserTheme(r.Context(), owner); terr == nil && name != "" {
			palette = theme.Get(name).Palette
		}
	}

	return chart.Build(p, wf.Tipo, fields, palette)
}
