// Package httpapi exposes the workflow, upload, dataset, chart, and theme
// operations over HTTP/JSON.
//
// Identity comes from the X-User-ID header, set by a fronting auth proxy.
// Requests without it are rejected with 401; this service never sees
// credentials.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"painel/internal/ingest"
	"painel/internal/metrics"
	"painel/internal/storage"
)

// Server wires handlers to their collaborators.
type Server struct {
	repo    storage.Repository
	manager *ingest.Manager
	mux     *http.ServeMux
}

// New builds the HTTP surface over the given repository and upload manager.
func New(repo storage.Repository, manager *ingest.Manager) *Server {
	s := &Server{repo: repo, manager: manager, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("PUT /api/workflows/{id}", s.handleUpdateWorkflow)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("GET /api/workflows/{id}/categorias", s.handleCategories)

	s.mux.HandleFunc("POST /api/workflows/{id}/uploads/{categoria}", s.handleUpload)
	s.mux.HandleFunc("GET /api/workflows/{id}/uploads/{categoria}", s.handleListUploads)
	s.mux.HandleFunc("GET /api/workflows/{id}/dataset/{categoria}", s.handleDataset)
	s.mux.HandleFunc("GET /api/workflows/{id}/uploads/{categoria}/{uid}/dataset", s.handleUploadDataset)
	s.mux.HandleFunc("POST /api/workflows/{id}/uploads/{categoria}/{uid}/linhas_ocultas", s.handleHiddenRows)
	s.mux.HandleFunc("DELETE /api/workflows/{id}/uploads/{categoria}/{uid}", s.handleDeleteUpload)

	s.mux.HandleFunc("GET /api/workflows/{id}/charts", s.handleListCharts)
	s.mux.HandleFunc("POST /api/workflows/{id}/charts", s.handleCreateChart)
	s.mux.HandleFunc("PUT /api/workflows/{id}/charts/{cid}", s.handleUpdateChart)
	s.mux.HandleFunc("DELETE /api/workflows/{id}/charts/{cid}", s.handleDeleteChart)
	s.mux.HandleFunc("POST /api/workflows/{id}/charts/{cid}/duplicar", s.handleDuplicateChart)

	s.mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	s.mux.HandleFunc("POST /api/theme", s.handleSetTheme)

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ServeHTTP implements http.Handler with request metrics around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rec, r)

	labels := metrics.Labels{
		"method": r.Method,
		"status": strconv.Itoa(rec.status),
	}
	metrics.IncCounter(metrics.HTTPRequestsTotal, 1, labels)
	metrics.ObserveHistogram(metrics.HTTPDuration, time.Since(start).Seconds(), labels)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// userID extracts the caller identity from X-User-ID.
func userID(r *http.Request) (int64, error) {
	v := r.Header.Get("X-User-ID")
	if v == "" {
		return 0, fmt.Errorf("cabecalho X-User-ID ausente")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("cabecalho X-User-ID invalido")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Errorf("identificador invalido em %s", name))
	}
	return id, nil
}

// workflow loads the path workflow scoped to the caller.
func (s *Server) workflow(r *http.Request) (storage.Workflow, error) {
	owner, err := userID(r)
	if err != nil {
		return storage.Workflow{}, errUnauthorized{err}
	}
	id, err := pathID(r, "id")
	if err != nil {
		return storage.Workflow{}, err
	}
	return s.repo.GetWorkflow(r.Context(), owner, id)
}

// pathCategoria maps the URL category segment to the stored value.
// Balancete workflows use the fixed "balancete" segment, stored as "".
func pathCategoria(r *http.Request, wf storage.Workflow) (string, error) {
	seg := r.PathValue("categoria")
	if wf.Tipo == storage.TipoBalancete {
		if seg != "balancete" {
			return "", ingest.ErrWorkflowTypeMismatch
		}
		return "", nil
	}
	if !ingest.ValidCategory(seg) {
		return "", ingest.ErrInvalidCategory
	}
	return seg, nil
}
