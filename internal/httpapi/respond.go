package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"painel/internal/chart"
	"painel/internal/ingest"
	"painel/internal/storage"
	"painel/internal/tabular"
)

type errUnauthorized struct{ err error }

func (e errUnauthorized) Error() string { return e.err.Error() }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: escrever resposta: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps an error to its HTTP status. Validation-class errors
// surface their message; anything unexpected logs with context and returns
// a generic 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var unauthorized errUnauthorized
	if errors.As(err, &unauthorized) {
		writeError(w, http.StatusUnauthorized, unauthorized.Error())
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, storage.ErrNotFound.Error())
		return
	}
	if isValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("httpapi: %s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "erro interno ao processar a requisicao")
}

func isValidation(err error) bool {
	switch {
	case errors.Is(err, tabular.ErrInvalidFormat),
		errors.Is(err, tabular.ErrEmptyFile),
		errors.Is(err, tabular.ErrEmptyDataset),
		errors.Is(err, ingest.ErrInvalidCategory),
		errors.Is(err, ingest.ErrWorkflowTypeMismatch),
		errors.Is(err, ingest.ErrNoValidIndices),
		errors.Is(err, storage.ErrDuplicateName),
		errors.Is(err, chart.ErrTooManySeries),
		errors.Is(err, chart.ErrColorCountMismatch),
		errors.Is(err, chart.ErrNoSeries),
		errors.Is(err, chart.ErrMissingLabelKey):
		return true
	}
	var unknownField *chart.UnknownFieldError
	if errors.As(err, &unknownField) {
		return true
	}
	var unknownKind *chart.UnknownKindError
	if errors.As(err, &unknownKind) {
		return true
	}
	var badRequest errBadRequest
	return errors.As(err, &badRequest)
}

// errBadRequest wraps handler-local validation failures (malformed JSON,
// bad path parameters) so respondError maps them to 400.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }

func badRequest(err error) error { return errBadRequest{err} }
