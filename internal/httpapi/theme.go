package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"painel/internal/theme"
)

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		s.respondError(w, r, errUnauthorized{err})
		return
	}
	name, err := s.repo.GetUserTheme(r.Context(), owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	t := theme.Get(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"theme":   t.Name,
		"palette": t.Palette,
		"themes":  theme.Names(),
	})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		s.respondError(w, r, errUnauthorized{err})
		return
	}

	var p struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, badRequest(fmt.Errorf("json invalido: %w", err)))
		return
	}

	// Unknown names coerce to the default theme rather than failing.
	name := strings.TrimSpace(p.Theme)
	if !theme.Known(name) {
		name = theme.DefaultName
	}

	if err := s.repo.SetUserTheme(r.Context(), owner, name); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "tema atualizado", "theme": name})
}
