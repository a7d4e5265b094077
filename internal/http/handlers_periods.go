package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.svc.Periods.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, newPeriodResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Periods.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPeriodResponse(created))
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Periods.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodResponse(p))
}

func (s *Server) handleUpdatePeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.toPeriod()
	if err != nil {
		writeError(w, r, err)
		return
	}
	p.ID = chi.URLParam(r, "id")
	updated, err := s.svc.Periods.Update(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodResponse(updated))
}

func (s *Server) handleDeletePeriod(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Periods.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSuggestPeriod proposes the default window for ?month&year without
// storing it.
func (s *Server) handleSuggestPeriod(w http.ResponseWriter, r *http.Request) {
	label, year, err := monthParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Periods.Suggest(strings.TrimSpace(label), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPeriodResponse(p))
}

