package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"familyledger/internal/core"
)

func bloodPressureResponses(items []core.BloodPressure) []bloodPressureResponse {
	out := make([]bloodPressureResponse, 0, len(items))
	for _, b := range items {
		out = append(out, newBloodPressureResponse(b))
	}
	return out
}

func (s *Server) handleListBloodPressure(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.BloodPressure.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bloodPressureResponses(items))
}

func (s *Server) handleBloodPressureRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.BloodPressure.Range(r.Context(), window.Start, window.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bloodPressureResponses(items))
}

func (s *Server) handleCreateBloodPressure(w http.ResponseWriter, r *http.Request) {
	var req bloodPressureRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := req.toBloodPressure()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.BloodPressure.Create(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBloodPressureResponse(created))
}

func (s *Server) handleGetBloodPressure(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.BloodPressure.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBloodPressureResponse(b))
}

func (s *Server) handleUpdateBloodPressure(w http.ResponseWriter, r *http.Request) {
	var req bloodPressureRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := req.toBloodPressure()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b.ID = chi.URLParam(r, "id")
	updated, err := s.svc.BloodPressure.Update(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBloodPressureResponse(updated))
}

func (s *Server) handleDeleteBloodPressure(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.BloodPressure.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
