package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"familyledger/internal/log"
	"familyledger/internal/session"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess := s.sessions.Open(req.User)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Session opened",
		log.NewFields().WithSession(sess.ID).WithOperation(log.OpCreate).ToSlice()...)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// touchSession resets the idle timer of the session named in the request
// header. Requests without the header pass through.
func (s *Server) touchSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(sessionHeader); id != "" {
			if _, err := s.sessions.Touch(id); err != nil {
				writeError(w, r, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sessionEnded cancels every in-flight report of an ended session.
func (s *Server) sessionEnded(sess session.Session) {
	for _, kind := range reportKinds {
		s.supersede.Cancel(reportKey(sess.ID, kind))
	}
	s.logger.InfoContext(context.Background(), "Session ended", log.FieldSessionID, sess.ID)
}
