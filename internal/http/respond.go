package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"familyledger/internal/log"
	"familyledger/internal/repository"
	"familyledger/internal/services"
	"familyledger/internal/session"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

// problemDetail is an RFC 7807 problem body.
type problemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problemDetail{Title: title, Status: status, Detail: detail})
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(problemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: "request fields failed validation",
			Fields: fields,
		})
	case errors.Is(err, errMalformedBody):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, session.ErrSuperseded):
		writeProblem(w, http.StatusConflict, "Superseded", err.Error())
	case errors.Is(err, session.ErrUnknownSession):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, services.ErrRepository):
		logger.ErrorContext(ctx, "Repository failure",
			log.NewFields().WithError(err).WithErrorType(log.ErrorTypeRepository).ToSlice()...)
		writeProblem(w, http.StatusBadGateway, "Repository Unavailable", "the data store did not answer")
	case errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Cancelled", "request was cancelled")
	default:
		logger.ErrorContext(ctx, "Unhandled error",
			log.NewFields().WithError(err).WithErrorType(log.ErrorTypeInternal).ToSlice()...)
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// decodeJSON reads a size-limited JSON body into target and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return s.validate.Struct(target)
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
}
