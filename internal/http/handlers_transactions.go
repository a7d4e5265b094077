package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/log"
	"familyledger/internal/repository"
)

func (s *Server) transactionRoutes(r chi.Router, domain core.Domain) {
	r.Get("/transactions", s.handleListTransactions(domain))
	r.Post("/transactions", s.handleCreateTransaction(domain))
	r.Get("/transactions/{id}", s.handleGetTransaction(domain))
	r.Put("/transactions/{id}", s.handleUpdateTransaction(domain))
	r.Delete("/transactions/{id}", s.handleDeleteTransaction(domain))
	r.Get("/search", s.handleSearch(domain))
}

func (s *Server) handleListTransactions(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := s.svc.Transactions.List(r.Context(), domain)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTransactionResponses(txs))
	}
}

func (s *Server) handleCreateTransaction(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := req.toTransaction(domain)
		if err != nil {
			writeError(w, r, err)
			return
		}
		created, err := s.svc.Transactions.Create(r.Context(), tx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
			log.NewFields().WithRecord(domain.String(), created.ID).WithOperation(log.OpCreate).ToSlice()...)
		writeJSON(w, http.StatusCreated, newTransactionResponse(created))
	}
}

func (s *Server) handleGetTransaction(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.svc.Transactions.Get(r.Context(), domain, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTransactionResponse(tx))
	}
}

func (s *Server) handleUpdateTransaction(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		tx, err := req.toTransaction(domain)
		if err != nil {
			writeError(w, r, err)
			return
		}
		tx.ID = chi.URLParam(r, "id")
		updated, err := s.svc.Transactions.Update(r.Context(), tx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTransactionResponse(updated))
	}
}

func (s *Server) handleDeleteTransaction(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.svc.Transactions.Delete(r.Context(), domain, id); err != nil {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
			log.NewFields().WithRecord(domain.String(), id).WithOperation(log.OpDelete).ToSlice()...)
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseSearch builds a query from ?start&end plus the optional details,
// prefix, direction and order parameters. The direction parameter is named
// after the domain's flag (isInCome or isCashback).
func parseSearch(r *http.Request, domain core.Domain) (repository.Query, error) {
	q := r.URL.Query()
	w, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		return repository.Query{}, err
	}
	query := repository.Query{
		Domain:        domain,
		Window:        w,
		Details:       strings.TrimSpace(q.Get("details")),
		DetailsPrefix: q.Get("prefix"),
	}
	if v := strings.TrimSpace(q.Get(domain.InflowField())); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return repository.Query{}, invalidInput(fmt.Errorf("%s: expected true or false", domain.InflowField()))
		}
		query.Inflow = repository.Bool(b)
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
		query.Order = repository.Ascending
	case "desc":
		query.Order = repository.Descending
	default:
		return repository.Query{}, invalidInput(fmt.Errorf("order: expected asc or desc"))
	}
	return query, nil
}

func parseWindow(start, end string) (fiscal.Window, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return fiscal.Window{}, invalidInput(fiscal.ErrMissingDate)
	}
	from, err := parseDate("start", start)
	if err != nil {
		return fiscal.Window{}, err
	}
	to, err := parseDate("end", end)
	if err != nil {
		return fiscal.Window{}, err
	}
	w, err := fiscal.NewWindow(from, to)
	if err != nil {
		return fiscal.Window{}, invalidInput(err)
	}
	return w, nil
}

func (s *Server) handleSearch(domain core.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseSearch(r, domain)
		if err != nil {
			writeError(w, r, err)
			return
		}
		txs, err := runReport(s, r, reportSearch, func(ctx context.Context) ([]core.Transaction, error) {
			return s.svc.Reports.Search(ctx, q)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTransactionResponses(txs))
	}
}
