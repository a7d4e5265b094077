package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"familyledger/internal/core"
	"familyledger/internal/months"
	"familyledger/internal/report"
	"familyledger/internal/session"
)

// runReport runs fn under the caller's session slot for kind. A newer
// report of the same kind from the same session cancels this one. Requests
// without a session run directly.
func runReport[T any](s *Server, r *http.Request, kind string, fn func(context.Context) (T, error)) (T, error) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		return fn(r.Context())
	}
	return session.Do(s.supersede, r.Context(), reportKey(id, kind), fn)
}

func reportKey(sessionID, kind string) string {
	return sessionID + ":" + kind
}

func parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalidInput(fmt.Errorf("%w: %q", core.ErrInvalidYear, raw))
	}
	return year, nil
}

// monthParams reads ?month=<label>&year=<display year>.
func monthParams(r *http.Request) (string, int, error) {
	q := r.URL.Query()
	label := strings.TrimSpace(q.Get("month"))
	if label == "" {
		return "", 0, invalidInput(core.ErrEmptyMonth)
	}
	year, err := parseYear(q.Get("year"))
	if err != nil {
		return "", 0, err
	}
	return label, year, nil
}

func (s *Server) handleAccountYear(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := runReport(s, r, reportAccountYear, func(ctx context.Context) (report.YearSummary, error) {
		return s.svc.Reports.YearSummary(ctx, year)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAccountMonth(w http.ResponseWriter, r *http.Request) {
	label, year, err := monthParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := runReport(s, r, reportAccountMonth, func(ctx context.Context) (monthResponse, error) {
		totals, window, err := s.svc.Reports.AccountMonth(ctx, label, year)
		if err != nil {
			return monthResponse{}, err
		}
		return monthResponse{Month: label, Year: year, Window: window, Totals: totals}, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccountRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := parseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := runReport(s, r, reportAccountRange, func(ctx context.Context) (report.RangeSummary, error) {
		return s.svc.Reports.AccountRange(ctx, window.Start, window.End)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRangeResponse(summary))
}

func (s *Server) handleCreditMonth(w http.ResponseWriter, r *http.Request) {
	label, year, err := monthParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := runReport(s, r, reportCreditMonth, func(ctx context.Context) (report.CreditMonth, error) {
		return s.svc.Reports.CreditMonth(ctx, label, year)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreditMonthResponse(label, year, month))
}

func (s *Server) handleCreditYear(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := runReport(s, r, reportCreditYear, func(ctx context.Context) (report.CreditYearSummary, error) {
		return s.svc.Reports.CreditYear(ctx, year)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMonthSelectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, months.MonthSelections())
}

func (s *Server) handleYearSelectors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, months.YearSelections(s.now()))
}
