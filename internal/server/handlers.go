package server

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/stocktinker/internal/modules/securities"
)

type summaryResponse struct {
	Symbol      string                        `json:"symbol"`
	CompanyName string                        `json:"company_name"`
	Header      []string                      `json:"header"`
	Row         []interface{}                 `json:"row"`
	Info        []securities.SummaryInfoEntry `json:"info"`
	Errors      []string                      `json:"errors,omitempty"`
}

type valuationResponse struct {
	Symbol          string   `json:"symbol"`
	Currency        string   `json:"currency"`
	CurrentPrice    *float64 `json:"current_price"`
	CurrentPE       *float64 `json:"current_pe"`
	EstimatedGrowth *float64 `json:"estimated_growth"`
	TargetPE        *float64 `json:"target_pe"`
	EstimatedEPS    *float64 `json:"estimated_eps"`
	PriceProjection *float64 `json:"price_projection"`
	TargetPrice     *float64 `json:"target_price"`
	Errors          []string `json:"errors,omitempty"`
}

type reportResponse struct {
	Symbol string   `json:"symbol"`
	Path   string   `json:"path"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sec := s.security(r)

	ctx := r.Context()
	resp := summaryResponse{
		Symbol:      sec.Symbol,
		CompanyName: sec.CompanyName(ctx),
		Header:      securities.SummaryHeaderRow(),
		Row:         sanitizeRow(sec.SummaryRow(ctx)),
		Info:        sec.SummaryInfo(ctx),
		Errors:      errorStrings(sec.Errors()),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	sec := s.security(r)

	ctx := r.Context()
	resp := valuationResponse{
		Symbol:          sec.Symbol,
		Currency:        sec.Currency(ctx),
		CurrentPrice:    number(sec.CurrentPrice(ctx)),
		CurrentPE:       number(sec.CurrentPE(ctx)),
		EstimatedGrowth: number(sec.EstimatedGrowth(ctx)),
		TargetPE:        number(sec.TargetPE(ctx)),
		EstimatedEPS:    number(sec.EstimatedEPS(ctx)),
		PriceProjection: number(sec.PriceProjection(ctx)),
		TargetPrice:     number(sec.TargetPrice(ctx)),
		Errors:          errorStrings(sec.Errors()),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sec := s.security(r)

	path, err := sec.WriteReport(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, reportResponse{
		Symbol: sec.Symbol,
		Path:   path,
		Errors: errorStrings(sec.Errors()),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	sec := s.security(r)

	if err := sec.ClearCache(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"symbol": sec.Symbol, "status": "cleared"})
}

// security builds the per-request facade. Each request gets a fresh
// instance; memoization only spans a single request.
func (s *Server) security(r *http.Request) *securities.Security {
	symbol := chi.URLParam(r, "symbol")
	forceRefresh := r.URL.Query().Get("refresh") == "true"
	return s.securities.Security(symbol, forceRefresh)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Msg("Request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// number converts an undefined value to null rather than breaking JSON
// encoding.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func sanitizeRow(row []interface{}) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		if f, ok := v.(float64); ok {
			if n := number(f); n == nil {
				out[i] = nil
			} else {
				out[i] = *n
			}
			continue
		}
		out[i] = v
	}
	return out
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
