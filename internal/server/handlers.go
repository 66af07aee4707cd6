package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// StatusResponse is the agent summary served by /api/status
type StatusResponse struct {
	DryRun           bool                       `json:"dry_run"`
	Network          string                     `json:"network"`
	Schedule         string                     `json:"schedule,omitempty"`
	DailySpendSOL    float64                    `json:"daily_spend_sol"`
	DailySpendDate   string                     `json:"daily_spend_date"`
	DailySwapUSD     float64                    `json:"daily_swap_usd"`
	DailySwapDate    string                     `json:"daily_swap_date"`
	Positions        map[string]memory.Position `json:"positions"`
	PortfolioUSD     float64                    `json:"portfolio_usd"`
	Benchmark        memory.Benchmark           `json:"benchmark"`
	Prices           map[string]float64         `json:"prices"`
	Trades           int                        `json:"trades"`
	Swaps            int                        `json:"swaps"`
	LatestReflection string                     `json:"latest_reflection,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "trading-agent",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cfg.Store.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	prices := portfolio.TokenPrices(memory.ParsePriceCache(doc.LastObservationsPrices))
	var value float64
	for token, pos := range doc.Positions {
		value += pos.Amount * prices[token]
	}

	resp := StatusResponse{
		DryRun:         s.cfg.DryRun,
		Network:        s.cfg.Network,
		Schedule:       s.cfg.Schedule,
		DailySpendSOL:  doc.DailySpendSOL,
		DailySpendDate: doc.DailySpendDate,
		DailySwapUSD:   doc.DailySwapUSD,
		DailySwapDate:  doc.DailySwapDate,
		Positions:      doc.Positions,
		PortfolioUSD:   value,
		Benchmark:      doc.Benchmark,
		Prices:         prices,
		Trades:         len(doc.Trades),
		Swaps:          len(doc.SwapHistory),
	}
	if n := len(doc.Reflections); n > 0 {
		resp.LatestReflection = doc.Reflections[n-1].Text
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cfg.Store.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc.Positions)
}

// handleReflections returns the most recent reflections, newest first
func (s *Server) handleReflections(w http.ResponseWriter, r *http.Request) {
	doc, err := s.cfg.Store.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	limit := parseLimit(r)
	out := make([]memory.Reflection, 0, limit)
	for i := len(doc.Reflections) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, doc.Reflections[i])
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Audit == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit trail disabled"})
		return
	}
	cycles, err := s.cfg.Audit.RecentCycles(r.Context(), parseLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cycles)
}

func (s *Server) handleCycleActions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Audit == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit trail disabled"})
		return
	}
	runID := chi.URLParam(r, "runID")
	actions, err := s.cfg.Audit.ActionsForRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(actions) == 0 {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no actions for run " + runID})
		return
	}
	s.writeJSON(w, http.StatusOK, actions)
}

// handleTriggerCycle starts a cycle now, unless one is already running
func (s *Server) handleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Trigger == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "manual trigger disabled"})
		return
	}
	if !s.cfg.Trigger.TriggerAsync() {
		s.writeJSON(w, http.StatusConflict, map[string]string{"status": "busy", "message": "a cycle is already running"})
		return
	}
	s.log.Info().Msg("Cycle triggered via API")
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Int("status", status).Msg("Request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
