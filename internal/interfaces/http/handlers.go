package http

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC()})
}

// handleSignals returns the live signal set, score descending.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Pipeline().Ledger().Active())
}

// handleSignalHistory returns retained expired signals, oldest first.
func (s *Server) handleSignalHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Pipeline().Ledger().History())
}

// handlePortfolio returns a full snapshot of the paper-trading books plus
// the derived performance metrics.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	state := s.engine.Accountant().Snapshot()
	writeJSON(w, http.StatusOK, struct {
		State    interface{} `json:"state"`
		TotalPnL float64     `json:"total_pnl"`
		WinRate  float64     `json:"win_rate"`
	}{
		State:    state,
		TotalPnL: state.TotalPnL(),
		WinRate:  state.WinRate(),
	})
}

// handleScan runs one evaluation cycle on demand and returns its summary.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.RunCycle(r.Context(), time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("on-demand cycle failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
