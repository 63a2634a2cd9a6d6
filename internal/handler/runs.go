package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

type runResponse struct {
	*nav.RunReport
	NavTotalUSD *float64 `json:"nav_total_usd"`
	Message     string   `json:"message,omitempty"`
}

// RunFull triggers a full aggregation. The run is detached from the request
// so a dropped client does not interrupt fetches or writes.
func RunFull(e Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := e.RunFull(context.WithoutCancel(r.Context()))
		resp := runResponse{RunReport: report}
		if report != nil && report.Nav != nil {
			resp.NavTotalUSD = report.Nav.TotalUSD
		}

		switch {
		case err != nil:
			logger.Error("full run failed", "error", err)
			resp.Message = err.Error()
			writeJSON(w, statusFor(err), resp)
		case report.Nav != nil && report.Nav.TotalUSD == nil:
			resp.Message = "mandatory source failed, NAV not written"
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			resp.Message = "full run completed"
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// RunSnapshot triggers the ledger snapshot.
func RunSnapshot(e Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := e.RunSnapshot(context.WithoutCancel(r.Context()))
		resp := runResponse{RunReport: report}

		switch {
		case err != nil:
			logger.Error("snapshot run failed", "error", err)
			resp.Message = err.Error()
			writeJSON(w, statusFor(err), resp)
		case report.Appended() == 0:
			resp.Message = "no snapshot range could be read"
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			resp.Message = "snapshot appended"
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// Stats returns the last full and snapshot reports.
func Stats(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		full, snapshot := e.LastRuns()
		if full == nil && snapshot == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Message: "no run has completed yet"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]*nav.RunReport{
			"full":     full,
			"snapshot": snapshot,
		})
	}
}
