// Package handler exposes the NAV engine over HTTP. Every response body is a
// JSON object; failures carry a message.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

// Engine is the subset of *nav.Engine the routes call.
type Engine interface {
	RunFull(ctx context.Context) (*nav.RunReport, error)
	RunSnapshot(ctx context.Context) (*nav.RunReport, error)
	PublishedFigure(ctx context.Context) (nav.Figure, error)
	NavMin(ctx context.Context) (nav.NavResult, error)
	NavFull(ctx context.Context) (nav.FullNav, error)
	LastRuns() (full, snapshot *nav.RunReport)
}

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors to a response code. Upstream failures never
// arrive here; they are carried as null values in the result.
func statusFor(err error) int {
	if errors.Is(err, nav.ErrRunInProgress) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
