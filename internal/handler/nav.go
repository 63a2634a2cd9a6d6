package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

const tokenTimeLayout = "2006-01-02 15:04"

type tokenResponse struct {
	Status      int     `json:"status"`
	Price       *string `json:"price"`
	LastUpdated string  `json:"lastUpdated"`
	Error       string  `json:"error,omitempty"`
}

// Token serves the published figure with two decimals. lastUpdated is
// always UTC.
func Token(e Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fig, err := e.PublishedFigure(r.Context())
		if err != nil {
			logger.Error("published figure failed", "error", err)
			code := statusFor(err)
			writeJSON(w, code, tokenResponse{
				Status:      code,
				LastUpdated: time.Now().UTC().Format(tokenTimeLayout),
				Error:       err.Error(),
			})
			return
		}

		resp := tokenResponse{LastUpdated: fig.UpdatedAt.UTC().Format(tokenTimeLayout)}
		if fig.Value == nil {
			resp.Status = http.StatusBadGateway
			resp.Error = fig.Error
			writeJSON(w, resp.Status, resp)
			return
		}
		price := fmt.Sprintf("%.2f", *fig.Value)
		resp.Status = http.StatusOK
		resp.Price = &price
		writeJSON(w, http.StatusOK, resp)
	}
}

type navMinResponse struct {
	NavTotalUSD *float64 `json:"nav_total_usd"`
	Message     string   `json:"message,omitempty"`
}

// NavMin serves the mandatory-source-only NAV.
func NavMin(e Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := e.NavMin(r.Context())
		if err != nil {
			logger.Error("nav read failed", "error", err)
			writeJSON(w, statusFor(err), navMinResponse{Message: err.Error()})
			return
		}
		if res.TotalUSD == nil {
			writeJSON(w, http.StatusBadGateway, navMinResponse{Message: failureMessage(res)})
			return
		}
		writeJSON(w, http.StatusOK, navMinResponse{NavTotalUSD: res.TotalUSD})
	}
}

type navFullResponse struct {
	Address             string              `json:"address"`
	TotalUSDValue       *float64            `json:"total_usd_value"`
	ValidatorBalanceETH *float64            `json:"validator_balance_eth"`
	ETHUSDT             *float64            `json:"eth_usdt"`
	ValidatorUSDT       *float64            `json:"validator_usdt"`
	DeFiUSD             *float64            `json:"defi_usd"`
	NavTotalUSD         *float64            `json:"nav_total_usd"`
	Degraded            bool                `json:"degraded"`
	ComputedAt          time.Time           `json:"computed_at"`
	Sources             []nav.SourceReading `json:"sources"`
	Message             string              `json:"message,omitempty"`
}

// NavFull serves the multi-source NAV with each leg broken out.
func NavFull(e Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		full, err := e.NavFull(r.Context())
		if err != nil {
			logger.Error("full nav read failed", "error", err)
			writeJSON(w, statusFor(err), navFullResponse{Message: err.Error()})
			return
		}

		res := full.Result
		resp := navFullResponse{
			Address:             full.Address,
			TotalUSDValue:       full.PortfolioUSD,
			ValidatorBalanceETH: full.ValidatorETH,
			ETHUSDT:             full.ETHPrice,
			ValidatorUSDT:       full.ValidatorUSD,
			DeFiUSD:             full.DeFiUSD,
			NavTotalUSD:         res.TotalUSD,
			Degraded:            res.Degraded,
			ComputedAt:          res.ComputedAt,
			Sources:             res.Contributing,
		}
		if res.TotalUSD == nil {
			resp.Message = failureMessage(res)
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// failureMessage names the first failed contributing source.
func failureMessage(res nav.NavResult) string {
	for _, r := range res.Contributing {
		if r.Error != nil {
			return fmt.Sprintf("%s: %s", r.SourceID, r.Error.Message)
		}
	}
	return "mandatory source failed"
}
