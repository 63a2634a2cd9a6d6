package nav

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/web3-frozen/nav-oracle/internal/metrics"
)

const alertKey = "alert:full"

// alertFull notifies operators about a failed or degraded full run. With a
// cache configured the alert fires once per incident: the marker is cleared
// by the next healthy run or expires after AlertCooldown.
func (e *Engine) alertFull(ctx context.Context, report *RunReport) {
	if e.alertFn == nil {
		return
	}
	if report.status() == "ok" {
		if e.cache != nil {
			if err := e.cache.Clear(ctx, alertKey); err != nil {
				e.logger.Warn("clear alert marker failed", "error", err)
			}
		}
		return
	}
	if e.cache != nil {
		first, err := e.cache.MarkOnce(ctx, alertKey, e.settings.AlertCooldown)
		if err != nil {
			e.logger.Warn("alert dedup unavailable", "error", err)
		} else if !first {
			return
		}
	}

	if err := e.alertFn(ctx, alertMessage(report)); err != nil {
		metrics.AlertsSentTotal.WithLabelValues("error").Inc()
		e.logger.Error("send alert failed", "run_id", report.RunID, "error", err)
		return
	}
	metrics.AlertsSentTotal.WithLabelValues("ok").Inc()
}

func alertMessage(r *RunReport) string {
	var sb strings.Builder
	if r.status() == "failed" {
		sb.WriteString("🚨 NAV run FAILED\n\n")
	} else {
		sb.WriteString("⚠️ NAV run degraded\n\n")
	}
	fmt.Fprintf(&sb, "Run: %s\n", r.RunID)
	if r.Nav != nil {
		if r.Nav.TotalUSD != nil {
			fmt.Fprintf(&sb, "NAV: $%s\n", formatNum(*r.Nav.TotalUSD))
		} else {
			sb.WriteString("NAV: unavailable\n")
		}
	}
	if failed := r.FailedReadings(); len(failed) > 0 {
		sb.WriteString("\nFailed sources:\n")
		for _, f := range failed {
			fmt.Fprintf(&sb, "• %s (%s): %s\n", f.SourceID, f.Error.Kind, truncateMsg(f.Error.Message, 160))
		}
	}
	if n := r.FailedWrites(); n > 0 {
		fmt.Fprintf(&sb, "\nFailed writes: %d of %d\n", n, len(r.Writes))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateMsg cuts s to at most n bytes without splitting a rune.
func truncateMsg(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// formatNum renders USD amounts for alerts: millions as "1.50M", thousands
// with separators, small values to four places.
func formatNum(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case abs >= 1_000:
		return addCommas(fmt.Sprintf("%.2f", math.Round(v*100)/100))
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

func addCommas(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}
