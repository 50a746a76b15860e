package detector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
)

// Thresholds are absolute percent moves since the previous close
type Thresholds struct {
	Normal float64 `json:"normal"`
	Strong float64 `json:"strong"`
}

// DefaultThresholds returns the 3% / 5% alert tiers
func DefaultThresholds() Thresholds {
	return Thresholds{Normal: 3, Strong: 5}
}

// Validate rejects negative tiers and a strong tier below the normal one
func (t Thresholds) Validate() error {
	if t.Normal < 0 || t.Strong < 0 {
		return fmt.Errorf("thresholds must not be negative (normal=%.2f, strong=%.2f)", t.Normal, t.Strong)
	}
	if t.Strong < t.Normal {
		return fmt.Errorf("strong threshold %.2f is below normal threshold %.2f", t.Strong, t.Normal)
	}
	return nil
}

// Classify returns the severity for a percent move and whether it alerts at all
func (t Thresholds) Classify(changePercent float64) (contracts.Severity, bool) {
	magnitude := math.Abs(changePercent)
	switch {
	case magnitude >= t.Strong && magnitude >= t.Normal:
		return contracts.SeverityHigh, true
	case magnitude >= t.Normal:
		return contracts.SeverityNormal, true
	default:
		return "", false
	}
}

// Detect turns fetched quotes into alerts sorted by descending |changePercent|.
// Quotes with equal magnitude keep their input order. Pure: no I/O, no clock.
func Detect(quotes []contracts.Quote, th Thresholds, universeID string, scanTime time.Time) []contracts.Alert {
	alerts := make([]contracts.Alert, 0)

	for _, q := range quotes {
		pct := q.ChangePercent()
		severity, ok := th.Classify(pct)
		if !ok {
			continue
		}

		alerts = append(alerts, contracts.Alert{
			Symbol:        q.Symbol,
			Price:         q.Price,
			Change:        q.Change(),
			ChangePercent: pct,
			Volume:        q.Volume,
			PreviousClose: q.PreviousClose,
			Severity:      severity,
			UniverseID:    universeID,
			ScanTime:      scanTime,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return math.Abs(alerts[i].ChangePercent) > math.Abs(alerts[j].ChangePercent)
	})

	return alerts
}
