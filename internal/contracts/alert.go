package contracts

import "time"

// Severity is the coarse alert tier
type Severity string

const (
	SeverityNormal Severity = "normal"
	SeverityHigh   Severity = "high"
)

// Alert is a symbol whose move since the previous close crossed the normal threshold
// ⭐ SSOT: detector → cache → API handoff. Never mutated after creation.
type Alert struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	PreviousClose float64   `json:"previousClose"`
	Severity      Severity  `json:"severity"`
	UniverseID    string    `json:"universeId"`
	ScanTime      time.Time `json:"scanTime"`
}

// IsHigh reports whether the alert crossed the strong threshold
func (a Alert) IsHigh() bool {
	return a.Severity == SeverityHigh
}

// IsUp reports the direction of the move
func (a Alert) IsUp() bool {
	return a.Change >= 0
}

// CountHigh returns the number of high severity alerts
func CountHigh(alerts []Alert) int {
	n := 0
	for _, a := range alerts {
		if a.IsHigh() {
			n++
		}
	}
	return n
}
