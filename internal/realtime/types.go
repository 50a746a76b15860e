package realtime

import (
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/scanner"
)

// Message types sent to clients
const (
	TypeScan     = "scan"
	TypeSnapshot = "snapshot"
	TypeStatus   = "status"
)

// ScanMessage announces a completed scan
// ⭐ SSOT: wire format of the alert stream
type ScanMessage struct {
	Type       string            `json:"type"`
	ScanID     string            `json:"scanId"`
	UniverseID string            `json:"universeId"`
	Alerts     []contracts.Alert `json:"alerts"`
	HighCount  int               `json:"highCount"`
	LastScan   *time.Time        `json:"lastScan"`
}

// SnapshotMessage carries the cached view a client starts from
type SnapshotMessage struct {
	Type string       `json:"type"`
	View scanner.View `json:"view"`
}

// StatusMessage is a short informational notice
type StatusMessage struct {
	Type  string `json:"type"`
	Level string `json:"level"` // info, success, warning, error
	Text  string `json:"text"`
}

// ControlMessage is what clients send
type ControlMessage struct {
	Type     string `json:"type"`   // "control"
	Action   string `json:"action"` // subscribe, pause, resume
	Universe string `json:"universe,omitempty"`
}

// NewScanMessage converts a scan result for the wire
func NewScanMessage(result scanner.Result) ScanMessage {
	alerts := result.Alerts
	if alerts == nil {
		alerts = []contracts.Alert{}
	}
	return ScanMessage{
		Type:       TypeScan,
		ScanID:     result.ScanID,
		UniverseID: result.UniverseID,
		Alerts:     alerts,
		HighCount:  contracts.CountHigh(alerts),
		LastScan:   result.LastScan,
	}
}

func status(level, text string) StatusMessage {
	return StatusMessage{Type: TypeStatus, Level: level, Text: text}
}
