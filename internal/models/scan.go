package models

import "github.com/shopspring/decimal"

// Scan sources.
const (
	ScanSourceKeyboard = "keyboard"
	ScanSourceRemote   = "remote"
)

// ScanEvent is a completed, trimmed code plus its origin. Ephemeral:
// produced once per detected scan, consumed immediately by the workflow.
type ScanEvent struct {
	Code    string       `json:"code"`
	Source  string       `json:"source"`
	Payload *ScanPayload `json:"payload,omitempty"` // present for remote scans
}

// ScanPayload is the loosely-typed bag an external QR/barcode encoding
// produces. The workflow only inspects the fields it needs.
type ScanPayload struct {
	Code           string            `json:"code,omitempty"`
	BatchID        string            `json:"batch_id,omitempty"`
	CounterpartyID string            `json:"counterpartyId,omitempty"`
	Count          int               `json:"count,omitempty"`
	TotalPrice     decimal.Decimal   `json:"totalPrice,omitempty"`
	Items          []ScanPayloadItem `json:"items,omitempty"`
}

type ScanPayloadItem struct {
	BatchID  string `json:"batch_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// Identifier extracts the batch (or raw code) identifier the workflow
// resolves against the document. ok is false when the payload carries none.
func (p *ScanPayload) Identifier() (string, bool) {
	if p == nil {
		return "", false
	}
	if p.BatchID != "" {
		return p.BatchID, true
	}
	if p.Code != "" {
		return p.Code, true
	}
	return "", false
}

// Remote session statuses.
const (
	SessionStatusReady    = "ready"
	SessionStatusNotReady = "not-ready"
)

// SessionStatus is the transient readiness beacon exchanged between desktop
// and phone. Last-write-wins, lifetime bound to the socket connection.
type SessionStatus struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}
