package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pharmacy-pos-api-server/internal/models"

	"go.uber.org/zap"
)

// State is the single coherent workflow state. Exactly one is active at a
// time; independent boolean flags are deliberately avoided.
type State int

const (
	StateIdle State = iota
	StateAwaitingScan
	StateResolving
	StateDeciding
	StateAccepting
	StateDiscrepancy
	StateCompleting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingScan:
		return "AwaitingScan"
	case StateResolving:
		return "Resolving"
	case StateDeciding:
		return "Deciding"
	case StateAccepting:
		return "Accepting"
	case StateDiscrepancy:
		return "Discrepancy"
	case StateCompleting:
		return "Completing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Input-validation errors; they never reach the server.
var (
	ErrNoIdentifier  = errors.New("scanned code carries no batch identifier")
	ErrReasonMissing = errors.New("a discrepancy reason must be selected")
	ErrInvalidState  = errors.New("action is not valid in the current workflow state")
	ErrNotConfirmed  = errors.New("action requires operator confirmation")
)

// DocumentAPI is the server round-trip surface the workflow drives. All
// quantities are server-authoritative: the workflow never mutates them
// locally, it refetches after every applied operation.
type DocumentAPI interface {
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	ValidateScan(ctx context.Context, documentID, code string) (*models.DocumentItem, error)
	AcceptItem(ctx context.Context, documentID, itemID string, quantity int) error
	RecordDiscrepancy(ctx context.Context, documentID, itemID string, input DiscrepancyInput) error
	CancelDiscrepancy(ctx context.Context, documentID, discrepancyID string) error
	CompleteDocument(ctx context.Context, documentID string) error
}

// UI is the surface the workflow talks to the operator through: modals and
// transient messages. Implementations must tolerate CloseModals when no
// modal is open.
type UI interface {
	ShowError(msg string)
	ShowInfo(msg string)
	OpenAcceptance(item models.DocumentItem)
	OpenDiscrepancy(item models.DocumentItem)
	CloseModals()
}

// DiscrepancyInput is the operator's discrepancy form.
type DiscrepancyInput struct {
	Reason   string `json:"reason"`
	Quantity int    `json:"quantity"`
	Comment  string `json:"comment,omitempty"`
}

// Machine drives the human-in-the-loop verification of one receiving
// document. Transitions happen under a single mutex; async server-call
// completions re-enter through a generation check so a late response after
// the operator moved on is dropped instead of corrupting state.
type Machine struct {
	api DocumentAPI
	ui  UI
	log *zap.Logger

	// onScanningMode is invoked on every transition into or out of
	// scanning mode, feeding the remote channel's statusUpdate.
	onScanningMode func(scanning bool)
	// onCompleted fires after a successful document completion so the
	// caller can navigate away from the verification view.
	onCompleted func()

	location string

	mu    sync.Mutex
	state State
	doc   *models.Document
	item  *models.DocumentItem
	gen   uint64 // bumped whenever an in-flight server call becomes stale
}

// NewMachine creates a workflow machine for one document. doc may be nil
// until Load is called.
func NewMachine(api DocumentAPI, ui UI, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{api: api, ui: ui, log: log, state: StateIdle}
}

// SetScanningModeListener registers the scanning-mode callback. Call before
// the machine goes live.
func (m *Machine) SetScanningModeListener(fn func(scanning bool)) { m.onScanningMode = fn }

// SetCompletedListener registers the completion callback.
func (m *Machine) SetCompletedListener(fn func()) { m.onCompleted = fn }

// SetLocation records the current route/location string reported in status
// updates.
func (m *Machine) SetLocation(loc string) {
	m.mu.Lock()
	m.location = loc
	m.mu.Unlock()
}

// State returns the current workflow state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Document returns the last fetched document snapshot.
func (m *Machine) Document() *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc
}

// ActiveItem returns the line currently under decision, or nil.
func (m *Machine) ActiveItem() *models.DocumentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item
}

// Status reports the readiness beacon for the remote channel: "ready"
// whenever scanning mode is on.
func (m *Machine) Status() models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := models.SessionStatusNotReady
	if m.state != StateIdle {
		status = models.SessionStatusReady
	}
	return models.SessionStatus{Status: status, Location: m.location}
}

// Load fetches the document and resets the machine to Idle.
func (m *Machine) Load(ctx context.Context, documentID string) error {
	doc, err := m.api.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.doc = doc
	m.item = nil
	m.state = StateIdle
	m.gen++
	m.mu.Unlock()
	return nil
}

// StartScanning turns scanning mode on: Idle -> AwaitingScan.
func (m *Machine) StartScanning() error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.state = StateAwaitingScan
	m.mu.Unlock()

	m.notifyScanningMode(true)
	return nil
}

// StopScanning turns scanning mode off: AwaitingScan -> Idle.
func (m *Machine) StopScanning() error {
	m.mu.Lock()
	if m.state != StateAwaitingScan {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.state = StateIdle
	m.mu.Unlock()

	m.notifyScanningMode(false)
	return nil
}

// HandleScan feeds a completed scan into the workflow. Scans arriving
// outside AwaitingScan (a modal already open, a lookup in flight) are
// ignored: queuing would create a second unresolved scan, replacing would
// silently discard a decision in progress.
func (m *Machine) HandleScan(ctx context.Context, ev models.ScanEvent) {
	code, ok := scanIdentifier(ev)

	m.mu.Lock()
	if m.state != StateAwaitingScan {
		m.log.Debug("ignoring scan outside AwaitingScan",
			zap.String("state", m.state.String()), zap.String("source", ev.Source))
		m.mu.Unlock()
		return
	}
	if !ok {
		// Bad format: no server call is made.
		m.mu.Unlock()
		m.ui.ShowError("Scanned code has no batch identifier")
		return
	}
	if m.doc == nil {
		m.mu.Unlock()
		m.ui.ShowError("No document is loaded")
		return
	}
	m.state = StateResolving
	m.gen++
	gen := m.gen
	docID := m.doc.DocumentID
	m.mu.Unlock()

	go m.resolve(ctx, gen, docID, code)
}

// resolve performs the server lookup for a scanned identifier and re-enters
// the machine with the result.
func (m *Machine) resolve(ctx context.Context, gen uint64, docID, code string) {
	item, err := m.api.ValidateScan(ctx, docID, code)

	m.mu.Lock()
	if gen != m.gen || m.state != StateResolving {
		// The operator moved on; a late response must not re-open state.
		m.mu.Unlock()
		return
	}
	if err != nil {
		// Not found or transport failure: back to AwaitingScan, never
		// crash the workflow on lookup failure.
		m.state = StateAwaitingScan
		m.mu.Unlock()
		m.ui.ShowError(err.Error())
		return
	}
	m.item = item
	m.state = StateDeciding
	m.mu.Unlock()

	m.ui.OpenAcceptance(*item)
}

// Accept submits the acceptance decision. selectedPhotos is the number of
// package photos the operator marked; zero means "all remaining"
// (quantityExpected - quantityScanned).
func (m *Machine) Accept(ctx context.Context, selectedPhotos int) error {
	m.mu.Lock()
	if m.state != StateDeciding || m.item == nil {
		m.mu.Unlock()
		return ErrInvalidState
	}
	quantity := selectedPhotos
	if quantity <= 0 {
		quantity = m.item.QuantityRemaining()
	}
	m.state = StateAccepting
	m.gen++
	gen := m.gen
	docID := m.doc.DocumentID
	itemID := m.item.ItemID
	m.mu.Unlock()

	go m.submitAccept(ctx, gen, docID, itemID, quantity)
	return nil
}

func (m *Machine) submitAccept(ctx context.Context, gen uint64, docID, itemID string, quantity int) {
	err := m.api.AcceptItem(ctx, docID, itemID, quantity)

	m.mu.Lock()
	if gen != m.gen || m.state != StateAccepting {
		m.mu.Unlock()
		return
	}
	if err != nil {
		// Keep the modal open so the operator can retry or bail out.
		m.state = StateDeciding
		m.mu.Unlock()
		m.ui.ShowError(err.Error())
		return
	}
	m.item = nil
	m.state = StateAwaitingScan
	m.mu.Unlock()

	m.ui.CloseModals()
	m.refetch(ctx, docID)
}

// SubmitDiscrepancy records a discrepancy instead of accepting. Reason is
// validated client-side; quantity is clamped to [1, quantityExpected].
func (m *Machine) SubmitDiscrepancy(ctx context.Context, input DiscrepancyInput) error {
	m.mu.Lock()
	if m.state != StateDeciding || m.item == nil {
		m.mu.Unlock()
		return ErrInvalidState
	}
	if !models.ValidDiscrepancyReason(input.Reason) {
		m.mu.Unlock()
		if input.Reason == "" {
			m.ui.ShowError(ErrReasonMissing.Error())
			return ErrReasonMissing
		}
		err := fmt.Errorf("unknown discrepancy reason %q", input.Reason)
		m.ui.ShowError(err.Error())
		return err
	}
	if input.Quantity < 1 {
		input.Quantity = 1
	}
	if input.Quantity > m.item.QuantityExpected {
		input.Quantity = m.item.QuantityExpected
	}
	m.state = StateDiscrepancy
	m.gen++
	gen := m.gen
	docID := m.doc.DocumentID
	itemID := m.item.ItemID
	m.mu.Unlock()

	go m.submitDiscrepancy(ctx, gen, docID, itemID, input)
	return nil
}

func (m *Machine) submitDiscrepancy(ctx context.Context, gen uint64, docID, itemID string, input DiscrepancyInput) {
	err := m.api.RecordDiscrepancy(ctx, docID, itemID, input)

	m.mu.Lock()
	if gen != m.gen || m.state != StateDiscrepancy {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = StateDeciding
		m.mu.Unlock()
		m.ui.ShowError(err.Error())
		return
	}
	m.item = nil
	m.state = StateAwaitingScan
	m.mu.Unlock()

	// Close both the discrepancy and the acceptance modal.
	m.ui.CloseModals()
	m.refetch(ctx, docID)
}

// CancelDecision closes the open decision without a server call:
// Deciding -> AwaitingScan.
func (m *Machine) CancelDecision() error {
	m.mu.Lock()
	if m.state != StateDeciding {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.item = nil
	m.state = StateAwaitingScan
	m.gen++ // a submit completing after this point is stale
	m.mu.Unlock()

	m.ui.CloseModals()
	return nil
}

// CancelDiscrepancy cancels a previously recorded discrepancy, re-opening
// the line for further scanning. Independent of the scan flow; requires
// explicit operator confirmation.
func (m *Machine) CancelDiscrepancy(ctx context.Context, discrepancyID string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	m.mu.Lock()
	if m.doc == nil {
		m.mu.Unlock()
		return ErrInvalidState
	}
	docID := m.doc.DocumentID
	m.mu.Unlock()

	if err := m.api.CancelDiscrepancy(ctx, docID, discrepancyID); err != nil {
		m.ui.ShowError(err.Error())
		return err
	}
	m.refetch(ctx, docID)
	return nil
}

// Complete closes out the whole document. Requires confirmation; forces
// scanning mode off before the call so the phone stops relaying scans into
// a finished session.
func (m *Machine) Complete(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	m.mu.Lock()
	if m.doc == nil || m.state == StateCompleting {
		m.mu.Unlock()
		return ErrInvalidState
	}
	wasScanning := m.state != StateIdle
	m.state = StateCompleting
	m.item = nil
	m.gen++
	docID := m.doc.DocumentID
	m.mu.Unlock()

	m.ui.CloseModals()
	if wasScanning {
		m.notifyScanningMode(false)
	}

	if err := m.api.CompleteDocument(ctx, docID); err != nil {
		m.mu.Lock()
		m.state = StateIdle
		m.mu.Unlock()
		m.ui.ShowError(err.Error())
		return err
	}

	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()

	m.ui.ShowInfo("Receiving completed")
	if m.onCompleted != nil {
		m.onCompleted()
	}
	return nil
}

// refetch pulls the authoritative document after an applied operation.
// Failures are surfaced but leave the machine usable: the next operation
// refetches again.
func (m *Machine) refetch(ctx context.Context, docID string) {
	doc, err := m.api.GetDocument(ctx, docID)
	if err != nil {
		m.ui.ShowError(err.Error())
		return
	}
	m.mu.Lock()
	m.doc = doc
	m.mu.Unlock()
}

func (m *Machine) notifyScanningMode(on bool) {
	if m.onScanningMode != nil {
		m.onScanningMode(on)
	}
}

// scanIdentifier pulls the batch/product identifier out of a scan event.
// Keyboard scans carry the raw code; remote scans carry a structured
// payload inspected for batch_id, then code.
func scanIdentifier(ev models.ScanEvent) (string, bool) {
	if ev.Payload != nil {
		if id, ok := ev.Payload.Identifier(); ok {
			return id, true
		}
		return "", false
	}
	if ev.Code != "" {
		return ev.Code, true
	}
	return "", false
}
