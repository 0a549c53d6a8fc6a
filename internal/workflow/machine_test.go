package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory DocumentAPI double. Responses are configured per
// test; every call is counted so tests can assert what reached the server.
type fakeAPI struct {
	mu sync.Mutex

	doc          *models.Document
	validateItem *models.DocumentItem
	validateErr  error
	acceptErr    error
	discErr      error
	cancelErr    error
	completeErr  error

	// validateGate, when non-nil, blocks ValidateScan until closed.
	validateGate chan struct{}

	getCalls      int
	validateCalls int
	acceptCalls   int
	discCalls     int
	cancelCalls   int
	completeCalls int

	lastAcceptQty int
	lastDisc      DiscrepancyInput
	lastCancelID  string
}

func (f *fakeAPI) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return f.doc, nil
}

func (f *fakeAPI) ValidateScan(ctx context.Context, documentID, code string) (*models.DocumentItem, error) {
	f.mu.Lock()
	gate := f.validateGate
	f.validateCalls++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateItem, f.validateErr
}

func (f *fakeAPI) AcceptItem(ctx context.Context, documentID, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptCalls++
	f.lastAcceptQty = quantity
	return f.acceptErr
}

func (f *fakeAPI) RecordDiscrepancy(ctx context.Context, documentID, itemID string, input DiscrepancyInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discCalls++
	f.lastDisc = input
	return f.discErr
}

func (f *fakeAPI) CancelDiscrepancy(ctx context.Context, documentID, discrepancyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.lastCancelID = discrepancyID
	return f.cancelErr
}

func (f *fakeAPI) CompleteDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	return f.completeErr
}

func (f *fakeAPI) counts() (get, validate, accept int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.validateCalls, f.acceptCalls
}

// fakeUI records every surface call and signals each one on a channel so
// tests can wait for the async workflow goroutines.
type fakeUI struct {
	mu     sync.Mutex
	errors []string
	infos  []string
	opened []models.DocumentItem
	closed int
	events chan string
}

func newFakeUI() *fakeUI { return &fakeUI{events: make(chan string, 32)} }

func (u *fakeUI) ShowError(msg string) {
	u.mu.Lock()
	u.errors = append(u.errors, msg)
	u.mu.Unlock()
	u.events <- "error"
}

func (u *fakeUI) ShowInfo(msg string) {
	u.mu.Lock()
	u.infos = append(u.infos, msg)
	u.mu.Unlock()
	u.events <- "info"
}

func (u *fakeUI) OpenAcceptance(item models.DocumentItem) {
	u.mu.Lock()
	u.opened = append(u.opened, item)
	u.mu.Unlock()
	u.events <- "acceptance"
}

func (u *fakeUI) OpenDiscrepancy(item models.DocumentItem) {
	u.events <- "discrepancy"
}

func (u *fakeUI) CloseModals() {
	u.mu.Lock()
	u.closed++
	u.mu.Unlock()
	u.events <- "close"
}

func (u *fakeUI) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case got := <-u.events:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for UI event %q", want)
		}
	}
}

func (u *fakeUI) lastError() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.errors) == 0 {
		return ""
	}
	return u.errors[len(u.errors)-1]
}

func (u *fakeUI) openedCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.opened)
}

func testDocument() *models.Document {
	return &models.Document{
		DocumentID: "DOC-TEST0001",
		Type:       models.DocumentTypeReceiving,
		Status:     models.DocumentStatusVerifying,
		Items: []models.DocumentItem{
			{
				ItemID:           "item-1",
				SKU:              "PARA-500",
				ProductName:      "Paracetamol 500mg",
				BatchID:          "BATCH-AA11",
				Barcode:          "8901234567890",
				QuantityExpected: 10,
				QuantityScanned:  6,
				Price:            "12.50",
			},
		},
	}
}

func testItem() *models.DocumentItem {
	item := testDocument().Items[0]
	return &item
}

// newDecidingMachine drives a machine through load, start-scanning and one
// resolved scan, leaving it in Deciding with the acceptance view open.
func newDecidingMachine(t *testing.T, api *fakeAPI, ui *fakeUI) *Machine {
	t.Helper()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())
	m.HandleScan(context.Background(), models.ScanEvent{Code: "8901234567890", Source: models.ScanSourceKeyboard})
	ui.waitFor(t, "acceptance")
	require.Equal(t, StateDeciding, m.State())
	return m
}

func TestMachineScanResolvesToDeciding(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	require.NotNil(t, m.ActiveItem())
	assert.Equal(t, "item-1", m.ActiveItem().ItemID)
	assert.Equal(t, 1, ui.openedCount())
}

func TestMachineIgnoresScanOutsideAwaitingScan(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	// A second scan while the decision modal is open must be dropped
	// without touching the server.
	m.HandleScan(context.Background(), models.ScanEvent{Code: "9999999999999", Source: models.ScanSourceKeyboard})

	_, validates, _ := api.counts()
	assert.Equal(t, 1, validates)
	assert.Equal(t, StateDeciding, m.State())
}

func TestMachineScanWithoutIdentifier(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())

	// Remote payload with neither batch_id nor code: rejected locally.
	m.HandleScan(context.Background(), models.ScanEvent{
		Source:  models.ScanSourceRemote,
		Payload: &models.ScanPayload{Count: 3},
	})

	ui.waitFor(t, "error")
	_, validates, _ := api.counts()
	assert.Equal(t, 0, validates)
	assert.Equal(t, StateAwaitingScan, m.State())
}

func TestMachineLookupFailureReturnsToAwaitingScan(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateErr: errors.New("Scanned code 123 does not match any expected line")}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())

	m.HandleScan(context.Background(), models.ScanEvent{Code: "1230000000000", Source: models.ScanSourceKeyboard})

	ui.waitFor(t, "error")
	assert.Equal(t, StateAwaitingScan, m.State())
	assert.Equal(t, 0, ui.openedCount())
	assert.Contains(t, ui.lastError(), "does not match")
}

func TestMachineAcceptUsesSelectedPhotoCount(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	require.NoError(t, m.Accept(context.Background(), 3))
	ui.waitFor(t, "close")

	api.mu.Lock()
	qty := api.lastAcceptQty
	api.mu.Unlock()
	assert.Equal(t, 3, qty)
	assert.Equal(t, StateAwaitingScan, m.State())
	assert.Nil(t, m.ActiveItem())

	// Quantities are server-authoritative: the document is refetched after
	// the mutation applies.
	require.Eventually(t, func() bool {
		gets, _, _ := api.counts()
		return gets >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestMachineAcceptDefaultsToRemainingQuantity(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	// expected 10, scanned 6: no photo selection means the remaining 4.
	require.NoError(t, m.Accept(context.Background(), 0))
	ui.waitFor(t, "close")

	api.mu.Lock()
	qty := api.lastAcceptQty
	api.mu.Unlock()
	assert.Equal(t, 4, qty)
}

func TestMachineAcceptFailureKeepsDecisionOpen(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem(), acceptErr: errors.New("Quantity exceeds the remaining amount")}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	require.NoError(t, m.Accept(context.Background(), 2))
	ui.waitFor(t, "error")

	assert.Equal(t, StateDeciding, m.State())
	require.NotNil(t, m.ActiveItem(), "failed accept must keep the line under decision")
	assert.Contains(t, ui.lastError(), "exceeds")
}

func TestMachineDiscrepancyReasonRequired(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	err := m.SubmitDiscrepancy(context.Background(), DiscrepancyInput{Quantity: 2})
	assert.ErrorIs(t, err, ErrReasonMissing)

	err = m.SubmitDiscrepancy(context.Background(), DiscrepancyInput{Reason: "vanished", Quantity: 2})
	assert.Error(t, err)

	api.mu.Lock()
	calls := api.discCalls
	api.mu.Unlock()
	assert.Equal(t, 0, calls, "invalid reasons never reach the server")
	assert.Equal(t, StateDeciding, m.State())
}

func TestMachineDiscrepancyQuantityClamped(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want int
	}{
		{"above expected", 99, 10},
		{"zero", 0, 1},
		{"negative", -5, 1},
		{"in range", 3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
			ui := newFakeUI()
			m := newDecidingMachine(t, api, ui)

			require.NoError(t, m.SubmitDiscrepancy(context.Background(), DiscrepancyInput{
				Reason:   models.ReasonDamaged,
				Quantity: tc.in,
			}))
			ui.waitFor(t, "close")

			api.mu.Lock()
			got := api.lastDisc.Quantity
			api.mu.Unlock()
			assert.Equal(t, tc.want, got)
			assert.Equal(t, StateAwaitingScan, m.State())
		})
	}
}

func TestMachineLateLookupResponseDropped(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{doc: testDocument(), validateItem: testItem(), validateGate: gate}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())

	m.HandleScan(context.Background(), models.ScanEvent{Code: "8901234567890", Source: models.ScanSourceKeyboard})
	require.Eventually(t, func() bool { return m.State() == StateResolving }, time.Second, time.Millisecond)

	// The operator completes the document while the lookup is in flight;
	// the late response must not re-open the decision view.
	require.NoError(t, m.Complete(context.Background(), true))
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, ui.openedCount())
}

func TestMachineCancelDecision(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), validateItem: testItem()}
	ui := newFakeUI()
	m := newDecidingMachine(t, api, ui)

	require.NoError(t, m.CancelDecision())
	assert.Equal(t, StateAwaitingScan, m.State())
	assert.Nil(t, m.ActiveItem())

	assert.ErrorIs(t, m.CancelDecision(), ErrInvalidState)
}

func TestMachineCancelDiscrepancy(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))

	assert.ErrorIs(t, m.CancelDiscrepancy(context.Background(), "disc-1", false), ErrNotConfirmed)

	require.NoError(t, m.CancelDiscrepancy(context.Background(), "disc-1", true))
	api.mu.Lock()
	id, cancels, gets := api.lastCancelID, api.cancelCalls, api.getCalls
	api.mu.Unlock()
	assert.Equal(t, "disc-1", id)
	assert.Equal(t, 1, cancels)
	assert.Equal(t, 2, gets, "cancellation refetches the authoritative document")
}

func TestMachineCompleteRequiresConfirmation(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))

	assert.ErrorIs(t, m.Complete(context.Background(), false), ErrNotConfirmed)
	api.mu.Lock()
	calls := api.completeCalls
	api.mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestMachineCompleteForcesScanningModeOff(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)

	var modes []bool
	var modeMu sync.Mutex
	m.SetScanningModeListener(func(on bool) {
		modeMu.Lock()
		modes = append(modes, on)
		modeMu.Unlock()
	})
	completed := false
	m.SetCompletedListener(func() { completed = true })

	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())

	require.NoError(t, m.Complete(context.Background(), true))

	modeMu.Lock()
	defer modeMu.Unlock()
	assert.Equal(t, []bool{true, false}, modes, "scanning mode must drop before completion")
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, completed)
}

func TestMachineCompleteFailure(t *testing.T) {
	api := &fakeAPI{doc: testDocument(), completeErr: errors.New("Document has unresolved lines")}
	ui := newFakeUI()
	m := NewMachine(api, ui, nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))
	require.NoError(t, m.StartScanning())

	err := m.Complete(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
	assert.Contains(t, ui.lastError(), "unresolved")
}

func TestMachineStatusFollowsScanningMode(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	m := NewMachine(api, newFakeUI(), nil)
	m.SetLocation("/documents/DOC-TEST0001/verify")
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))

	st := m.Status()
	assert.Equal(t, models.SessionStatusNotReady, st.Status)
	assert.Equal(t, "/documents/DOC-TEST0001/verify", st.Location)

	require.NoError(t, m.StartScanning())
	assert.Equal(t, models.SessionStatusReady, m.Status().Status)

	require.NoError(t, m.StopScanning())
	assert.Equal(t, models.SessionStatusNotReady, m.Status().Status)
}

func TestMachineScanningModeTransitionsGuarded(t *testing.T) {
	api := &fakeAPI{doc: testDocument()}
	m := NewMachine(api, newFakeUI(), nil)
	require.NoError(t, m.Load(context.Background(), "DOC-TEST0001"))

	assert.ErrorIs(t, m.StopScanning(), ErrInvalidState)
	require.NoError(t, m.StartScanning())
	assert.ErrorIs(t, m.StartScanning(), ErrInvalidState)
}
