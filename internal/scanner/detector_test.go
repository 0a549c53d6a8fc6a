package scanner

import (
	"sync"
	"testing"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testThreshold = 30 * time.Millisecond

// recorder collects detector callbacks so tests can wait on them without
// racing the flush timer.
type recorder struct {
	mu    sync.Mutex
	scans []models.ScanEvent
	errs  []error
	ch    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) onScan(ev models.ScanEvent) {
	r.mu.Lock()
	r.scans = append(r.scans, ev)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for detector callback")
	}
}

func (r *recorder) snapshot() ([]models.ScanEvent, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ScanEvent(nil), r.scans...), append([]error(nil), r.errs...)
}

func newTestDetector(t *testing.T) (*Detector, *recorder) {
	t.Helper()
	rec := newRecorder()
	d := NewDetector(Config{TimeThreshold: testThreshold, MinLength: 8}, rec.onScan, rec.onError, nil)
	t.Cleanup(d.Stop)
	return d, rec
}

// feed replays code as a fast burst whose inter-key gap is well below the
// threshold, the way a keyboard-wedge scanner emits characters.
func feed(d *Detector, code string, start time.Time) time.Time {
	ts := start
	for _, r := range code {
		d.HandleKey(KeyEvent{Key: string(r), Time: ts})
		ts = ts.Add(2 * time.Millisecond)
	}
	return ts
}

func TestDetectorEnterFlushesBurst(t *testing.T) {
	d, rec := newTestDetector(t)

	ts := feed(d, "8901234567", time.Now())
	consumed := d.HandleKey(KeyEvent{Key: "Enter", Time: ts})
	require.True(t, consumed, "Enter terminating a burst must be consumed")

	rec.wait(t)
	scans, errs := rec.snapshot()
	require.Len(t, scans, 1)
	assert.Empty(t, errs)
	assert.Equal(t, "8901234567", scans[0].Code)
	assert.Equal(t, models.ScanSourceKeyboard, scans[0].Source)
}

func TestDetectorEnterOnEmptyBufferNotConsumed(t *testing.T) {
	d, rec := newTestDetector(t)

	consumed := d.HandleKey(KeyEvent{Key: "Enter", Time: time.Now()})
	assert.False(t, consumed, "Enter with nothing buffered must pass through")

	scans, errs := rec.snapshot()
	assert.Empty(t, scans)
	assert.Empty(t, errs)
}

func TestDetectorTimerFlushWithoutEnter(t *testing.T) {
	d, rec := newTestDetector(t)

	feed(d, "BATCH-00042", time.Now())

	rec.wait(t)
	scans, errs := rec.snapshot()
	require.Len(t, scans, 1)
	assert.Empty(t, errs)
	assert.Equal(t, "BATCH-00042", scans[0].Code)
}

func TestDetectorGapDiscardsPendingCharacters(t *testing.T) {
	d, rec := newTestDetector(t)

	start := time.Now()
	feed(d, "abc", start)

	// A gap beyond the threshold splits the stream: "abc" never becomes
	// part of the code that follows.
	feed(d, "7701234567", start.Add(500*time.Millisecond))
	d.HandleKey(KeyEvent{Key: "Enter", Time: start.Add(600 * time.Millisecond)})

	rec.wait(t)
	scans, errs := rec.snapshot()
	require.Len(t, scans, 1)
	assert.Empty(t, errs)
	assert.Equal(t, "7701234567", scans[0].Code)
}

func TestDetectorShortBurstReportsOneError(t *testing.T) {
	d, rec := newTestDetector(t)

	ts := feed(d, "ab1", time.Now())
	d.HandleKey(KeyEvent{Key: "Enter", Time: ts})

	rec.wait(t)
	scans, errs := rec.snapshot()
	assert.Empty(t, scans)
	require.Len(t, errs, 1, "a discarded burst reports exactly one error")
	assert.ErrorIs(t, errs[0], ErrCodeTooShort)
}

func TestDetectorIgnoresEditableTargets(t *testing.T) {
	d, rec := newTestDetector(t)

	ts := time.Now()
	for _, r := range "8901234567" {
		consumed := d.HandleKey(KeyEvent{Key: string(r), Time: ts, EditableTarget: true})
		assert.False(t, consumed)
		ts = ts.Add(2 * time.Millisecond)
	}
	consumed := d.HandleKey(KeyEvent{Key: "Enter", Time: ts, EditableTarget: true})
	assert.False(t, consumed)

	// Nothing was buffered, so no flush can ever fire.
	time.Sleep(3 * testThreshold)
	scans, errs := rec.snapshot()
	assert.Empty(t, scans)
	assert.Empty(t, errs)
}

func TestDetectorIgnoresNamedKeys(t *testing.T) {
	d, _ := newTestDetector(t)

	ts := time.Now()
	for _, key := range []string{"Shift", "Tab", "ArrowLeft", "Control", ""} {
		assert.False(t, d.HandleKey(KeyEvent{Key: key, Time: ts}), "key %q", key)
	}
}

func TestDetectorRestartsAfterFlush(t *testing.T) {
	d, rec := newTestDetector(t)

	ts := feed(d, "1111111111", time.Now())
	d.HandleKey(KeyEvent{Key: "Enter", Time: ts})
	rec.wait(t)

	ts = feed(d, "2222222222", ts.Add(200*time.Millisecond))
	d.HandleKey(KeyEvent{Key: "Enter", Time: ts})
	rec.wait(t)

	scans, errs := rec.snapshot()
	require.Len(t, scans, 2)
	assert.Empty(t, errs)
	assert.Equal(t, "1111111111", scans[0].Code)
	assert.Equal(t, "2222222222", scans[1].Code)
}

func TestDetectorStopCancelsPendingFlush(t *testing.T) {
	d, rec := newTestDetector(t)

	feed(d, "3333333333", time.Now())
	d.Stop()

	time.Sleep(3 * testThreshold)
	scans, errs := rec.snapshot()
	assert.Empty(t, scans, "Stop must drop the buffer before the timer fires")
	assert.Empty(t, errs)
}
