package scanner

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"pharmacy-pos-api-server/internal/models"

	"go.uber.org/zap"
)

const (
	// DefaultTimeThreshold is the largest inter-key gap still considered
	// part of one scanner burst. Hardware scanners emit characters every
	// few milliseconds; humans rarely type faster than ~100ms per key.
	DefaultTimeThreshold = 50 * time.Millisecond

	// DefaultMinLength rejects accidental short bursts (single keystrokes,
	// stray characters) that are not real barcodes.
	DefaultMinLength = 8
)

// ErrCodeTooShort is reported once per discarded burst whose trimmed
// length is below the configured minimum.
var ErrCodeTooShort = errors.New("scanned code is shorter than the minimum length")

// Config tunes the burst classification.
type Config struct {
	TimeThreshold time.Duration // inter-key gap that starts a new burst
	MinLength     int           // minimum trimmed code length
}

func (c Config) withDefaults() Config {
	if c.TimeThreshold <= 0 {
		c.TimeThreshold = DefaultTimeThreshold
	}
	if c.MinLength <= 0 {
		c.MinLength = DefaultMinLength
	}
	return c
}

// KeyEvent is one raw key-press notification.
type KeyEvent struct {
	Key            string    // key value: "a", "7", "Enter", "Shift", ...
	Time           time.Time // wall-clock timestamp; zero means now
	EditableTarget bool      // focus is inside an input/textarea/content-editable
}

// Detector turns a stream of key-press events into discrete ScanEvents,
// filtering out normal human typing. Safe for concurrent use: buffer and
// timer state form a critical section guarded by a mutex, so callers on
// multi-threaded UI toolkits do not need to serialize externally.
type Detector struct {
	cfg     Config
	onScan  func(models.ScanEvent)
	onError func(error)
	log     *zap.Logger

	mu    sync.Mutex
	buf   strings.Builder
	last  time.Time
	timer *time.Timer
	gen   uint64 // bumped on every reset/flush to invalidate stale timers
}

// NewDetector creates a detector. onScan receives validated codes; onError
// fires once per discarded burst. Both may be nil.
func NewDetector(cfg Config, onScan func(models.ScanEvent), onError func(error), log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		cfg:     cfg.withDefaults(),
		onScan:  onScan,
		onError: onError,
		log:     log,
	}
}

// HandleKey processes one key event. The return value reports whether the
// detector consumed the key; a consumed Enter must have its default effect
// suppressed by the caller (so it does not submit a surrounding form).
func (d *Detector) HandleKey(ev KeyEvent) bool {
	if ev.EditableTarget {
		// The operator is typing into a text field; never capture.
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	if ev.Key == "Enter" {
		return d.handleTerminator()
	}

	if !printableKey(ev.Key) {
		return false
	}

	d.mu.Lock()
	if d.buf.Len() > 0 && ev.Time.Sub(d.last) > d.cfg.TimeThreshold {
		// Idle gap mid-burst: the pending characters belong to an
		// unrelated burst. Discard them, do not emit.
		d.resetLocked()
	}
	d.buf.WriteString(ev.Key)
	d.last = ev.Time
	d.armTimerLocked()
	d.mu.Unlock()
	return true
}

// handleTerminator flushes immediately on Enter. Enter on an empty buffer
// is a no-op and is not consumed.
func (d *Detector) handleTerminator() bool {
	d.mu.Lock()
	if d.buf.Len() == 0 {
		d.mu.Unlock()
		return false
	}
	code, err := d.flushLocked()
	d.mu.Unlock()

	d.report(code, err)
	return true
}

// armTimerLocked (re)starts the single-shot flush countdown. A stale timer
// that fires after a reset sees a different generation and does nothing.
func (d *Detector) armTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(2*d.cfg.TimeThreshold, func() {
		d.timerFired(gen)
	})
}

func (d *Detector) timerFired(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.buf.Len() == 0 {
		d.mu.Unlock()
		return
	}
	code, err := d.flushLocked()
	d.mu.Unlock()

	d.report(code, err)
}

// flushLocked trims and validates the buffer, then resets the detector so
// it immediately accepts new bursts.
func (d *Detector) flushLocked() (string, error) {
	code := strings.TrimSpace(d.buf.String())
	d.resetLocked()
	if utf8.RuneCountInString(code) < d.cfg.MinLength {
		return "", ErrCodeTooShort
	}
	return code, nil
}

func (d *Detector) resetLocked() {
	d.buf.Reset()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// report runs callbacks outside the lock so a handler may call back into
// the detector without deadlocking.
func (d *Detector) report(code string, err error) {
	if err != nil {
		d.log.Debug("discarding scan burst", zap.Error(err))
		if d.onError != nil {
			d.onError(err)
		}
		return
	}
	d.log.Debug("scan detected", zap.String("code", code))
	if d.onScan != nil {
		d.onScan(models.ScanEvent{Code: code, Source: models.ScanSourceKeyboard})
	}
}

// Stop cancels any pending flush timer and drops the buffer. Call on
// component teardown so the timer cannot fire against a stale buffer.
func (d *Detector) Stop() {
	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
}

// printableKey reports whether the key value is a single printable
// character. Named keys ("Shift", "Tab", "ArrowLeft") are never buffered.
func printableKey(key string) bool {
	r, size := utf8.DecodeRuneInString(key)
	if size != len(key) || r == utf8.RuneError {
		return false
	}
	return unicode.IsGraphic(r)
}
