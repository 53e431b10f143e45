package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxlead/voxlead/internal/extract"
	"github.com/voxlead/voxlead/internal/lead"
	"github.com/voxlead/voxlead/internal/observe"
	"github.com/voxlead/voxlead/internal/review"
	"github.com/voxlead/voxlead/pkg/audio"
	"github.com/voxlead/voxlead/pkg/leadstore"
	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// Default pipeline timing.
const (
	defaultTranscriptionTimeout = 10 * time.Second
	defaultExtractionTimeout    = 30 * time.Second
	defaultCompleteLinger       = 2 * time.Second
)

// ErrBusy is returned by [Machine.RequestCapture] while a capture is already
// in flight. A second capture is rejected, never queued.
var ErrBusy = errors.New("capture: another capture is already active")

// ErrNotValidating is returned by validation-phase operations (edit, select,
// save, add more) outside the validation phase.
var ErrNotValidating = errors.New("capture: no entity set under review")

// PhaseError reports a pipeline failure together with the stage it happened
// in, so the user is never shown a stageless "something went wrong".
type PhaseError struct {
	// Stage is one of "permission", "recording", "transcription",
	// "extraction", "saving".
	Stage string

	// Err is the underlying failure.
	Err error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("capture: %s failed: %v", e.Stage, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Committer performs the final validate-sanitize-append step of the
// pipeline. *lead.Committer is the production implementation.
type Committer interface {
	Commit(ctx context.Context, e *extract.Entities, language string) (*leadstore.Lead, error)
}

// Config wires a [Machine] to its collaborators. Platform, Transcriber,
// Extractor, and Committer are required; everything else has a sane default.
type Config struct {
	// Platform provides the microphone.
	Platform audio.Platform

	// Transcriber provides streaming speech-to-text.
	Transcriber stt.Transcriber

	// Extractor turns the final transcript into lead fields.
	Extractor extract.Extractor

	// Committer validates, sanitizes, and appends the finished lead.
	Committer Committer

	// Thresholds is the review policy. Zero value means
	// [review.DefaultThresholds].
	Thresholds review.Thresholds

	// Language is the dictation language tag. Defaults to "en-US"; must be
	// one of [stt.SupportedLanguages].
	Language string

	// TranscriptionTimeout bounds the transcript flush after stop.
	// Defaults to 10s.
	TranscriptionTimeout time.Duration

	// ExtractionTimeout bounds the entity extraction call. Defaults to 30s.
	ExtractionTimeout time.Duration

	// CompleteLinger is how long the machine stays in the complete phase
	// before returning to idle. Defaults to 2s.
	CompleteLinger time.Duration

	// Metrics receives pipeline instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Machine is the top-level capture state machine. It is the only component
// with authority to cancel or reset the pipeline, and the sole owner of the
// transcript and entity set lifetimes.
//
// All exported methods are safe for concurrent use, but the machine enforces
// strict exclusivity, not parallelism: one capture at a time, one phase
// active at a time.
type Machine struct {
	cfg        Config
	negotiator *Negotiator
	thresholds review.Thresholds
	metrics    *observe.Metrics
	log        *slog.Logger

	mu          sync.Mutex
	phase       Phase
	gen         uint64 // bumped on every return to idle; stale async results check it
	sess        *session
	pipeCancel  context.CancelFunc
	transcript  Transcript
	entities    *extract.Entities
	prior       *extract.Entities // carried across an add-more cycle for the merge
	lastErr     *PhaseError
	lingerTimer *time.Timer
	recordStart time.Time
}

// NewMachine creates a Machine in the idle phase.
func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Platform == nil || cfg.Transcriber == nil || cfg.Extractor == nil || cfg.Committer == nil {
		return nil, errors.New("capture: platform, transcriber, extractor, and committer are required")
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if !stt.IsSupportedLanguage(cfg.Language) {
		return nil, fmt.Errorf("capture: unsupported language %q", cfg.Language)
	}
	if cfg.Thresholds == (review.Thresholds{}) {
		cfg.Thresholds = review.DefaultThresholds()
	}
	if cfg.TranscriptionTimeout <= 0 {
		cfg.TranscriptionTimeout = defaultTranscriptionTimeout
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = defaultExtractionTimeout
	}
	if cfg.CompleteLinger <= 0 {
		cfg.CompleteLinger = defaultCompleteLinger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		cfg:        cfg,
		negotiator: NewNegotiator(cfg.Platform),
		thresholds: cfg.Thresholds,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
	}, nil
}

// Negotiator exposes the permission negotiator, e.g. for the settings-retry
// path after a denial.
func (m *Machine) Negotiator() *Negotiator { return m.negotiator }

// Phase returns the current pipeline phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SetLanguage changes the dictation language for subsequent captures. It is
// only legal while idle.
func (m *Machine) SetLanguage(tag string) error {
	if !stt.IsSupportedLanguage(tag) {
		return fmt.Errorf("capture: unsupported language %q", tag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return ErrBusy
	}
	m.cfg.Language = tag
	return nil
}

// SetThresholds changes the review policy for subsequent captures. It is
// only legal while idle.
func (m *Machine) SetThresholds(th review.Thresholds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return ErrBusy
	}
	if th == (review.Thresholds{}) {
		th = review.DefaultThresholds()
	}
	m.thresholds = th
	return nil
}

// SetTiming changes pipeline timeouts for subsequent captures. Zero or
// negative values keep the current setting. Only legal while idle.
func (m *Machine) SetTiming(transcription, extraction, linger time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return ErrBusy
	}
	if transcription > 0 {
		m.cfg.TranscriptionTimeout = transcription
	}
	if extraction > 0 {
		m.cfg.ExtractionTimeout = extraction
	}
	if linger > 0 {
		m.cfg.CompleteLinger = linger
	}
	return nil
}

// RequestCapture starts a new capture: resolve permission, acquire the
// microphone, open a transcription session, and begin recording. Returns
// [ErrBusy] if a capture is already active, or a *[PhaseError] when
// permission is refused or the device cannot be acquired — either way the
// machine is back in idle.
func (m *Machine) RequestCapture(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return ErrBusy
	}
	m.lastErr = nil
	m.applyLocked(EventRequestCapture)
	gen := m.gen
	m.mu.Unlock()

	decision := m.negotiator.Request(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.phase != PhasePermissionPrompt {
		// Cancelled while the prompt was outstanding.
		return nil
	}
	if decision != DecisionGranted {
		m.applyLocked(EventDenied)
		perr := &PhaseError{Stage: "permission", Err: audio.ErrPermissionDenied}
		m.lastErr = perr
		m.metrics.RecordPhaseFailure(ctx, PhasePermissionPrompt.String(), failureReason(perr.Err))
		return perr
	}

	sess, err := m.beginSessionLocked(ctx)
	if err != nil {
		m.applyLocked(EventDenied)
		perr := &PhaseError{Stage: "recording", Err: err}
		m.lastErr = perr
		m.metrics.RecordPhaseFailure(ctx, PhaseRecording.String(), failureReason(err))
		return perr
	}
	m.sess = sess
	m.recordStart = time.Now()
	m.applyLocked(EventGranted)
	return nil
}

// Pause suspends audio forwarding. A no-op outside recording.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || !m.applyLocked(EventPause) {
		return
	}
	m.sess.Pause()
}

// Resume lifts a pause. A no-op outside recording.
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || !m.applyLocked(EventResume) {
		return
	}
	m.sess.Resume()
}

// Stop ends recording and kicks off transcript finalisation and extraction
// in the background. The machine advances through processing and extracting
// to validation (or back to idle on failure) as those stages finish; observe
// progress via [Machine.Snapshot]. A no-op outside recording.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.applyLocked(EventStop) {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	gen := m.gen
	start := m.recordStart

	pipeCtx, cancel := context.WithCancel(context.Background())
	m.pipeCancel = cancel
	m.mu.Unlock()

	m.metrics.RecordingDuration.Record(pipeCtx, time.Since(start).Seconds())
	go m.finishCapture(pipeCtx, gen, sess)
}

// Cancel abandons the capture from any active phase: it stops in-flight
// transcription or extraction, releases the microphone synchronously, and
// discards the transcript and entity set. Results from the abandoned
// pipeline that land later are dropped. A no-op while idle or complete.
func (m *Machine) Cancel() {
	m.mu.Lock()
	prev := m.phase
	if prev == PhaseIdle || !m.applyLocked(EventCancel) {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	cancelPipe := m.pipeCancel
	m.sess = nil
	m.pipeCancel = nil
	m.transcript = Transcript{}
	m.entities = nil
	m.prior = nil
	m.lastErr = nil
	m.stopLingerLocked()
	m.mu.Unlock()

	if cancelPipe != nil {
		cancelPipe()
	}
	if sess != nil {
		sess.Cancel()
	}
	m.metrics.RecordCancellation(context.Background(), prev.String())
	m.log.Info("capture cancelled", "phase", prev)
}

// Edit applies a manual correction to a field under review. The edited field
// is pinned to full confidence. Only legal during validation.
func (m *Machine) Edit(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseValidation {
		return ErrNotValidating
	}
	ent := m.entities.Field(field)
	if ent == nil {
		return fmt.Errorf("capture: unknown field %q", field)
	}
	review.Edit(ent, value)
	return nil
}

// SelectAlternative promotes one of a field's alternative readings to its
// value at assisted confidence. Only legal during validation.
func (m *Machine) SelectAlternative(field string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseValidation {
		return ErrNotValidating
	}
	ent := m.entities.Field(field)
	if ent == nil {
		return fmt.Errorf("capture: unknown field %q", field)
	}
	return review.SelectAlternative(ent, index, m.thresholds)
}

// Save commits the validated lead. On success the machine moves to complete
// and returns to idle after the configured linger. On failure — blocked
// validation or a store error — the entity set is retained and the machine
// stays in validation so the user can fix or retry without re-dictating.
func (m *Machine) Save(ctx context.Context) (*leadstore.Lead, error) {
	m.mu.Lock()
	if m.phase != PhaseValidation {
		m.mu.Unlock()
		return nil, ErrNotValidating
	}
	// Commit works on a snapshot: edits racing the append must not leak
	// into the stored lead or trip the committer's re-validation.
	entities := m.entities.Clone()
	language := m.transcript.Language
	if language == "" {
		language = m.cfg.Language
	}
	gen := m.gen
	m.mu.Unlock()

	start := time.Now()
	stored, err := m.cfg.Committer.Commit(ctx, entities, language)
	m.metrics.CommitDuration.Record(ctx, time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		var blocked *lead.ErrNotCommittable
		if !errors.As(err, &blocked) {
			// Store failure: retryable, keep everything.
			m.lastErr = &PhaseError{Stage: "saving", Err: err}
			m.metrics.RecordPhaseFailure(ctx, m.phase.String(), failureReason(err))
		}
		return nil, err
	}
	if m.gen != gen || m.phase != PhaseValidation {
		// Cancelled while the append was in flight. The lead is stored;
		// the machine has already been reset.
		return stored, nil
	}

	m.entities = nil
	m.transcript = Transcript{}
	m.lastErr = nil
	m.applyLocked(EventSave)
	m.metrics.RecordCommit(ctx, language)
	m.startLingerLocked()
	return stored, nil
}

// AddMore returns to recording while keeping the extracted entities for an
// additive second pass: fields mentioned again are overwritten by the next
// extraction, untouched fields keep their values and confidences. Only legal
// during validation. If the microphone cannot be re-acquired the machine
// stays in validation with the entity set intact.
func (m *Machine) AddMore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseValidation {
		return ErrNotValidating
	}

	sess, err := m.beginSessionLocked(ctx)
	if err != nil {
		perr := &PhaseError{Stage: "recording", Err: err}
		m.lastErr = perr
		m.metrics.RecordPhaseFailure(ctx, PhaseRecording.String(), failureReason(err))
		return perr
	}

	m.prior = m.entities
	m.entities = nil
	m.sess = sess
	m.recordStart = time.Now()
	m.lastErr = nil
	m.applyLocked(EventAddMore)
	return nil
}

// Snapshot is a point-in-time view of the machine for the UI.
type Snapshot struct {
	// Phase is the current pipeline phase.
	Phase Phase

	// Paused is true while recording is paused.
	Paused bool

	// Transcript is the accumulated dictation text.
	Transcript string

	// Confidence is the transcript confidence in [0, 1].
	Confidence float64

	// Language is the recognised dictation language tag.
	Language string

	// Level is the live audio meter value in [0, 1]. Zero outside recording.
	Level float64

	// Entities is a deep copy of the extracted fields; nil before extraction.
	Entities *extract.Entities

	// Validation reports commit readiness, field by field. Only meaningful
	// when Entities is set.
	Validation review.Report

	// Err is the most recent pipeline failure, or nil.
	Err *PhaseError
}

// Snapshot returns the current machine state. The returned value shares
// nothing with the machine; mutating it has no effect.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{Phase: m.phase, Err: m.lastErr}
	if m.sess != nil {
		s.Paused = m.sess.Paused()
		s.Level = m.sess.Level()
		t := m.sess.Transcript()
		s.Transcript, s.Confidence, s.Language = t.Text, t.Confidence, t.Language
	} else {
		s.Transcript = m.transcript.Text
		s.Confidence = m.transcript.Confidence
		s.Language = m.transcript.Language
	}
	if m.entities != nil {
		s.Entities = m.entities.Clone()
		s.Validation = review.Committable(m.entities, m.thresholds)
	}
	return s
}

// beginSessionLocked acquires the microphone and opens a transcription
// session. Called with m.mu held so no second acquisition can interleave.
func (m *Machine) beginSessionLocked(ctx context.Context) (*session, error) {
	stream, err := m.cfg.Platform.Acquire(ctx, audio.DefaultConstraints())
	if err != nil {
		return nil, err
	}
	guard := NewGuard(stream)

	sttSess, err := m.cfg.Transcriber.Start(ctx, stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   m.cfg.Language,
	})
	if err != nil {
		_ = guard.Release()
		return nil, err
	}
	return newSession(guard, sttSess, m.cfg.Language), nil
}

// finishCapture runs the post-recording pipeline: flush the transcript, then
// extract entities. Each stage re-checks the generation under the lock so a
// cancel that happened in the meantime discards the result instead of
// applying it.
func (m *Machine) finishCapture(ctx context.Context, gen uint64, sess *session) {
	stopCtx, cancel := context.WithTimeout(ctx, m.cfg.TranscriptionTimeout)
	start := time.Now()
	transcript, err := sess.Stop(stopCtx)
	cancel()
	m.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())

	m.mu.Lock()
	if m.gen != gen || m.phase != PhaseProcessing {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	if err != nil && transcript.Text == "" {
		m.failLocked(ctx, "transcription", err)
		m.mu.Unlock()
		return
	}
	if err != nil {
		// The provider died mid-stream but we still hold a partial
		// transcript. Proceed with degraded input; extraction confidence
		// scoring and the validation thresholds catch the fallout.
		m.log.Warn("transcription degraded, continuing with partial transcript", "error", err)
	}
	m.transcript = transcript
	m.applyLocked(EventTranscriptReady)
	m.mu.Unlock()

	exCtx, cancel := context.WithTimeout(ctx, m.cfg.ExtractionTimeout)
	start = time.Now()
	entities, exErr := m.cfg.Extractor.Extract(exCtx, transcript.Text, transcript.Language)
	cancel()
	m.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.phase != PhaseExtracting {
		return
	}
	if exErr != nil {
		// Terminal for the session: transcript discarded, user re-records.
		m.failLocked(ctx, "extraction", exErr)
		return
	}
	if m.prior != nil {
		entities = extract.Merge(m.prior, entities)
		m.prior = nil
	}
	m.entities = entities
	m.applyLocked(EventEntitiesReady)
}

// failLocked records a pipeline failure, tears the session down, and drops
// back to idle. Called with m.mu held.
func (m *Machine) failLocked(ctx context.Context, stage string, err error) {
	perr := &PhaseError{Stage: stage, Err: err}
	m.lastErr = perr
	m.metrics.RecordPhaseFailure(ctx, m.phase.String(), failureReason(err))
	m.log.Error("capture pipeline failed", "stage", stage, "phase", m.phase, "error", err)

	if m.sess != nil {
		m.sess.Cancel()
		m.sess = nil
	}
	if m.pipeCancel != nil {
		m.pipeCancel()
		m.pipeCancel = nil
	}
	m.transcript = Transcript{}
	m.entities = nil
	m.prior = nil
	m.stopLingerLocked()
	m.applyLocked(EventFail)
}

// startLingerLocked arms the complete-to-idle timer. Called with m.mu held.
func (m *Machine) startLingerLocked() {
	gen := m.gen
	m.lingerTimer = time.AfterFunc(m.cfg.CompleteLinger, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen || m.phase != PhaseComplete {
			return
		}
		m.applyLocked(EventLingerElapsed)
	})
}

// stopLingerLocked disarms the complete-to-idle timer if armed.
func (m *Machine) stopLingerLocked() {
	if m.lingerTimer != nil {
		m.lingerTimer.Stop()
		m.lingerTimer = nil
	}
}

// applyLocked runs ev through the transition table. Illegal events are
// logged at debug and ignored. Called with m.mu held.
func (m *Machine) applyLocked(ev Event) bool {
	next, ok := transition(m.phase, ev)
	if !ok {
		m.log.Debug("ignoring event", "event", ev, "phase", m.phase)
		return false
	}
	prev := m.phase
	m.phase = next
	if prev != next {
		m.log.Info("capture phase changed", "from", prev, "to", next, "event", ev)
		if prev == PhaseIdle {
			m.metrics.ActiveCaptures.Add(context.Background(), 1)
		}
		if next == PhaseIdle {
			m.metrics.ActiveCaptures.Add(context.Background(), -1)
			m.gen++
		}
	}
	return true
}

// failureReason maps an error to a low-cardinality metric attribute.
func failureReason(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, extract.ErrUnparseable):
		return "unparseable"
	}
	return "error"
}
