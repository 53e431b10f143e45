// Package app wires the capture pipeline subsystems into a running service.
//
// The CaptureManager owns the full lifecycle: New connects providers, the
// lead store, and the capture machine; Shutdown tears everything down once.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithExtractor, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxlead/voxlead/internal/capture"
	"github.com/voxlead/voxlead/internal/config"
	"github.com/voxlead/voxlead/internal/extract"
	"github.com/voxlead/voxlead/internal/lead"
	"github.com/voxlead/voxlead/internal/observe"
	"github.com/voxlead/voxlead/internal/review"
	"github.com/voxlead/voxlead/pkg/audio"
	"github.com/voxlead/voxlead/pkg/leadstore"
	leadpg "github.com/voxlead/voxlead/pkg/leadstore/postgres"
	"github.com/voxlead/voxlead/pkg/provider/llm"
	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// defaultEmbeddingDimensions matches OpenAI text-embedding-3-small, the
// store's documented default.
const defaultEmbeddingDimensions = 1536

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry.
type Providers struct {
	STT   stt.Transcriber
	LLM   llm.Provider
	Audio audio.Platform
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*CaptureManager)

// WithStore injects a lead store instead of creating one from config.
func WithStore(s leadstore.Store) Option {
	return func(m *CaptureManager) { m.store = s }
}

// WithExtractor injects an extractor instead of building one from the LLM
// provider.
func WithExtractor(e extract.Extractor) Option {
	return func(m *CaptureManager) { m.extractor = e }
}

// WithMetrics injects a metrics bundle instead of using the process default.
func WithMetrics(mx *observe.Metrics) Option {
	return func(m *CaptureManager) { m.metrics = mx }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *CaptureManager) { m.log = l }
}

// CaptureManager owns the single capture pipeline of the process: one
// machine, one lead store, one extractor. All exported methods are safe for
// concurrent use.
type CaptureManager struct {
	cfg       *config.Config
	machine   *capture.Machine
	store     leadstore.Store
	committer *lead.Committer
	extractor extract.Extractor
	metrics   *observe.Metrics
	log       *slog.Logger

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// New creates a CaptureManager by wiring providers, store, committer, and
// capture machine together. The providers struct comes from main.go
// (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*CaptureManager, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if providers == nil {
		providers = &Providers{}
	}

	m := &CaptureManager{cfg: cfg}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}

	if err := m.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	th := thresholdsFromConfig(cfg.Review)
	m.committer = lead.NewCommitter(m.store, th, m.log)

	if m.extractor == nil {
		if providers.LLM == nil {
			return nil, errors.New("app: an llm provider is required for extraction")
		}
		m.extractor = extract.New(providers.LLM)
	}

	machine, err := capture.NewMachine(capture.Config{
		Platform:             providers.Audio,
		Transcriber:          providers.STT,
		Extractor:            m.extractor,
		Committer:            m.committer,
		Thresholds:           th,
		Language:             cfg.Capture.Language,
		TranscriptionTimeout: cfg.Capture.TranscriptionTimeout,
		ExtractionTimeout:    cfg.Capture.ExtractionTimeout,
		CompleteLinger:       cfg.Capture.CompleteLinger,
		Metrics:              m.metrics,
		Logger:               m.log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build capture machine: %w", err)
	}
	m.machine = machine

	return m, nil
}

// initStore sets up the PostgreSQL lead store, or the in-memory store when
// no DSN is configured.
func (m *CaptureManager) initStore(ctx context.Context) error {
	if m.store != nil {
		return nil // injected
	}

	dsn := m.cfg.Store.PostgresDSN
	if dsn == "" {
		m.log.Warn("no postgres_dsn configured; leads are held in memory only")
		m.store = leadstore.NewMemStore()
		return nil
	}

	dims := m.cfg.Store.EmbeddingDimensions
	if dims == 0 {
		dims = defaultEmbeddingDimensions
	}

	store, err := leadpg.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	m.store = store
	m.closers = append(m.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// Machine exposes the capture machine for the HTTP handler and tests.
func (m *CaptureManager) Machine() *capture.Machine { return m.machine }

// Store exposes the lead store, e.g. for readiness checks.
func (m *CaptureManager) Store() leadstore.Store { return m.store }

// Snapshot returns the current pipeline state.
func (m *CaptureManager) Snapshot() capture.Snapshot { return m.machine.Snapshot() }

// ApplyConfig applies a hot-reloadable config change. Changes that cannot
// take effect mid-capture (language, thresholds, timing) are skipped with a
// warning when a capture is in flight; the caller may retry on the next
// reload.
func (m *CaptureManager) ApplyConfig(d config.ConfigDiff) {
	if d.LanguageChanged {
		if err := m.machine.SetLanguage(d.NewLanguage); err != nil {
			m.log.Warn("language change not applied", "language", d.NewLanguage, "err", err)
		} else {
			m.log.Info("dictation language changed", "language", d.NewLanguage)
		}
	}

	if d.ThresholdsChanged {
		th := thresholdsFromConfig(d.NewReview)
		if err := m.machine.SetThresholds(th); err != nil {
			m.log.Warn("threshold change not applied", "err", err)
		} else {
			m.committer.SetThresholds(th)
			m.log.Info("review thresholds changed", "required", th.Required, "assisted", th.Assisted)
		}
	}

	if d.TimingChanged {
		c := d.NewCapture
		if err := m.machine.SetTiming(c.TranscriptionTimeout, c.ExtractionTimeout, c.CompleteLinger); err != nil {
			m.log.Warn("timing change not applied", "err", err)
		} else {
			m.log.Info("pipeline timing changed",
				"transcription_timeout", c.TranscriptionTimeout,
				"extraction_timeout", c.ExtractionTimeout,
				"complete_linger", c.CompleteLinger,
			)
		}
	}
}

// Shutdown cancels any capture in flight and tears down the store. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (m *CaptureManager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.stopOnce.Do(func() {
		m.machine.Cancel()

		for i, closer := range m.closers {
			select {
			case <-ctx.Done():
				m.log.Warn("shutdown deadline exceeded", "remaining", len(m.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				m.log.Warn("closer error", "index", i, "err", err)
			}
		}

		m.log.Info("shutdown complete")
	})
	return shutdownErr
}

// thresholdsFromConfig builds the review policy from config, falling back to
// defaults for unset values.
func thresholdsFromConfig(rc config.ReviewConfig) review.Thresholds {
	th := review.DefaultThresholds()
	if rc.RequiredConfidence > 0 {
		th.Required = rc.RequiredConfidence
	}
	if rc.AssistedConfidence > 0 {
		th.Assisted = rc.AssistedConfidence
	}
	return th
}
