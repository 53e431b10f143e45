// Package whisper provides a local transcriber backed by whisper.cpp via its
// Go CGO bindings. No network access is required; the model file is loaded
// once at startup and shared across sessions.
//
// whisper.cpp is not a streaming engine, so the session buffers speech and
// runs inference when it detects a pause: incoming PCM chunks are classified
// as speech or silence by RMS energy, buffered while the speaker talks, and
// flushed to the model after a configurable stretch of silence (or when the
// buffer hits its maximum duration). Each flush produces one final Result.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// input this package accepts.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// sample units, 0-32767) below which a chunk counts as silence.
	defaultRMSThreshold = 300.0

	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

// whisperLanguages maps the dictation BCP-47 tags to the two-letter codes
// whisper.cpp understands.
var whisperLanguages = map[string]string{
	"en-US": "en",
	"es-ES": "es",
	"fr-FR": "fr",
	"de-DE": "de",
	"pt-BR": "pt",
	"it-IT": "it",
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the default BCP-47 recognition language. Defaults to
// "en-US".
func WithLanguage(tag string) Option {
	return func(t *Transcriber) { t.language = tag }
}

// WithSampleRate sets the audio sample rate in Hz. This must match the
// actual sample rate of PCM data delivered via SendAudio. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) { t.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// triggers a flush of the accumulated speech buffer to whisper.cpp. Defaults
// to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(t *Transcriber) { t.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10 000 ms (10 s).
func WithMaxBufferDurationMs(ms int) Option {
	return func(t *Transcriber) { t.maxBufferDurationMs = ms }
}

// Transcriber implements stt.Transcriber using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared across all sessions.
type Transcriber struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:               model,
		language:            "en-US",
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model. Must be called when the transcriber is no
// longer needed.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Start opens a new transcription session. The returned Session is ready to
// accept audio immediately. It respects cfg.SampleRate, cfg.Channels, and
// cfg.Language; if those are zero/empty the provider-level defaults apply.
//
// Each session creates its own whisper.cpp context from the shared model, so
// multiple sessions can run concurrently without interference.
func (t *Transcriber) Start(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = t.language
	}
	if _, ok := whisperLanguages[lang]; !ok {
		return nil, fmt.Errorf("whisper: unsupported language %q", lang)
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = t.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		model:               t.model,
		language:            lang,
		sampleRate:          sr,
		channels:            ch,
		silenceThresholdMs:  t.silenceThresholdMs,
		maxBufferDurationMs: t.maxBufferDurationMs,

		audioCh: make(chan []byte, 256),
		results: make(chan stt.Result, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// ---- session ----------------------------------------------------------------

// session is a live whisper transcription session. It implements
// stt.Session. All mutable state that drives silence detection and buffering
// is confined to the processLoop goroutine.
type session struct {
	// immutable configuration (set once in Start)
	model               whisperlib.Model
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int

	// language may change via SetLanguage until the first audio chunk.
	langMu    sync.Mutex
	language  string
	audioSent bool

	audioCh chan []byte
	results chan stt.Result

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// silence analysis and buffering.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	default:
	}
	s.langMu.Lock()
	s.audioSent = true
	s.langMu.Unlock()
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	}
}

// Results returns the read-only channel of transcription results.
func (s *session) Results() <-chan stt.Result { return s.results }

// SetLanguage changes the recognition language. Inference contexts are
// created per flush, so the language is free to change until the first audio
// chunk arrives; afterwards the utterance is committed to its language.
func (s *session) SetLanguage(tag string) error {
	if _, ok := whisperLanguages[tag]; !ok {
		return fmt.Errorf("whisper: unsupported language %q", tag)
	}
	s.langMu.Lock()
	defer s.langMu.Unlock()
	if s.audioSent {
		return fmt.Errorf("whisper: %w", stt.ErrLanguageLocked)
	}
	s.language = tag
	return nil
}

// Close terminates the session, flushes any pending speech audio, closes the
// Results channel, and releases all associated resources.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for silence detection,
// audio buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.infer(pcm)
		if err != nil {
			slog.Error("whisper inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}

		s.langMu.Lock()
		lang := s.language
		s.langMu.Unlock()

		// whisper.cpp does not self-report a usable score, so results carry
		// the conservative default.
		select {
		case s.results <- stt.Result{
			Text:       text,
			Final:      true,
			Confidence: stt.DefaultConfidence,
			Language:   lang,
		}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				doFlush()
				return
			}

			rms := computeRMS(chunk)
			chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)

			if rms < defaultRMSThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.silenceThresholdMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}

// infer converts the buffered PCM audio to float32, runs whisper.cpp
// inference using a fresh context, and returns the concatenated text.
func (s *session) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32Mono(pcm, s.channels)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	s.langMu.Lock()
	lang := whisperLanguages[s.language]
	s.langMu.Unlock()

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Compile-time assertions.
var (
	_ stt.Transcriber = (*Transcriber)(nil)
	_ stt.Session     = (*session)(nil)
)
