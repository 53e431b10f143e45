// Package deepgram provides a Deepgram-backed transcriber using the Deepgram
// streaming WebSocket API. It implements the stt.Transcriber interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Transcriber.
type Option func(*Transcriber)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithLanguage sets the default BCP-47 recognition language. Sessions that
// specify a language in their StreamConfig override it.
func WithLanguage(language string) Option {
	return func(t *Transcriber) {
		t.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) {
		t.sampleRate = rate
	}
}

// Transcriber implements stt.Transcriber backed by the Deepgram streaming API.
type Transcriber struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Transcriber. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	t := &Transcriber{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Start opens a streaming transcription session with Deepgram. It respects
// cfg.SampleRate, cfg.Channels, and cfg.Language.
func (t *Transcriber) Start(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	if cfg.Language != "" && !stt.IsSupportedLanguage(cfg.Language) {
		return nil, fmt.Errorf("deepgram: unsupported language %q", cfg.Language)
	}

	lang := cfg.Language
	if lang == "" {
		lang = t.language
	}

	wsURL, err := t.buildURL(cfg, lang)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:     conn,
		language: lang,
		results:  make(chan stt.Result, 64),
		audio:    make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (t *Transcriber) buildURL(cfg stt.StreamConfig, lang string) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = t.sampleRate
	}

	q := u.Query()
	q.Set("model", t.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.Session.
type session struct {
	conn     *websocket.Conn
	language string
	results  chan stt.Result
	audio    chan []byte

	audioSent atomic.Bool

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("deepgram: %w", stt.ErrSessionClosed)
	default:
	}
	s.audioSent.Store(true)
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return fmt.Errorf("deepgram: %w", stt.ErrSessionClosed)
	}
}

// Results returns the channel of transcription results.
func (s *session) Results() <-chan stt.Result { return s.results }

// SetLanguage changes the recognition language for a session that has not yet
// received audio. Deepgram fixes the language at connection time, so a change
// requires tearing down the session; once audio has flowed the caller gets
// stt.ErrLanguageLocked instead.
func (s *session) SetLanguage(tag string) error {
	if !stt.IsSupportedLanguage(tag) {
		return fmt.Errorf("deepgram: unsupported language %q", tag)
	}
	if s.audioSent.Load() {
		return fmt.Errorf("deepgram: %w", stt.ErrLanguageLocked)
	}
	// The connection was dialed with the original language; the caller must
	// close and restart to actually switch. Reject so that restart happens.
	return fmt.Errorf("deepgram: language is fixed at session start: %w", stt.ErrLanguageLocked)
}

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Send a close message to Deepgram to flush pending audio.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches them to the
// results channel. On a mid-stream socket error the channel is closed after
// whatever results already arrived; earlier progress is preserved.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation — exit gracefully.
			return
		}

		r, ok := s.parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case s.results <- r:
		case <-s.done:
		}
	}
}

// parseResponse parses a raw Deepgram WebSocket message into a Result.
// Returns (Result, true) on success, or (zero, false) if the message should
// be ignored.
func (s *session) parseResponse(data []byte) (stt.Result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Result{}, false
	}
	if resp.Type != "Results" {
		return stt.Result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Result{}, false
	}

	alt := resp.Channel.Alternatives[0]
	return stt.Result{
		Text:       alt.Transcript,
		Final:      resp.IsFinal,
		Confidence: stt.ClampConfidence(alt.Confidence),
		Language:   s.language,
	}, true
}

// Compile-time assertions.
var (
	_ stt.Transcriber = (*Transcriber)(nil)
	_ stt.Session     = (*session)(nil)
)
