// Package ws provides an audio.Platform backed by a browser microphone
// streamed over WebSocket.
//
// The field user's browser owns the physical microphone: it connects to the
// gateway's HTTP endpoint, answers permission requests, and streams Opus
// frames which the gateway decodes to 16 kHz mono PCM. From the pipeline's
// point of view this is indistinguishable from a local device — Acquire
// elicits the browser's permission prompt and returns a Stream, Release
// stops the tap.
//
// Wire protocol (client side):
//
//   - Text messages are JSON control frames. The gateway sends
//     {"type":"capture_start","constraints":{...}} and
//     {"type":"capture_stop"}; the client replies to capture_start with
//     {"type":"permission","granted":true|false}.
//   - Binary messages carry one Opus frame each (20 ms, mono).
//
// At most one dictation client and one live stream exist at a time.
package ws

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/voxlead/voxlead/pkg/audio"
)

// frameBuffer is the capacity of a stream's frame channel. Frames beyond it
// are dropped rather than blocking the socket read loop.
const frameBuffer = 256

// permissionTimeout bounds how long Acquire waits for the browser to answer
// a capture_start control frame.
const permissionTimeout = 30 * time.Second

// controlFrame is the JSON envelope for text messages in both directions.
type controlFrame struct {
	Type        string           `json:"type"`
	Granted     *bool            `json:"granted,omitempty"`
	Constraints *wireConstraints `json:"constraints,omitempty"`
}

// wireConstraints mirrors audio.Constraints on the wire.
type wireConstraints struct {
	SampleRate       int  `json:"sample_rate"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
	AutoGainControl  bool `json:"auto_gain_control"`
}

// Gateway accepts a single browser dictation client and exposes it as an
// [audio.Platform]. Mount it on the HTTP mux serving the capture UI.
//
// All exported methods are safe for concurrent use.
type Gateway struct {
	mu      sync.Mutex
	claimed bool
	client  *client
}

// New returns a Gateway with no connected client.
func New() *Gateway {
	return &Gateway{}
}

// ServeHTTP upgrades the request to a WebSocket dictation connection.
// A second client connecting while one is active is refused.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Claim the single client slot before the upgrade so a second request
	// racing the handshake cannot also pass the check.
	g.mu.Lock()
	if g.claimed {
		g.mu.Unlock()
		http.Error(w, "a dictation client is already connected", http.StatusConflict)
		return
	}
	g.claimed = true
	g.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("ws: accept failed", "err", err)
		g.mu.Lock()
		g.claimed = false
		g.mu.Unlock()
		return
	}

	c := &client{
		conn:       conn,
		permission: make(chan bool, 1),
	}

	g.mu.Lock()
	g.client = c
	g.mu.Unlock()

	slog.Info("ws: dictation client connected", "remote", r.RemoteAddr)
	c.readLoop(r.Context())

	g.mu.Lock()
	if g.client == c {
		g.client = nil
	}
	g.claimed = false
	g.mu.Unlock()

	c.closeStream()
	conn.Close(websocket.StatusNormalClosure, "bye")
	slog.Info("ws: dictation client disconnected", "remote", r.RemoteAddr)
}

// Acquire implements [audio.Platform]. It asks the connected browser client
// for microphone access and, when granted, returns a Stream of decoded PCM
// frames.
func (g *Gateway) Acquire(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	g.mu.Lock()
	cl := g.client
	g.mu.Unlock()

	if cl == nil {
		return nil, fmt.Errorf("ws: no dictation client connected: %w", audio.ErrDeviceUnavailable)
	}
	return cl.acquire(ctx, c)
}

// Ensure Gateway implements audio.Platform at compile time.
var _ audio.Platform = (*Gateway)(nil)

// ---- client ----

// client is one connected browser. It owns the socket read loop and at most
// one live stream.
type client struct {
	conn       *websocket.Conn
	permission chan bool

	mu     sync.Mutex
	stream *stream
}

// acquire runs the capture_start/permission handshake and opens the stream.
func (c *client) acquire(ctx context.Context, cons audio.Constraints) (audio.Stream, error) {
	c.mu.Lock()
	if c.stream != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("ws: stream already claimed: %w", audio.ErrDeviceUnavailable)
	}
	c.mu.Unlock()

	// Drain a stale permission answer from a previous handshake, if any.
	select {
	case <-c.permission:
	default:
	}

	if err := c.sendControl(ctx, controlFrame{
		Type: "capture_start",
		Constraints: &wireConstraints{
			SampleRate:       cons.SampleRate,
			EchoCancellation: cons.EchoCancellation,
			NoiseSuppression: cons.NoiseSuppression,
			AutoGainControl:  cons.AutoGainControl,
		},
	}); err != nil {
		return nil, fmt.Errorf("ws: send capture_start: %w", audio.ErrDeviceUnavailable)
	}

	timer := time.NewTimer(permissionTimeout)
	defer timer.Stop()

	select {
	case granted := <-c.permission:
		if !granted {
			return nil, audio.ErrPermissionDenied
		}
	case <-timer.C:
		return nil, fmt.Errorf("ws: permission prompt timed out: %w", audio.ErrPermissionDenied)
	case <-ctx.Done():
		_ = c.sendControl(context.Background(), controlFrame{Type: "capture_stop"})
		return nil, ctx.Err()
	}

	dec, err := gopus.NewDecoder(cons.SampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("ws: create opus decoder: %w", err)
	}

	st := &stream{
		client:     c,
		decoder:    dec,
		sampleRate: cons.SampleRate,
		frames:     make(chan audio.Frame, frameBuffer),
	}

	c.mu.Lock()
	c.stream = st
	c.mu.Unlock()

	return st, nil
}

// sendControl marshals and writes a control frame as a text message.
func (c *client) sendControl(ctx context.Context, f controlFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// readLoop receives messages until the socket dies. Text frames are control
// messages; binary frames are Opus audio routed to the live stream.
func (c *client) readLoop(ctx context.Context) {
	for {
		typ, msg, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageText:
			var f controlFrame
			if err := json.Unmarshal(msg, &f); err != nil {
				slog.Debug("ws: bad control frame", "err", err)
				continue
			}
			if f.Type == "permission" && f.Granted != nil {
				select {
				case c.permission <- *f.Granted:
				default:
				}
			}

		case websocket.MessageBinary:
			c.mu.Lock()
			st := c.stream
			c.mu.Unlock()
			if st != nil {
				st.push(msg)
			}
		}
	}
}

// closeStream releases the live stream, if any. Called when the socket dies
// so the pipeline sees the frame channel close.
func (c *client) closeStream() {
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st != nil {
		_ = st.Release()
	}
}

// detach removes st as the client's live stream.
func (c *client) detach(st *stream) {
	c.mu.Lock()
	if c.stream == st {
		c.stream = nil
	}
	c.mu.Unlock()
}

// ---- stream ----

// stream is a live browser-microphone tap. It implements audio.Stream.
type stream struct {
	client     *client
	decoder    *gopus.Decoder
	sampleRate int
	frames     chan audio.Frame

	mu       sync.Mutex
	released bool
	elapsed  time.Duration
}

// push decodes one Opus packet and delivers the PCM frame, dropping it when
// the consumer is behind.
func (s *stream) push(packet []byte) {
	// 20 ms of mono audio at the stream's sample rate.
	frameSize := s.sampleRate / 50
	pcm, err := s.decoder.Decode(packet, frameSize, false)
	if err != nil {
		slog.Debug("ws: opus decode failed", "err", err)
		return
	}

	buf := make([]byte, 2*len(pcm))
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(sample))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}

	f := audio.Frame{
		PCM:        buf,
		SampleRate: s.sampleRate,
		Channels:   1,
		Timestamp:  s.elapsed,
	}
	s.elapsed += time.Duration(len(pcm)) * time.Second / time.Duration(s.sampleRate)

	select {
	case s.frames <- f:
	default:
		// Consumer is behind; the meter and transcriber tolerate loss.
	}
}

// Frames implements [audio.Stream].
func (s *stream) Frames() <-chan audio.Frame { return s.frames }

// Release implements [audio.Stream]. Safe to call more than once.
func (s *stream) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	close(s.frames)
	s.mu.Unlock()

	s.client.detach(s)
	_ = s.client.sendControl(context.Background(), controlFrame{Type: "capture_stop"})
	return nil
}

// Ensure stream implements audio.Stream at compile time.
var _ audio.Stream = (*stream)(nil)
