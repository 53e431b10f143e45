package deepgram

import (
	"net/url"
	"testing"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

func assertEqual(t *testing.T, name, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", name, got, want)
	}
}

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	tr, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   "en-US",
	}

	rawURL, err := tr.buildURL(cfg, cfg.Language)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en-US", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_CustomOptions(t *testing.T) {
	tr, err := New("key", WithModel("base"), WithLanguage("de-DE"), WithSampleRate(48000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := tr.buildURL(stt.StreamConfig{}, "de-DE")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") should fail")
	}
}

// ---- response parsing ----

func TestParseResponse_Results(t *testing.T) {
	s := &session{language: "en-US"}

	msg := []byte(`{
		"type": "Results",
		"is_final": true,
		"channel": {
			"alternatives": [
				{"transcript": "call Maria Lopez tomorrow", "confidence": 0.93}
			]
		}
	}`)

	r, ok := s.parseResponse(msg)
	if !ok {
		t.Fatal("parseResponse returned ok=false for a Results message")
	}
	if r.Text != "call Maria Lopez tomorrow" {
		t.Errorf("Text = %q", r.Text)
	}
	if !r.Final {
		t.Error("Final = false, want true")
	}
	if r.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", r.Confidence)
	}
	if r.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", r.Language)
	}
}

func TestParseResponse_Interim(t *testing.T) {
	s := &session{language: "es-ES"}

	msg := []byte(`{
		"type": "Results",
		"is_final": false,
		"channel": {"alternatives": [{"transcript": "hola", "confidence": 0.5}]}
	}`)

	r, ok := s.parseResponse(msg)
	if !ok {
		t.Fatal("parseResponse returned ok=false")
	}
	if r.Final {
		t.Error("Final = true for an interim result")
	}
	if r.Language != "es-ES" {
		t.Errorf("Language = %q, want es-ES", r.Language)
	}
}

func TestParseResponse_ClampsConfidence(t *testing.T) {
	s := &session{language: "en-US"}

	msg := []byte(`{
		"type": "Results",
		"is_final": true,
		"channel": {"alternatives": [{"transcript": "x", "confidence": 1.4}]}
	}`)

	r, ok := s.parseResponse(msg)
	if !ok {
		t.Fatal("parseResponse returned ok=false")
	}
	if r.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamp to 1", r.Confidence)
	}
}

func TestParseResponse_Ignored(t *testing.T) {
	s := &session{language: "en-US"}

	cases := map[string][]byte{
		"metadata":        []byte(`{"type":"Metadata"}`),
		"no alternatives": []byte(`{"type":"Results","channel":{"alternatives":[]}}`),
		"invalid json":    []byte(`{nope`),
	}

	for name, msg := range cases {
		if _, ok := s.parseResponse(msg); ok {
			t.Errorf("%s: parseResponse returned ok=true, want false", name)
		}
	}
}

func TestStart_RejectsUnsupportedLanguage(t *testing.T) {
	tr, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tr.Start(t.Context(), stt.StreamConfig{Language: "ja-JP"}); err == nil {
		t.Fatal("Start should reject an unsupported language before dialing")
	}
}
