package extract_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/voxlead/voxlead/internal/extract"
	llm "github.com/voxlead/voxlead/pkg/provider/llm"
	llmmock "github.com/voxlead/voxlead/pkg/provider/llm/mock"
)

const mariaTranscript = "Just met Maria Lopez, she wants a kitchen remodel, " +
	"budget around fifty thousand, call her at five five five one two three " +
	"four five six seven, email maria at example dot com, wants to start ASAP"

const mariaJSON = `{
  "name": {"value": "Maria Lopez", "confidence": 0.95, "alternatives": []},
  "phone": {"value": "5551234567", "confidence": 0.9, "alternatives": []},
  "email": {"value": "maria@example.com", "confidence": 0.85, "alternatives": []},
  "project": {"value": "kitchen remodel", "confidence": 0.92, "alternatives": []},
  "budget": {"value": "around fifty thousand", "confidence": 0.8, "alternatives": []},
  "urgency": {"value": "ASAP", "confidence": 0.88, "alternatives": []},
  "notes": ""
}`

func TestExtract_FullTranscript(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: mariaJSON},
	}
	engine := extract.New(provider)

	ents, err := engine.Extract(t.Context(), mariaTranscript, "en-US")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if ents.Name.Value != "Maria Lopez" {
		t.Errorf("name = %q", ents.Name.Value)
	}
	if ents.Phone.Value != "555-123-4567" {
		t.Errorf("phone = %q, want normalized 555-123-4567", ents.Phone.Value)
	}
	// The raw phone reading stays reachable as the first alternative.
	if len(ents.Phone.Alternatives) == 0 || ents.Phone.Alternatives[0] != "5551234567" {
		t.Errorf("phone alternatives = %v, want raw value first", ents.Phone.Alternatives)
	}
	if ents.Email.Value != "maria@example.com" {
		t.Errorf("email = %q", ents.Email.Value)
	}
	if ents.Project.Value != "kitchen remodel" {
		t.Errorf("project = %q", ents.Project.Value)
	}
	if ents.Budget.Value != "around fifty thousand" {
		t.Errorf("budget = %q", ents.Budget.Value)
	}
	if ents.Urgency.Value != "ASAP" {
		t.Errorf("urgency = %q", ents.Urgency.Value)
	}

	if got := provider.CompleteCallCount(); got != 1 {
		t.Errorf("Complete called %d times, want 1", got)
	}
}

func TestExtract_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.Response{Content: "```json\n" + mariaJSON + "\n```"},
	}
	engine := extract.New(provider)

	ents, err := engine.Extract(t.Context(), mariaTranscript, "en-US")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ents.Name.Value != "Maria Lopez" {
		t.Errorf("name = %q", ents.Name.Value)
	}
}

func TestExtract_UnparseableIsAtomic(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"prose":         "Sure! Here are the entities I found: Maria Lopez...",
		"missing field": `{"name": {"value": "x", "confidence": 1, "alternatives": []}}`,
		"empty":         "",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			provider := &llmmock.Provider{
				CompleteResponse: &llm.Response{Content: content},
			}
			ents, err := extract.New(provider).Extract(t.Context(), "some transcript", "en-US")
			if !errors.Is(err, extract.ErrUnparseable) {
				t.Fatalf("err = %v, want ErrUnparseable", err)
			}
			if ents != nil {
				t.Error("got partial entities alongside an error")
			}
		})
	}
}

func TestExtract_ProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("rate limited")
	provider := &llmmock.Provider{CompleteErr: wantErr}

	_, err := extract.New(provider).Extract(t.Context(), "some transcript", "en-US")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped provider error", err)
	}
}

func TestExtract_EmptyTranscript(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	if _, err := extract.New(provider).Extract(t.Context(), "   ", "en-US"); err == nil {
		t.Fatal("Extract should reject an empty transcript")
	}
	if provider.CompleteCallCount() != 0 {
		t.Error("provider was called for an empty transcript")
	}
}

func TestExtract_MissingFieldsStayEmpty(t *testing.T) {
	t.Parallel()

	content := `{
	  "name": {"value": "Bob", "confidence": 0.9, "alternatives": []},
	  "phone": {"value": "", "confidence": 0, "alternatives": []},
	  "email": {"value": "", "confidence": 0, "alternatives": []},
	  "project": {"value": "deck repair", "confidence": 0.7, "alternatives": []},
	  "budget": {"value": "", "confidence": 0, "alternatives": []},
	  "urgency": {"value": "", "confidence": 0, "alternatives": []},
	  "notes": "mentioned a neighbour referral"
	}`
	provider := &llmmock.Provider{CompleteResponse: &llm.Response{Content: content}}

	ents, err := extract.New(provider).Extract(t.Context(), "met Bob about deck repair", "en-US")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ents.Phone.Value != "" || ents.Phone.Confidence != 0 {
		t.Errorf("unmentioned phone = %+v, want empty at 0", ents.Phone)
	}
	if ents.Notes != "mentioned a neighbour referral" {
		t.Errorf("notes = %q", ents.Notes)
	}
}

func TestExtract_UnscoredValueGetsConservativeDefault(t *testing.T) {
	t.Parallel()

	content := `{
	  "name": {"value": "Bob", "confidence": 0, "alternatives": []},
	  "phone": {"value": "", "confidence": 0, "alternatives": []},
	  "email": {"value": "", "confidence": 0, "alternatives": []},
	  "project": {"value": "", "confidence": 0, "alternatives": []},
	  "budget": {"value": "", "confidence": 0, "alternatives": []},
	  "urgency": {"value": "", "confidence": 0, "alternatives": []},
	  "notes": ""
	}`
	provider := &llmmock.Provider{CompleteResponse: &llm.Response{Content: content}}

	ents, err := extract.New(provider).Extract(t.Context(), "met Bob", "en-US")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ents.Name.Confidence != 0.5 {
		t.Errorf("unscored name confidence = %v, want 0.5", ents.Name.Confidence)
	}
}

func TestExtract_ConfidenceClamped(t *testing.T) {
	t.Parallel()

	content := `{
	  "name": {"value": "Bob", "confidence": 1.8, "alternatives": []},
	  "phone": {"value": "", "confidence": -2, "alternatives": []},
	  "email": {"value": "", "confidence": 0, "alternatives": []},
	  "project": {"value": "", "confidence": 0, "alternatives": []},
	  "budget": {"value": "", "confidence": 0, "alternatives": []},
	  "urgency": {"value": "", "confidence": 0, "alternatives": []},
	  "notes": ""
	}`
	provider := &llmmock.Provider{CompleteResponse: &llm.Response{Content: content}}

	ents, err := extract.New(provider).Extract(t.Context(), "met Bob", "en-US")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ents.Name.Confidence != 1 {
		t.Errorf("name confidence = %v, want clamp to 1", ents.Name.Confidence)
	}
	if ents.Phone.Confidence != 0 {
		t.Errorf("phone confidence = %v, want clamp to 0", ents.Phone.Confidence)
	}
}

func TestExtract_LanguageInPrompt(t *testing.T) {
	t.Parallel()

	var gotPrompt string
	provider := &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.Request) (*llm.Response, error) {
			gotPrompt = req.Prompt
			return &llm.Response{Content: mariaJSON}, nil
		},
	}

	if _, err := extract.New(provider).Extract(t.Context(), "hola", "es-ES"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(gotPrompt, "Transcript language: es-ES") {
		t.Errorf("prompt %q does not mention the language", gotPrompt)
	}
}
