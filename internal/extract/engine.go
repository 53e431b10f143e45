package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	llm "github.com/voxlead/voxlead/pkg/provider/llm"
	"github.com/voxlead/voxlead/pkg/provider/stt"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1024
)

// ErrUnparseable is returned when the model reply cannot be decoded into the
// expected JSON structure. Extraction is atomic: the caller gets either a
// complete entity set or an error, never a half-filled one.
var ErrUnparseable = errors.New("extract: model response is not valid entity JSON")

// systemPrompt instructs the model to pull lead fields out of a spoken-word
// transcript. The reply must be bare JSON so it can be parsed strictly.
const systemPrompt = `You are an entity extraction assistant for a construction sales team.
The input is a voice transcript of a salesperson describing a new lead right after a customer conversation.

Extract these fields:
- name: the customer's full name
- phone: the customer's phone number, digits as spoken
- email: the customer's email address
- project: what work the customer wants done (e.g., "kitchen remodel")
- budget: any budget amount or range mentioned, verbatim
- urgency: any time pressure mentioned (e.g., "ASAP", "next spring")

Rules:
- Use only information present in the transcript. Never invent values.
- A field the transcript does not mention gets an empty string value and confidence 0.
- Spoken email addresses use words like "at" and "dot"; render them in standard form.
- For each field report a confidence between 0.0 and 1.0 reflecting how clearly the transcript states it.
- When the transcript is ambiguous, put the most likely reading in value and other plausible readings in alternatives.
- Put anything relevant that fits no field into notes, condensed.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "name": {"value": "", "confidence": 0.0, "alternatives": []},
  "phone": {"value": "", "confidence": 0.0, "alternatives": []},
  "email": {"value": "", "confidence": 0.0, "alternatives": []},
  "project": {"value": "", "confidence": 0.0, "alternatives": []},
  "budget": {"value": "", "confidence": 0.0, "alternatives": []},
  "urgency": {"value": "", "confidence": 0.0, "alternatives": []},
  "notes": ""
}`

// wireEntity is the per-field JSON structure the model returns.
type wireEntity struct {
	Value        string   `json:"value"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives"`
}

// wireResponse is the full expected model reply.
type wireResponse struct {
	Name    *wireEntity `json:"name"`
	Phone   *wireEntity `json:"phone"`
	Email   *wireEntity `json:"email"`
	Project *wireEntity `json:"project"`
	Budget  *wireEntity `json:"budget"`
	Urgency *wireEntity `json:"urgency"`
	Notes   string      `json:"notes"`
}

// Extractor is the interface the capture pipeline depends on. [Engine] is
// the production implementation.
type Extractor interface {
	Extract(ctx context.Context, transcript, language string) (*Entities, error)
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic extractions. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(e *Engine) {
		e.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		e.maxTokens = n
	}
}

// Engine extracts lead entities from finished transcripts using an
// [llm.Provider]. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model for extraction, construct the [llm.Provider] with that model
// configured.
type Engine struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// New returns a new [Engine] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract sends the transcript to the model and returns the structured
// entity set. language is the BCP-47 tag the transcript was dictated in; it
// is passed as context so names and numbers are read in the right locale.
//
// Extraction is all-or-nothing: on any provider or parse failure the caller
// gets a nil entity set and a non-nil error, and the transcript remains the
// source of truth for a retry.
func (e *Engine) Extract(ctx context.Context, transcript, language string) (*Entities, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("extract: transcript is empty")
	}

	prompt := transcript
	if language != "" {
		prompt = fmt.Sprintf("Transcript language: %s\n\nTranscript:\n%s", language, transcript)
	}

	resp, err := e.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: complete: %w", err)
	}

	ents, err := parseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	refine(ents)
	return ents, nil
}

// parseResponse decodes the model reply into an Entities value. Markdown
// code fences are stripped first; anything else malformed is an error.
func parseResponse(content string) (*Entities, error) {
	cleaned := stripMarkdown(content)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()

	var r wireResponse
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	for name, we := range map[string]*wireEntity{
		FieldName: r.Name, FieldPhone: r.Phone, FieldEmail: r.Email,
		FieldProject: r.Project, FieldBudget: r.Budget, FieldUrgency: r.Urgency,
	} {
		if we == nil {
			return nil, fmt.Errorf("%w: missing field %q", ErrUnparseable, name)
		}
	}

	return &Entities{
		Name:    normalized(r.Name.Value, r.Name.Confidence, r.Name.Alternatives),
		Phone:   normalized(r.Phone.Value, r.Phone.Confidence, r.Phone.Alternatives),
		Email:   normalized(r.Email.Value, r.Email.Confidence, r.Email.Alternatives),
		Project: normalized(r.Project.Value, r.Project.Confidence, r.Project.Alternatives),
		Budget:  normalized(r.Budget.Value, r.Budget.Confidence, r.Budget.Alternatives),
		Urgency: normalized(r.Urgency.Value, r.Urgency.Confidence, r.Urgency.Alternatives),
		Notes:   strings.TrimSpace(r.Notes),
	}, nil
}

// refine applies deterministic post-processing the model cannot be trusted
// with: phone formatting and phonetic ranking of name alternatives.
func refine(e *Entities) {
	if e.Phone.Value != "" {
		norm, changed := NormalizePhone(e.Phone.Value)
		if changed {
			// Keep the raw reading reachable from the validation screen.
			e.Phone.Alternatives = prependUnique(e.Phone.Alternatives, e.Phone.Value)
			e.Phone.Value = norm
		}
	}

	if e.Name.Value != "" && e.Name.Confidence < highNameConfidence {
		e.Name.Alternatives = rankNameAlternatives(e.Name.Value, e.Name.Alternatives)
	}

	// Unscored fields inherit the conservative transcript default rather
	// than looking certain.
	for _, ent := range e.Fields() {
		if ent.Value != "" && ent.Confidence == 0 {
			ent.Confidence = stt.DefaultConfidence
		}
	}
}

// prependUnique puts v at the front of list, removing any later duplicate.
func prependUnique(list []string, v string) []string {
	out := []string{v}
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// Ensure Engine implements Extractor at compile time.
var _ Extractor = (*Engine)(nil)

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
