// Package leadstore defines the persistence boundary for committed leads.
//
// A [Lead] is the final, validated output of the capture pipeline: sanitized
// field values plus capture provenance. The [Store] interface is
// append-oriented; leads are written once at commit and never updated by
// this system (downstream CRM tooling owns the record afterwards).
//
// Implementations: [MemStore] (in-memory, for tests and dev),
// postgres.Store (durable, with similar-lead lookup), and mock.Store.
package leadstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSourceTag marks leads that came in through voice capture.
const DefaultSourceTag = "voice_capture"

// DefaultStatus is the pipeline stage a freshly captured lead starts in.
const DefaultStatus = "lead"

// Lead is one committed sales lead.
type Lead struct {
	// ID is assigned at commit time.
	ID uuid.UUID `json:"id"`

	// Contact and project fields, sanitized before commit.
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Project string `json:"project"`
	Budget  string `json:"budget,omitempty"`
	Urgency string `json:"urgency,omitempty"`
	Notes   string `json:"notes,omitempty"`

	// Tags are intake labels the sales board filters on, derived from the
	// extraction (e.g. "urgency:high").
	Tags []string `json:"tags,omitempty"`

	// Language is the BCP-47 tag the lead was dictated in.
	Language string `json:"language,omitempty"`

	// SourceTag records how the lead entered the system. Always
	// [DefaultSourceTag] for this pipeline.
	SourceTag string `json:"source_tag"`

	// LifetimeValue starts at zero; sales tooling maintains it later.
	LifetimeValue float64 `json:"lifetime_value"`

	// Status starts at [DefaultStatus].
	Status string `json:"status"`

	// CreatedAt is the commit timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// New returns a Lead with identity and provenance fields populated: a fresh
// ID, the voice-capture source tag, zero lifetime value, lead status, and
// the current time.
func New() *Lead {
	return &Lead{
		ID:        uuid.New(),
		SourceTag: DefaultSourceTag,
		Status:    DefaultStatus,
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists committed leads.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append durably stores the lead. The lead's ID must already be set.
	// Append never mutates the lead beyond bookkeeping timestamps.
	Append(ctx context.Context, lead *Lead) error
}
