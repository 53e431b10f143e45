package lead

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/voxlead/voxlead/internal/extract"
	"github.com/voxlead/voxlead/internal/review"
	"github.com/voxlead/voxlead/pkg/leadstore"
)

// ErrNotCommittable wraps the review report when commit is attempted on an
// entity set that still has blocking fields. The UI disables Save in that
// state; the server-side re-check is the authoritative one.
type ErrNotCommittable struct {
	Report review.Report
}

func (e *ErrNotCommittable) Error() string {
	return fmt.Sprintf("lead: not committable: %s", e.Report.Summary())
}

// Committer performs the final step of the pipeline: re-validate, sanitize,
// and append to the store. It is safe for concurrent use.
type Committer struct {
	store leadstore.Store
	log   *slog.Logger

	mu         sync.RWMutex
	thresholds review.Thresholds
}

// NewCommitter returns a Committer writing to store under the given review
// policy. logger may be nil, in which case slog.Default is used.
func NewCommitter(store leadstore.Store, th review.Thresholds, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: store, thresholds: th, log: logger}
}

// SetThresholds replaces the review policy for subsequent commits.
func (c *Committer) SetThresholds(th review.Thresholds) {
	c.mu.Lock()
	c.thresholds = th
	c.mu.Unlock()
}

// Commit validates the entity set one final time, sanitizes every field,
// and appends the resulting lead. language is the dictation language tag.
//
// On failure nothing is stored and the caller's entity set is untouched, so
// the validation screen can retry without data loss. The returned lead is
// the stored record, including its assigned ID.
func (c *Committer) Commit(ctx context.Context, e *extract.Entities, language string) (*leadstore.Lead, error) {
	c.mu.RLock()
	th := c.thresholds
	c.mu.RUnlock()

	if report := review.Committable(e, th); !report.OK {
		return nil, &ErrNotCommittable{Report: report}
	}

	clean := Sanitize(e)

	l := leadstore.New()
	l.Name = entityValue(clean.Name)
	l.Phone = entityValue(clean.Phone)
	l.Email = entityValue(clean.Email)
	l.Project = entityValue(clean.Project)
	l.Budget = entityValue(clean.Budget)
	l.Urgency = entityValue(clean.Urgency)
	l.Notes = clean.Notes
	l.Tags = leadTags(clean)
	l.Language = language

	if err := c.store.Append(ctx, l); err != nil {
		return nil, fmt.Errorf("lead: append: %w", err)
	}

	c.log.Info("lead committed",
		"lead_id", l.ID,
		"project", l.Project,
		"language", language,
	)
	return l, nil
}

// leadTags derives the intake tag set. Urgency is the one field the sales
// board filters on at intake; the other extractions are proper columns.
func leadTags(e *extract.Entities) []string {
	v := entityValue(e.Urgency)
	if v == "" {
		return nil
	}
	return []string{"urgency:" + strings.ToLower(v)}
}

// entityValue reads an entity value, tolerating nil advisory fields.
func entityValue(e *extract.Entity) string {
	if e == nil {
		return ""
	}
	return e.Value
}
