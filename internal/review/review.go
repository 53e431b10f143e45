// Package review implements the human validation step between extraction and
// lead commit: confidence thresholds, manual corrections, and
// alternative-reading selection.
//
// Confidence semantics are fixed by policy, not by the model:
//
//   - a manual edit means the human typed the value, so confidence is 1.0
//   - picking an offered alternative is assisted, so confidence is 0.85
//   - required fields (name, phone, email, project) must clear the required
//     threshold before the lead can be committed; budget and urgency are
//     advisory and never block
package review

import (
	"fmt"
	"strings"

	"github.com/voxlead/voxlead/internal/extract"
)

// Default thresholds. Required is the floor a required field must clear
// before commit; Assisted is the score assigned when the user picks an
// offered alternative instead of typing.
const (
	DefaultRequiredConfidence = 0.7
	AssistedConfidence        = 0.85

	// EditedConfidence is assigned when the user types a value themselves.
	EditedConfidence = 1.0
)

// Thresholds carries the review policy. The zero value is invalid; use
// DefaultThresholds or build one from config.
type Thresholds struct {
	// Required is the minimum confidence a required field needs for commit.
	Required float64

	// Assisted is the confidence assigned to an alternative selection.
	Assisted float64
}

// DefaultThresholds returns the standard review policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Required: DefaultRequiredConfidence,
		Assisted: AssistedConfidence,
	}
}

// FieldIssue describes one field blocking commit.
type FieldIssue struct {
	// Field is the field name ("name", "phone", ...).
	Field string

	// Confidence is the field's current score. Zero for a missing value.
	Confidence float64

	// Missing is true when the field has no value at all; false means the
	// value is present but below threshold.
	Missing bool
}

func (i FieldIssue) String() string {
	if i.Missing {
		return fmt.Sprintf("%s: missing", i.Field)
	}
	return fmt.Sprintf("%s: confidence %.2f below threshold", i.Field, i.Confidence)
}

// Report is the outcome of a commit-readiness check.
type Report struct {
	// OK is true when every required field has a value above threshold.
	OK bool

	// Failing lists the required fields blocking commit, in presentation
	// order. Empty when OK.
	Failing []FieldIssue
}

// Summary renders the failing fields as a single line for logs and the
// validation banner.
func (r Report) Summary() string {
	if r.OK {
		return "ready to commit"
	}
	parts := make([]string, len(r.Failing))
	for i, f := range r.Failing {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// Committable checks whether the entity set may be committed as a lead under
// the given thresholds. Advisory fields (budget, urgency) never appear in
// the report.
func Committable(e *extract.Entities, th Thresholds) Report {
	var failing []FieldIssue
	for _, field := range extract.RequiredFields {
		ent := e.Field(field)
		switch {
		case ent == nil || ent.Value == "":
			failing = append(failing, FieldIssue{Field: field, Missing: true})
		case ent.Confidence < th.Required:
			failing = append(failing, FieldIssue{Field: field, Confidence: ent.Confidence})
		}
	}
	return Report{OK: len(failing) == 0, Failing: failing}
}

// Edit applies a manual correction to the entity. The typed value replaces
// the current one at full confidence; the previous value joins the
// alternatives so the user can back out of a mistype.
func Edit(ent *extract.Entity, value string) {
	if ent == nil {
		return
	}
	value = strings.TrimSpace(value)
	if prev := ent.Value; prev != "" && prev != value {
		ent.Alternatives = appendUnique(ent.Alternatives, prev)
	}
	ent.Value = value
	ent.Confidence = EditedConfidence
	ent.Alternatives = removeValue(ent.Alternatives, value)
}

// SelectAlternative promotes the alternative at index to the field value at
// assisted confidence. The displaced value takes the alternative's slot so
// the list never shrinks. Returns an error for an out-of-range index.
func SelectAlternative(ent *extract.Entity, index int, th Thresholds) error {
	if ent == nil {
		return fmt.Errorf("review: no entity to select on")
	}
	if index < 0 || index >= len(ent.Alternatives) {
		return fmt.Errorf("review: alternative index %d out of range (have %d)", index, len(ent.Alternatives))
	}

	chosen := ent.Alternatives[index]
	ent.Alternatives[index] = ent.Value
	ent.Value = chosen
	ent.Confidence = th.Assisted
	return nil
}

// ShowAlternatives reports whether the validation screen should surface the
// alternatives list for this field: there must be alternatives, and the
// current value must not already clear the required threshold comfortably.
func ShowAlternatives(ent *extract.Entity, th Thresholds) bool {
	if ent == nil || len(ent.Alternatives) == 0 {
		return false
	}
	return ent.Confidence < th.Assisted
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func removeValue(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
