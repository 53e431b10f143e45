// Package lead turns a validated entity set into a committed lead record:
// field sanitization, the final commit-readiness re-check, and the append to
// the lead store.
package lead

import (
	"strings"
	"unicode"

	"github.com/voxlead/voxlead/internal/extract"
)

// Per-field length bounds, in runes. Values beyond the bound are truncated,
// never rejected; a too-long dictation is still a lead.
const (
	MaxNameLen    = 200
	MaxEmailLen   = 200
	MaxPhoneLen   = 50
	MaxProjectLen = 500
	MaxBudgetLen  = 200
	MaxUrgencyLen = 50
	MaxNotesLen   = 1000
)

// fieldBounds maps field names to their rune limits.
var fieldBounds = map[string]int{
	extract.FieldName:    MaxNameLen,
	extract.FieldPhone:   MaxPhoneLen,
	extract.FieldEmail:   MaxEmailLen,
	extract.FieldProject: MaxProjectLen,
	extract.FieldBudget:  MaxBudgetLen,
	extract.FieldUrgency: MaxUrgencyLen,
}

// SanitizeField cleans one field value: control characters are stripped,
// interior whitespace runs collapse to single spaces, surrounding whitespace
// is trimmed, and the result is truncated to the field's rune bound.
// Unknown field names sanitize with no length bound.
//
// Sanitization is idempotent: SanitizeField(f, SanitizeField(f, v)) equals
// SanitizeField(f, v).
func SanitizeField(field, value string) string {
	bound := fieldBounds[field]
	return sanitize(value, bound)
}

// SanitizeNotes cleans the free-text notes field. Unlike structured fields,
// newlines are preserved so dictated notes keep their shape.
func SanitizeNotes(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r == '\n' || (!unicode.IsControl(r) && r != unicode.ReplacementChar) {
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	return truncate(cleaned, MaxNotesLen)
}

// Sanitize returns a copy of the entity set with every field value and the
// notes cleaned. Confidence scores and alternatives are untouched; the
// validation screen already showed the user the raw readings.
func Sanitize(e *extract.Entities) *extract.Entities {
	out := e.Clone()
	for name, ent := range out.Fields() {
		if ent != nil {
			ent.Value = SanitizeField(name, ent.Value)
		}
	}
	out.Notes = SanitizeNotes(out.Notes)
	return out
}

// sanitize strips control characters, collapses whitespace, trims, and
// truncates to bound runes (0 means unbounded).
func sanitize(value string, bound int) string {
	var b strings.Builder
	b.Grow(len(value))
	space := false
	for _, r := range value {
		switch {
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			// dropped
		case unicode.IsSpace(r):
			space = true
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return truncate(b.String(), bound)
}

// truncate cuts s to at most bound runes. Trailing space left by the cut is
// trimmed so truncation stays idempotent.
func truncate(s string, bound int) string {
	if bound <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= bound {
		return s
	}
	return strings.TrimRightFunc(string(runes[:bound]), unicode.IsSpace)
}
