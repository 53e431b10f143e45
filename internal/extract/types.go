// Package extract turns a finished dictation transcript into structured lead
// fields using an LLM, with per-field confidence scores and alternative
// readings for the validation screen.
package extract

import (
	"slices"

	"github.com/voxlead/voxlead/pkg/provider/stt"
)

// Field names, in the order the validation screen presents them.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldEmail   = "email"
	FieldProject = "project"
	FieldBudget  = "budget"
	FieldUrgency = "urgency"
)

// RequiredFields are the fields a lead cannot be committed without.
var RequiredFields = []string{FieldName, FieldPhone, FieldEmail, FieldProject}

// IsRequired reports whether field must meet the confidence threshold before
// commit.
func IsRequired(field string) bool {
	return slices.Contains(RequiredFields, field)
}

// Entity is one extracted lead field.
type Entity struct {
	// Value is the extracted text. Empty means the field was not heard.
	Value string

	// Confidence is the extraction confidence in [0, 1]. A manual edit on
	// the validation screen raises it to 1.0.
	Confidence float64

	// Alternatives are other plausible readings, most likely first. The
	// validation screen offers them when Confidence is low.
	Alternatives []string
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Alternatives = slices.Clone(e.Alternatives)
	return &cp
}

// Entities is the full set of lead fields extracted from one transcript.
// Field pointers are nil only before extraction; Extract always populates
// all six, leaving Value empty for fields the transcript never mentioned.
type Entities struct {
	Name    *Entity
	Phone   *Entity
	Email   *Entity
	Project *Entity
	Budget  *Entity
	Urgency *Entity

	// Notes is a free-text remainder: anything the caller said that did not
	// map to a structured field.
	Notes string
}

// Field returns the entity for the named field, or nil for an unknown name.
func (e *Entities) Field(name string) *Entity {
	switch name {
	case FieldName:
		return e.Name
	case FieldPhone:
		return e.Phone
	case FieldEmail:
		return e.Email
	case FieldProject:
		return e.Project
	case FieldBudget:
		return e.Budget
	case FieldUrgency:
		return e.Urgency
	}
	return nil
}

// Fields returns all six entities keyed by field name. Nil entries are
// included so callers can iterate the full field set.
func (e *Entities) Fields() map[string]*Entity {
	return map[string]*Entity{
		FieldName:    e.Name,
		FieldPhone:   e.Phone,
		FieldEmail:   e.Email,
		FieldProject: e.Project,
		FieldBudget:  e.Budget,
		FieldUrgency: e.Urgency,
	}
}

// Clone returns a deep copy of the entity set.
func (e *Entities) Clone() *Entities {
	if e == nil {
		return nil
	}
	return &Entities{
		Name:    e.Name.Clone(),
		Phone:   e.Phone.Clone(),
		Email:   e.Email.Clone(),
		Project: e.Project.Clone(),
		Budget:  e.Budget.Clone(),
		Urgency: e.Urgency.Clone(),
		Notes:   e.Notes,
	}
}

// normalized builds an Entity from raw LLM output, clamping confidence and
// dropping alternatives that duplicate the value.
func normalized(value string, confidence float64, alternatives []string) *Entity {
	alts := make([]string, 0, len(alternatives))
	for _, a := range alternatives {
		if a != "" && a != value && !slices.Contains(alts, a) {
			alts = append(alts, a)
		}
	}
	if len(alts) == 0 {
		alts = nil
	}
	return &Entity{
		Value:        value,
		Confidence:   stt.ClampConfidence(confidence),
		Alternatives: alts,
	}
}
