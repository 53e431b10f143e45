package extract

import (
	"reflect"
	"testing"
)

func ent(value string, confidence float64, alts ...string) *Entity {
	return &Entity{Value: value, Confidence: confidence, Alternatives: alts}
}

func baseEntities() *Entities {
	return &Entities{
		Name:    ent("Maria Lopez", 0.95),
		Phone:   ent("", 0),
		Email:   ent("maria@example.com", 0.85),
		Project: ent("kitchen remodel", 0.9),
		Budget:  ent("", 0),
		Urgency: ent("", 0),
		Notes:   "met at the trade show",
	}
}

func TestMerge_FillsEmptyFields(t *testing.T) {
	t.Parallel()

	update := &Entities{
		Name:    ent("", 0),
		Phone:   ent("555-123-4567", 0.9),
		Email:   ent("", 0),
		Project: ent("", 0),
		Budget:  ent("50k", 0.7),
		Urgency: ent("", 0),
	}

	got := Merge(baseEntities(), update)

	if got.Phone.Value != "555-123-4567" || got.Phone.Confidence != 0.9 {
		t.Errorf("phone = %+v, want filled from update", got.Phone)
	}
	if got.Budget.Value != "50k" {
		t.Errorf("budget = %+v, want filled from update", got.Budget)
	}
	// Untouched fields survive unchanged.
	if got.Name.Value != "Maria Lopez" || got.Name.Confidence != 0.95 {
		t.Errorf("name = %+v, want unchanged", got.Name)
	}
}

func TestMerge_RedictatedFieldOverwritesKeepingOldAsAlternative(t *testing.T) {
	t.Parallel()

	base := baseEntities()
	base.Email = ent("maria@exmple.com", 0.5)
	update := &Entities{
		Name:    ent("", 0),
		Phone:   ent("", 0),
		Email:   ent("maria@example.com", 0.9),
		Project: ent("", 0),
		Budget:  ent("", 0),
		Urgency: ent("", 0),
	}

	got := Merge(base, update)

	if got.Email.Value != "maria@example.com" {
		t.Errorf("email = %q, want second-pass reading", got.Email.Value)
	}
	if !reflect.DeepEqual(got.Email.Alternatives, []string{"maria@exmple.com"}) {
		t.Errorf("email alternatives = %v, want old value kept", got.Email.Alternatives)
	}
}

func TestMerge_RedictatedFieldOverwritesAtLowerConfidence(t *testing.T) {
	t.Parallel()

	// The user corrected themselves on the second pass. The new reading wins
	// even though the transcriber scored it worse than the first one.
	update := &Entities{
		Name:    ent("Mario Gomez", 0.6),
		Phone:   ent("", 0),
		Email:   ent("", 0),
		Project: ent("", 0),
		Budget:  ent("", 0),
		Urgency: ent("", 0),
	}

	got := Merge(baseEntities(), update)

	if got.Name.Value != "Mario Gomez" {
		t.Errorf("name = %q, want second-pass Mario Gomez", got.Name.Value)
	}
	if got.Name.Confidence != 0.6 {
		t.Errorf("name confidence = %v, want the second pass's 0.6", got.Name.Confidence)
	}
	if !reflect.DeepEqual(got.Name.Alternatives, []string{"Maria Lopez"}) {
		t.Errorf("name alternatives = %v, want displaced value on top", got.Name.Alternatives)
	}
}

func TestMerge_SameValueKeepsBetterScore(t *testing.T) {
	t.Parallel()

	update := &Entities{
		Name:    ent("Maria Lopez", 0.6),
		Phone:   ent("", 0),
		Email:   ent("maria@example.com", 0.99),
		Project: ent("", 0),
		Budget:  ent("", 0),
		Urgency: ent("", 0),
	}

	got := Merge(baseEntities(), update)

	if got.Name.Confidence != 0.95 {
		t.Errorf("name confidence = %v, want 0.95 (base was higher)", got.Name.Confidence)
	}
	if got.Email.Confidence != 0.99 {
		t.Errorf("email confidence = %v, want 0.99 (update was higher)", got.Email.Confidence)
	}
}

func TestMerge_NotesAppend(t *testing.T) {
	t.Parallel()

	update := baseEntities().Clone()
	update.Notes = "prefers morning calls"

	got := Merge(baseEntities(), update)
	want := "met at the trade show\nprefers morning calls"
	if got.Notes != want {
		t.Errorf("notes = %q, want %q", got.Notes, want)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	base := baseEntities()
	update := &Entities{
		Name:    ent("Mariah Lopes", 0.99),
		Phone:   ent("", 0),
		Email:   ent("", 0),
		Project: ent("", 0),
		Budget:  ent("", 0),
		Urgency: ent("", 0),
	}

	_ = Merge(base, update)

	if base.Name.Value != "Maria Lopez" || len(base.Name.Alternatives) != 0 {
		t.Errorf("base mutated: %+v", base.Name)
	}
	if update.Name.Value != "Mariah Lopes" {
		t.Errorf("update mutated: %+v", update.Name)
	}
}

func TestMerge_NilInputs(t *testing.T) {
	t.Parallel()

	base := baseEntities()
	if got := Merge(nil, base); got.Name.Value != "Maria Lopez" {
		t.Errorf("Merge(nil, base) lost data: %+v", got.Name)
	}
	if got := Merge(base, nil); got.Name.Value != "Maria Lopez" {
		t.Errorf("Merge(base, nil) lost data: %+v", got.Name)
	}
}
