package lead

import (
	"errors"
	"testing"

	"github.com/voxlead/voxlead/internal/extract"
	"github.com/voxlead/voxlead/internal/review"
	storemock "github.com/voxlead/voxlead/pkg/leadstore/mock"
)

func readyEntities() *extract.Entities {
	return &extract.Entities{
		Name:    &extract.Entity{Value: " Maria  Lopez ", Confidence: 0.95},
		Phone:   &extract.Entity{Value: "555-123-4567", Confidence: 0.9},
		Email:   &extract.Entity{Value: "maria@example.com", Confidence: 0.85},
		Project: &extract.Entity{Value: "kitchen remodel", Confidence: 0.92},
		Budget:  &extract.Entity{Value: "50k", Confidence: 0.6},
		Urgency: &extract.Entity{},
		Notes:   "met at the trade show",
	}
}

func TestCommit_StoresSanitizedLead(t *testing.T) {
	t.Parallel()

	store := &storemock.Store{}
	c := NewCommitter(store, review.DefaultThresholds(), nil)

	got, err := c.Commit(t.Context(), readyEntities(), "en-US")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stored := store.Last()
	if stored == nil {
		t.Fatal("nothing appended")
	}
	if stored.Name != "Maria Lopez" {
		t.Errorf("stored name = %q, want sanitized", stored.Name)
	}
	if stored.SourceTag != "voice_capture" {
		t.Errorf("source tag = %q", stored.SourceTag)
	}
	if stored.Status != "lead" || stored.LifetimeValue != 0 {
		t.Errorf("status/ltv = %q/%v", stored.Status, stored.LifetimeValue)
	}
	if stored.Language != "en-US" {
		t.Errorf("language = %q", stored.Language)
	}
	if got.ID != stored.ID {
		t.Error("returned lead is not the stored record")
	}
}

func TestCommit_DerivesUrgencyTag(t *testing.T) {
	t.Parallel()

	store := &storemock.Store{}
	c := NewCommitter(store, review.DefaultThresholds(), nil)

	e := readyEntities()
	e.Urgency = &extract.Entity{Value: "High", Confidence: 0.6}

	if _, err := c.Commit(t.Context(), e, "en-US"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stored := store.Last()
	if len(stored.Tags) != 1 || stored.Tags[0] != "urgency:high" {
		t.Errorf("tags = %v, want [urgency:high]", stored.Tags)
	}
}

func TestCommit_NoUrgencyMeansNoTags(t *testing.T) {
	t.Parallel()

	store := &storemock.Store{}
	c := NewCommitter(store, review.DefaultThresholds(), nil)

	if _, err := c.Commit(t.Context(), readyEntities(), "en-US"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tags := store.Last().Tags; len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestCommit_RevalidatesBeforeStore(t *testing.T) {
	t.Parallel()

	store := &storemock.Store{}
	c := NewCommitter(store, review.DefaultThresholds(), nil)

	e := readyEntities()
	e.Phone.Confidence = 0.4

	_, err := c.Commit(t.Context(), e, "en-US")
	var notCommittable *ErrNotCommittable
	if !errors.As(err, &notCommittable) {
		t.Fatalf("err = %v, want ErrNotCommittable", err)
	}
	if store.AppendCallCount() != 0 {
		t.Error("store touched despite failed validation")
	}
}

func TestCommit_StoreFailureRetainsEntities(t *testing.T) {
	t.Parallel()

	store := &storemock.Store{AppendErr: errors.New("connection refused")}
	c := NewCommitter(store, review.DefaultThresholds(), nil)

	e := readyEntities()
	_, err := c.Commit(t.Context(), e, "en-US")
	if err == nil {
		t.Fatal("Commit should surface the store error")
	}

	// The caller's entity set survives untouched for a retry.
	if e.Name.Value != " Maria  Lopez " || e.Name.Confidence != 0.95 {
		t.Errorf("entities mutated on failed commit: %+v", e.Name)
	}

	// Retry after the store recovers.
	store.AppendErr = nil
	if _, err := c.Commit(t.Context(), e, "en-US"); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
}
