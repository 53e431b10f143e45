package config_test

import (
	"testing"
	"time"

	"github.com/voxlead/voxlead/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.LogLevel = config.LogInfo
	cfg.Capture.Language = "en-US"
	cfg.Capture.TranscriptionTimeout = 10 * time.Second
	cfg.Review.RequiredConfidence = 0.7
	cfg.Review.AssistedConfidence = 0.85
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	d := config.Diff(old, updated)
	if d.Any() {
		t.Errorf("Diff of identical configs = %+v, want none", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Server.LogLevel = config.LogDebug
	d := config.Diff(old, updated)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff = %+v, want log level change to debug", d)
	}
	if d.ThresholdsChanged || d.LanguageChanged || d.TimingChanged {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_Thresholds(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Review.AssistedConfidence = 0.9
	d := config.Diff(old, updated)
	if !d.ThresholdsChanged || d.NewReview.AssistedConfidence != 0.9 {
		t.Errorf("Diff = %+v, want threshold change", d)
	}
}

func TestDiff_Language(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Capture.Language = "pt-BR"
	d := config.Diff(old, updated)
	if !d.LanguageChanged || d.NewLanguage != "pt-BR" {
		t.Errorf("Diff = %+v, want language change to pt-BR", d)
	}
}

func TestDiff_Timing(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Capture.CompleteLinger = 5 * time.Second
	d := config.Diff(old, updated)
	if !d.TimingChanged || d.NewCapture.CompleteLinger != 5*time.Second {
		t.Errorf("Diff = %+v, want timing change", d)
	}
	if !d.Any() {
		t.Error("Any() = false with timing change present")
	}
}

func TestDiff_IgnoresProviderChanges(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Providers.LLM.Name = "anthropic"
	updated.Store.PostgresDSN = "postgres://elsewhere/voxlead"
	d := config.Diff(old, updated)
	if d.Any() {
		t.Errorf("Diff = %+v, provider and store changes should not be hot-reloadable", d)
	}
}
