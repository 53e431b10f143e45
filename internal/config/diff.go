package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// store changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ThresholdsChanged is true when either review confidence value changed.
	// Applies to the next capture; a validation screen already open keeps
	// the thresholds it started with.
	ThresholdsChanged bool
	NewReview         ReviewConfig

	// LanguageChanged is true when the default dictation language changed.
	LanguageChanged bool
	NewLanguage     string

	// TimingChanged is true when any capture timeout or the complete linger
	// changed.
	TimingChanged bool
	NewCapture    CaptureConfig
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ThresholdsChanged || d.LanguageChanged || d.TimingChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Review != new.Review {
		d.ThresholdsChanged = true
		d.NewReview = new.Review
	}

	if old.Capture.Language != new.Capture.Language {
		d.LanguageChanged = true
		d.NewLanguage = new.Capture.Language
	}

	if old.Capture.TranscriptionTimeout != new.Capture.TranscriptionTimeout ||
		old.Capture.ExtractionTimeout != new.Capture.ExtractionTimeout ||
		old.Capture.CompleteLinger != new.Capture.CompleteLinger {
		d.TimingChanged = true
		d.NewCapture = new.Capture
	}

	return d
}
