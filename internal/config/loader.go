package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/voxlead/voxlead/pkg/provider/stt"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"deepgram", "whisper"},
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"audio": {"ws"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	if cfg.Providers.STTFallback != nil {
		validateProviderName("stt", cfg.Providers.STTFallback.Name)
	}
	if cfg.Providers.LLMFallback != nil {
		validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	}

	// Provider availability warnings
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; dictation will not work")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; entity extraction will not work")
	}

	// Capture
	if cfg.Capture.Language != "" && !stt.IsSupportedLanguage(cfg.Capture.Language) {
		errs = append(errs, fmt.Errorf("capture.language %q is not supported; valid values: %v",
			cfg.Capture.Language, stt.SupportedLanguages()))
	}
	if cfg.Capture.TranscriptionTimeout < 0 {
		errs = append(errs, errors.New("capture.transcription_timeout must not be negative"))
	}
	if cfg.Capture.ExtractionTimeout < 0 {
		errs = append(errs, errors.New("capture.extraction_timeout must not be negative"))
	}
	if cfg.Capture.CompleteLinger < 0 {
		errs = append(errs, errors.New("capture.complete_linger must not be negative"))
	}

	// Review thresholds
	req, asst := cfg.Review.RequiredConfidence, cfg.Review.AssistedConfidence
	if req != 0 && (req <= 0 || req > 1) {
		errs = append(errs, fmt.Errorf("review.required_confidence %.2f is out of range (0, 1]", req))
	}
	if asst != 0 && (asst <= 0 || asst > 1) {
		errs = append(errs, fmt.Errorf("review.assisted_confidence %.2f is out of range (0, 1]", asst))
	}
	if req > 0 && asst > 0 && asst < req {
		errs = append(errs, fmt.Errorf("review.assisted_confidence %.2f must not be below review.required_confidence %.2f", asst, req))
	}

	// Store
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, errors.New("store.embedding_dimensions must not be negative"))
	}
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; leads will be held in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
