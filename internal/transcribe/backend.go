// Package transcribe implements the Transcriber (TR) backend abstraction
// of spec.md §4.4: TR is polymorphic over {transcribe(audio_path) ->
// (text, duration, metadata)}. Three concrete adapters are provided:
// local in-process, local subprocess CLI, and remote WebUI (Gradio).
// Selection is driven by config.TranscriptionConfig.Method.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// Segment is one reconstructed span of a transcript, carrying only the
// fields spec.md §4.4 permits in the execution envelope: no interpretive
// labels (no summary, sentiment, intent, emotion, diagnosis).
type Segment struct {
	Text       string  `json:"text"`
	StartSec   float64 `json:"start"`
	EndSec     float64 `json:"end"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is the outcome of a single transcription.
type Result struct {
	Text     string
	Duration time.Duration
	Segments []Segment
	Model    string
	Language string
}

// Backend is the capability set spec.md §4.4 calls "transcribe(audio_path)
// -> (text, duration_seconds, metadata)". A nil error with empty Text is
// treated by the caller as a failure (non-null but empty result ==
// failure, per the WebUI failure taxonomy, applied uniformly).
type Backend interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
	// Label identifies the adapter for provenance records and logging.
	Label() string
}

// NewBackend resolves a Backend from a TranscriptionConfig, following the
// `resolved = DEFAULTS ⊕ config ⊕ caller_overrides` selection rule
// (spec.md §4.4). govCfg feeds the WebUI adapter's outbound FixedRateLimiter
// (spec.md §4.2 "serialises outbound calls ... to at most one per
// configured interval").
func NewBackend(cfg config.TranscriptionConfig, govCfg config.GovernorConfig, log logging.Logger) (Backend, error) {
	if log == nil {
		log = logging.Global()
	}
	switch cfg.Method {
	case config.MethodPythonWhisper:
		// Local-in-process: a Whisper-family model loaded once and called
		// synchronously, matching spec.md §4.4's first backend variant. No
		// Go Whisper binding exists anywhere in the example pack (see
		// local.go's doc comment), so this method is rejected here, at
		// startup, rather than being allowed to silently skip-record every
		// transcribed file once TR starts draining QT.
		return nil, fmt.Errorf("transcribe: method %q has no local Whisper binding available in this build; use %q or %q instead",
			cfg.Method, config.MethodCTranslate2, config.MethodWebUI)
	case config.MethodCTranslate2, config.MethodCTranslate2Nonpythonic:
		// Local-subprocess-CLI: spawns the whisper-ctranslate2 tool named in
		// spec.md §4.4's second backend variant.
		return newSubprocessBackend(cfg, log), nil
	case config.MethodWebUI:
		return newWebUIBackend(cfg, govCfg, log), nil
	case "":
		return newSubprocessBackend(cfg, log), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown method %q", cfg.Method)
	}
}
