package transcribe

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// localBackend loads a Whisper-family model once, on the first Transcribe
// call, and calls it synchronously (spec.md §4.4 "Local-in-process"). Grounded on
// internal/birdnet/birdnet.go's NewBirdNET: a single mutex-guarded
// interpreter handle, initialized once, reused across calls. go-tflite
// stands in as the loaded model handle since no dedicated local-Whisper Go
// binding exists anywhere in the example pack; the Backend interface lets
// a real binding replace it without touching TR callers.
//
// readOutputTensor never decodes real text (there is no binding behind it
// yet), so NewBackend rejects config.MethodPythonWhisper outright instead
// of constructing this type and letting every item fail one at a time.
// This file stays as the adapted load-once/invoke/read-output scaffold a
// real binding would slot into.
type localBackend struct {
	mu          sync.Mutex
	interpreter *tflite.Interpreter
	modelPath   string
	log         logging.Logger
}

func newLocalBackend(cfg config.TranscriptionConfig, log logging.Logger) *localBackend {
	return &localBackend{modelPath: cfg.LocalModelPath, log: log.Module("transcribe.local")}
}

// ensureLoaded lazily initializes the interpreter on first use, mirroring
// initializeModel's load-once discipline but deferred to first call so a
// misconfigured path surfaces as a per-item failure rather than blocking
// process startup.
func (b *localBackend) ensureLoaded() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interpreter != nil {
		return nil
	}
	if b.modelPath == "" {
		return fmt.Errorf("local transcription backend: local_model_path is not configured")
	}

	data, err := os.ReadFile(b.modelPath)
	if err != nil {
		return fmt.Errorf("local transcription backend: reading model file: %w", err)
	}
	model := tflite.NewModel(data)
	if model == nil {
		return fmt.Errorf("local transcription backend: cannot load model at %s", b.modelPath)
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return fmt.Errorf("local transcription backend: failed to create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("local transcription backend: failed to allocate tensors: %v", status)
	}
	b.interpreter = interpreter
	b.log.Info("local model loaded", logging.String("path", b.modelPath))
	return nil
}

// Transcribe runs the loaded model against audioPath. The interpreter is
// not safe for concurrent invocation, so calls are serialized by mu
// (matching BirdNET's own mutex-guarded analysis path).
func (b *localBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if err := b.ensureLoaded(); err != nil {
		return Result{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	start := time.Now()
	// Feature extraction and tensor population belong to whichever concrete
	// Whisper binding eventually backs this adapter; what's exercised here
	// is the load-once/invoke/read-output lifecycle itself.
	if status := b.interpreter.Invoke(); status != tflite.OK {
		return Result{}, fmt.Errorf("local transcription backend: inference failed: %v", status)
	}
	text := b.readOutputTensor()
	if text == "" {
		b.log.Warn("local inference produced no text", logging.String("audio_path", audioPath))
		return Result{}, nil // non-null but empty result is treated as failure by the caller
	}
	return Result{
		Text:     text,
		Duration: time.Since(start),
		Model:    b.modelPath,
	}, nil
}

// readOutputTensor is a placeholder for the token-to-text decode step a
// concrete Whisper binding would perform against the interpreter's output
// tensor.
func (b *localBackend) readOutputTensor() string {
	return ""
}

func (b *localBackend) Label() string { return "local" }
