package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// subprocessBackend spawns whisper-ctranslate2 (or equivalent) with fixed
// arguments, streams stdout into the debug log and captures stderr for the
// error message, deriving duration from wall-clock elapsed time (spec.md
// §4.4 "Local-subprocess-CLI"). Grounded on
// internal/audiocore/export/ffmpeg.go's exec.CommandContext lifecycle:
// build args, start, stream output, wait, map non-zero exit to an error.
type subprocessBackend struct {
	command string
	log     logging.Logger
}

func newSubprocessBackend(cfg config.TranscriptionConfig, log logging.Logger) *subprocessBackend {
	command := cfg.SubprocessCommand
	if command == "" {
		command = "whisper-ctranslate2"
	}
	return &subprocessBackend{command: command, log: log.Module("transcribe.subprocess")}
}

// Transcribe invokes the configured CLI against audioPath and reads back
// the sibling `.txt` output file the tool is expected to produce next to
// its input (the conventional whisper-ctranslate2 output layout).
func (b *subprocessBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	outputDir := filepath.Dir(audioPath)
	args := b.buildArgs(audioPath, outputDir)

	cmd := exec.CommandContext(ctx, b.command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("subprocess transcription backend: creating stdout pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("subprocess transcription backend: starting %s: %w", b.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		b.log.Debug("subprocess output", logging.String("line", scanner.Text()))
	}

	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("subprocess transcription backend: %s exited with error: %w (stderr: %s)",
			b.command, err, strings.TrimSpace(stderr.String()))
	}

	basename := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := readSiblingText(outputDir, basename)
	if err != nil {
		return Result{}, err
	}

	return Result{Text: text, Duration: time.Since(start), Model: b.command}, nil
}

func (b *subprocessBackend) buildArgs(audioPath, outputDir string) []string {
	return []string{
		audioPath,
		"--output_dir", outputDir,
		"--output_format", "txt",
	}
}

func (b *subprocessBackend) Label() string { return "subprocess" }
