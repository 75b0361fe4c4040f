package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readSiblingText reads `<basename>.txt` from dir, the conventional output
// location for the subprocess CLI backend.
func readSiblingText(dir, basename string) (string, error) {
	path := filepath.Join(dir, basename+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("subprocess transcription backend: reading output %s: %w", path, err)
	}
	return string(data), nil
}

// RenderSegments reconstructs a transcript from segments as
// `[<start>s -> <end>s] <text>\n...` (spec.md §4.4, L3: deterministic given
// the same backend response, modulo float formatting to two decimals).
func RenderSegments(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "[%.2fs -> %.2fs] %s\n", seg.StartSec, seg.EndSec, seg.Text)
	}
	return b.String()
}
