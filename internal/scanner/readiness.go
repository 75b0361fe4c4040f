package scanner

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// minQuietPeriod mirrors the teacher's "modified too recently, still
// copying" guard: a file younger than this is deferred to the next scan
// rather than admitted mid-write.
const minQuietPeriod = 2 * time.Second

// isFileLocked reports whether path cannot currently be opened for shared
// read, the signal the teacher's directory watcher uses to defer a file
// still being written by another process.
func isFileLocked(path string) bool {
	flag := os.O_RDONLY
	if runtime.GOOS != "windows" {
		flag |= syscall.O_NONBLOCK
	}
	f, err := os.OpenFile(path, flag, 0o666)
	if err != nil {
		return true
	}
	f.Close()
	return false
}

// sniffAudioHeader does a minimal RIFF/WAVE or fLaC magic-byte check,
// grounded on internal/analysis/directory.go's verifyAudioFile. It is a
// best-effort readiness gate, not a full decoder validation.
func sniffAudioHeader(path string) (ready bool, reason string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, "", err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := f.Read(header)
	if err != nil || n != 4 {
		return false, "", nil // too small to sniff yet; caller treats as not-ready
	}

	switch {
	case strings.EqualFold(string(header), "RIFF"):
		var chunkSize uint32
		if err := binary.Read(f, binary.LittleEndian, &chunkSize); err != nil {
			return false, "", nil
		}
		format := make([]byte, 4)
		if n, err := f.Read(format); err != nil || n != 4 {
			return false, "", nil
		}
		if !strings.EqualFold(string(format), "WAVE") {
			return false, "invalid WAV format", nil
		}
		return true, "", nil
	case strings.EqualFold(string(header), "fLaC"):
		return true, "", nil
	default:
		return false, "unrecognised audio header", nil
	}
}

// isFileReadyForProcessing gates admission of a newly discovered audio
// file: it must not be locked by a writer and must have settled past the
// quiet period since its last modification (spec.md §4.3 implicitly
// assumes stable files; ready-for-processing mirrors the teacher's
// directory scan safeguards against partial writes).
func isFileReadyForProcessing(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	if time.Since(info.ModTime()) < minQuietPeriod {
		return false, nil
	}
	if isFileLocked(path) {
		return false, nil
	}
	// Only WAV and FLAC have a header sniff; other tracked audio formats
	// are ready once unlocked and settled.
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" && ext != ".flac" {
		return true, nil
	}
	ready, _, err := sniffAudioHeader(path)
	if err != nil {
		return false, err
	}
	return ready, nil
}
