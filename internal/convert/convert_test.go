package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/queue"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// fakeCoordinator implements Coordinator with whatever state a test needs.
type fakeCoordinator struct {
	transcribing bool
}

func (f *fakeCoordinator) TranscribingActive() bool { return f.transcribing }
func (f *fakeCoordinator) WaitTranscriptionComplete(done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
		return true
	}
}
func (f *fakeCoordinator) OnConvertDone(qcEmpty bool) {}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// writeShellTool writes an executable shell script standing in for the
// external media tool binary, grounded on the teacher's
// execute_internal_test.go pattern of using a temp #!/bin/sh script instead
// of invoking the real external binary.
func writeShellTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg.sh")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestConverter_ProcessOne_InvokesMediaToolAndRecordsAudio(t *testing.T) {
	st := openTestStore(t)
	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	recDir := t.TempDir()
	folderID, err := st.UpsertFolder(recDir, false, false)
	require.NoError(t, err)
	knownFileID, err := st.UpsertKnownFile(folderID, "clip.wav", "wav", "", 1000)
	require.NoError(t, err)

	wavPath := filepath.Join(recDir, "clip.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFFxxxxWAVE"), 0o644))

	require.NoError(t, q.EnqueueQC(knownFileID, recDir, "clip.wav"))

	// The fake media tool creates the expected .flac output in place of a
	// real ffmpeg invocation, per the shell-script subprocess test idiom.
	tool := writeShellTool(t, `out="$5"; touch "$out"; exit 0`)

	coord := &fakeCoordinator{}
	conv := New(st, q, coord, tool, config.GovernorConfig{}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticket, err := q.PopQC(ctx)
	require.NoError(t, err)
	require.NotNil(t, ticket)

	require.NoError(t, conv.processWithRequeue(ctx, ticket))

	flacPath := filepath.Join(recDir, "clip.flac")
	_, statErr := os.Stat(flacPath)
	assert.NoError(t, statErr, "expected the fake media tool to produce clip.flac")

	depth, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, depth, "the converted item should be acked off QC")
}

func TestConverter_ProcessOne_FlacSiblingAlreadyExists_SkipsMediaTool(t *testing.T) {
	st := openTestStore(t)
	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	recDir := t.TempDir()
	folderID, err := st.UpsertFolder(recDir, false, false)
	require.NoError(t, err)
	knownFileID, err := st.UpsertKnownFile(folderID, "clip.wav", "wav", "", 1000)
	require.NoError(t, err)

	wavPath := filepath.Join(recDir, "clip.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFFxxxxWAVE"), 0o644))
	flacPath := filepath.Join(recDir, "clip.flac")
	require.NoError(t, os.WriteFile(flacPath, []byte("fLaC"), 0o644))

	require.NoError(t, q.EnqueueQC(knownFileID, recDir, "clip.wav"))

	// This tool would fail the test if invoked (I5: the pre-existing
	// sibling must short-circuit before runMediaTool is reached).
	tool := writeShellTool(t, `exit 1`)

	coord := &fakeCoordinator{}
	conv := New(st, q, coord, tool, config.GovernorConfig{}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticket, err := q.PopQC(ctx)
	require.NoError(t, err)
	require.NotNil(t, ticket)

	require.NoError(t, conv.processWithRequeue(ctx, ticket))

	depth, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestConverter_ProcessOne_MediaToolFailure_RecordsSkip(t *testing.T) {
	st := openTestStore(t)
	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	recDir := t.TempDir()
	folderID, err := st.UpsertFolder(recDir, false, false)
	require.NoError(t, err)
	knownFileID, err := st.UpsertKnownFile(folderID, "clip.wav", "wav", "", 1000)
	require.NoError(t, err)

	wavPath := filepath.Join(recDir, "clip.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFFxxxxWAVE"), 0o644))

	require.NoError(t, q.EnqueueQC(knownFileID, recDir, "clip.wav"))

	tool := writeShellTool(t, `echo "boom" 1>&2; exit 1`)

	coord := &fakeCoordinator{}
	conv := New(st, q, coord, tool, config.GovernorConfig{}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticket, err := q.PopQC(ctx)
	require.NoError(t, err)
	require.NotNil(t, ticket)

	require.NoError(t, conv.processWithRequeue(ctx, ticket))

	skipped, err := st.IsSkipped(knownFileID)
	require.NoError(t, err)
	assert.True(t, skipped)

	depth, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, depth, "a permanently-failed item is nacked off QC, not left pending")
}

func TestConverter_ResolvePath_StaleHintFallsBackToStoreRecordedPath(t *testing.T) {
	st := openTestStore(t)
	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	recDir := t.TempDir()
	folderID, err := st.UpsertFolder(recDir, false, false)
	require.NoError(t, err)
	knownFileID, err := st.UpsertKnownFile(folderID, "clip.wav", "wav", "", 1000)
	require.NoError(t, err)

	wavPath := filepath.Join(recDir, "clip.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFFxxxxWAVE"), 0o644))

	// A stale hint (nonexistent folder) must fall back to the store's
	// recorded folder/file-name pair.
	ticket := &store.ConvertTicket{KnownFileID: knownFileID, HintFolder: "/nonexistent", HintFileName: "clip.wav"}

	conv := New(st, q, &fakeCoordinator{}, "irrelevant", config.GovernorConfig{}, nil, nil, nil)

	resolved, err := conv.resolvePath(ticket)
	require.NoError(t, err)
	assert.Equal(t, wavPath, resolved)
}

func TestConverter_ProcessWithRequeue_NoTRContention_ConvertsOnFirstAttempt(t *testing.T) {
	st := openTestStore(t)
	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	recDir := t.TempDir()
	folderID, err := st.UpsertFolder(recDir, false, false)
	require.NoError(t, err)
	knownFileID, err := st.UpsertKnownFile(folderID, "clip.wav", "wav", "", 1000)
	require.NoError(t, err)

	wavPath := filepath.Join(recDir, "clip.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("RIFFxxxxWAVE"), 0o644))
	require.NoError(t, q.EnqueueQC(knownFileID, recDir, "clip.wav"))

	tool := writeShellTool(t, `out="$5"; touch "$out"; exit 0`)

	// The coordinator never reports transcribing-active, so the very first
	// attempt of processWithRequeue converts without waiting out the fixed
	// pause.
	coord := &fakeCoordinator{transcribing: false}
	conv := New(st, q, coord, tool, config.GovernorConfig{}, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ticket, err := q.PopQC(ctx)
	require.NoError(t, err)
	require.NotNil(t, ticket)

	require.NoError(t, conv.processWithRequeue(ctx, ticket))

	flacPath := filepath.Join(recDir, "clip.flac")
	_, statErr := os.Stat(flacPath)
	assert.NoError(t, statErr)
}
