package scanner

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

func newTestScanner(t *testing.T) (*Scanner, *store.Store, *queue.Queues) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q := queue.New(st, nil)
	require.NoError(t, q.Rehydrate())

	cfg := &config.Settings{
		StatePath:       filepath.Join(t.TempDir(), "state.db"),
		ScanIntervalSec: 5,
		BatchSize:       100,
		Governor:        config.GovernorConfig{ScanMaxBackoffSec: 60},
	}
	return New(st, q, cfg, nil), st, q
}

// writeWAV writes a minimal RIFF/WAVE file old enough to clear the
// scanner's quiet-period readiness gate.
func writeWAV(t *testing.T, path string) {
	t.Helper()
	data := append([]byte("RIFF"), 0, 0, 0, 0)
	data = append(data, []byte("WAVE")...)
	data = append(data, make([]byte, 16)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestScanner_Scenario1_FreshWAV_EnqueuesTranscribeAndConvert(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, false, false)
	require.NoError(t, err)

	writeWAV(t, filepath.Join(dir, "2024-05-06_10-00-00.wav"))

	n, err := sc.passOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	qt, err := q.DepthQT()
	require.NoError(t, err)
	assert.Equal(t, int64(1), qt, "scenario 1: QT contains one item after one scan pass")

	qc, err := q.DepthQC()
	require.NoError(t, err)
	assert.Equal(t, int64(1), qc, "scenario 1: QC contains one item (no .flac sibling yet)")
}

func TestScanner_Scenario2_ExistingTranscript_SkipsQTButEnqueuesQC(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, false, false)
	require.NoError(t, err)

	writeWAV(t, filepath.Join(dir, "2024-05-06_10-00-00.wav"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-05-06_10-00-00.vtt"), []byte("WEBVTT\n"), 0o644))

	_, err = sc.passOnce()
	require.NoError(t, err)

	qt, err := q.DepthQT()
	require.NoError(t, err)
	assert.Zero(t, qt, "scenario 2: transcript sibling exists, QT must stay empty")

	qc, err := q.DepthQC()
	require.NoError(t, err)
	assert.Equal(t, int64(1), qc, "scenario 2: WAV has no .flac sibling, so QC still gets it")
}

func TestScanner_Scenario3_InvalidFilename_RecordsSkipOnce(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, false, false)
	require.NoError(t, err)

	writeWAV(t, filepath.Join(dir, "badname.wav"))

	_, err = sc.passOnce()
	require.NoError(t, err)

	qt, err := q.DepthQT()
	require.NoError(t, err)
	assert.Zero(t, qt)
	qc, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, qc)

	// Repeated scans must not duplicate the SkipRecord (B2).
	_, err = sc.passOnce()
	require.NoError(t, err)

	var count int64
	require.NoError(t, st.DB.Model(&store.SkipRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestScanner_B3_WAVWithFlacSibling_NeverEnqueuedOnQC(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, false, false)
	require.NoError(t, err)

	writeWAV(t, filepath.Join(dir, "2024-05-06_10-00-00.wav"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-05-06_10-00-00.flac"), []byte("fLaC"), 0o644))

	_, err = sc.passOnce()
	require.NoError(t, err)

	qc, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, qc, "B3: a .wav with an existing .flac sibling is never enqueued on QC")
}

func TestScanner_IgnoreFlags_SuppressRespectiveQueue(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, true, true)
	require.NoError(t, err)

	writeWAV(t, filepath.Join(dir, "2024-05-06_10-00-00.wav"))

	_, err = sc.passOnce()
	require.NoError(t, err)

	qt, err := q.DepthQT()
	require.NoError(t, err)
	assert.Zero(t, qt, "ignore_transcribing must suppress QT admission")

	qc, err := q.DepthQC()
	require.NoError(t, err)
	assert.Zero(t, qc, "ignore_converting must suppress QC admission")
}

func TestScanner_EmptyScan_AdvancesRateLimiterAndEnqueuesNothing(t *testing.T) {
	sc, st, q := newTestScanner(t)

	dir := t.TempDir()
	_, err := st.UpsertFolder(dir, false, false)
	require.NoError(t, err)

	before := sc.gov.Delay()
	n, err := sc.passOnce()
	require.NoError(t, err)
	assert.Zero(t, n, "B1: empty scan produces no enqueue")

	// One Run iteration: the empty pass increments the limiter, then the
	// backoff sleep is cut short by the context deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, sc.Run(ctx))
	assert.Greater(t, sc.gov.Delay(), before, "B1: advances the rate limiter by one step")
}
