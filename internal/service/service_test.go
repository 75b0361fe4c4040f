package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	return &config.Settings{
		DataDir:         dir,
		StatePath:       filepath.Join(dir, "state.db"),
		MediaTool:       "ffmpeg",
		ScanIntervalSec: 5,
		BatchSize:       100,
		Folders: []config.FolderConfig{
			{Path: filepath.Join(dir, "recordings")},
		},
		Transcription: config.TranscriptionConfig{Method: config.MethodCTranslate2Nonpythonic},
		Governor: config.GovernorConfig{
			CPUThresholdPercent: 0,
			ScanMaxBackoffSec:   60,
		},
	}
}

func TestNew_WiresEveryWorkerAndUpsertsConfiguredFolders(t *testing.T) {
	cfg := testSettings(t)
	require.NoError(t, os.MkdirAll(cfg.Folders[0].Path, 0o755))

	p, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Store.Close() })

	require.NotNil(t, p.Store)
	require.NotNil(t, p.Queues)
	require.NotNil(t, p.Coordinator)
	require.NotNil(t, p.Bus)
	require.NotNil(t, p.Scanner)
	require.NotNil(t, p.Transcriber)
	require.NotNil(t, p.Converter)

	folders, err := p.Store.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, cfg.Folders[0].Path, folders[0].FolderPath)
}

func TestPipeline_Shutdown_ExportsSnapshotAndClosesStore(t *testing.T) {
	cfg := testSettings(t)
	require.NoError(t, os.MkdirAll(cfg.Folders[0].Path, 0o755))

	p, err := New(cfg, nil)
	require.NoError(t, err)

	_, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup // no workers started: shutdown must still complete promptly

	require.NoError(t, p.shutdown(cancel, &wg))

	_, statErr := os.Stat(p.snapshotPath)
	assert.NoError(t, statErr, "expected a snapshot file at shutdown")
}
