// Package service wires the five cooperating components of spec.md §2
// (State Store, Governor, Scanner, Transcriber, Converter) into a single
// long-running process and drives the coordinated shutdown sequence of
// spec.md §5. Grounded on internal/analysis/realtime.go's RealtimeAnalysis:
// a quitChan + sync.WaitGroup orchestration with a dedicated Ctrl-C
// monitor goroutine, adapted from BirdNET's fixed roster of audio/HTTP/
// cleanup workers to this domain's scanner/transcriber/converter roster.
package service

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/convert"
	"github.com/chboishabba/tircorder-JOBBIE/internal/events"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/queue"
	"github.com/chboishabba/tircorder-JOBBIE/internal/scanner"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
	"github.com/chboishabba/tircorder-JOBBIE/internal/transcribe"
)

// shutdownGrace is the maximum time the drain sequence waits for in-flight
// TR/CV tasks before forcing the snapshot export (spec.md §5 "Wait up to
// 10s for current TR and CV tasks to complete").
const shutdownGrace = 10 * time.Second

// Pipeline owns every long-lived worker and the durable store they share.
type Pipeline struct {
	Store       *store.Store
	Queues      *queue.Queues
	Coordinator *events.Coordinator
	Bus         *events.Bus
	Scanner     *scanner.Scanner
	Transcriber *transcribe.Transcriber
	Converter   *convert.Converter

	log          logging.Logger
	snapshotPath string
}

// New opens the store, rehydrates the queues, and constructs every
// worker from resolved Settings. Folders named in cfg.Folders are
// upserted (spec.md §3 "created on first-run interactive prompt or
// config import").
func New(cfg *config.Settings, log logging.Logger) (*Pipeline, error) {
	if log == nil {
		log = logging.Global()
	}

	st, err := store.Open(cfg.StatePath, log)
	if err != nil {
		return nil, err
	}

	snapshotPath := cfg.StatePath + ".snapshot.json"
	if err := st.ImportSnapshot(snapshotPath); err != nil {
		log.Warn("snapshot import failed, continuing with empty durable queues", logging.Err(err))
	}

	for _, f := range cfg.Folders {
		if _, err := st.UpsertFolderRecursive(f.Path, f.IgnoreTranscribing, f.IgnoreConverting, f.Recursive); err != nil {
			log.Warn("upserting configured folder failed", logging.String("path", f.Path), logging.Err(err))
		}
	}

	q := queue.New(st, log)
	if err := q.Rehydrate(); err != nil {
		return nil, err
	}

	coord := events.NewCoordinator()
	bus := events.NewBus(0, log)

	sc := scanner.New(st, q, cfg, log)

	tr, err := transcribe.New(st, q, coord, cfg.Transcription, cfg.Governor, bus, log)
	if err != nil {
		return nil, err
	}

	folderLister := func() []store.RecordingFolder {
		folders, _ := st.ListFolders()
		return folders
	}
	cv := convert.New(st, q, coord, cfg.MediaTool, cfg.Governor, folderLister, bus, log)

	return &Pipeline{
		Store: st, Queues: q, Coordinator: coord, Bus: bus,
		Scanner: sc, Transcriber: tr, Converter: cv,
		log: log.Module("service"), snapshotPath: snapshotPath,
	}, nil
}

// Run starts every worker and blocks until an OS interrupt/terminate
// signal arrives, then drives the coordinated drain of spec.md §5.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var wg sync.WaitGroup
	workers := []struct {
		name string
		run  func(context.Context) error
	}{
		{"scanner", p.Scanner.Run},
		{"transcriber", p.Transcriber.Run},
		{"converter", p.Converter.Run},
	}

	for _, w := range workers {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(runCtx); err != nil {
				p.log.Error("worker exited with error", logging.String("worker", name), logging.Err(err))
			}
		}(w.name, w.run)
	}

	select {
	case <-ctx.Done():
	case sig := <-sigChan:
		p.log.Info("received shutdown signal", logging.String("signal", sig.String()))
	}

	return p.shutdown(cancel, &wg)
}

// shutdown implements spec.md §5's coordinated drain:
//  1. Stop admitting new work in SC (cancel stops the scan loop).
//  2. Wait up to 10s for current TR and CV tasks to complete.
//  3. Export the store's folders, known files, QT/QC rows and skip records
//     to the JSON snapshot file (ExportSnapshot).
//  4. Stop the State-Store worker, then exit.
func (p *Pipeline) shutdown(cancel context.CancelFunc, wg *sync.WaitGroup) error {
	cancel()
	p.Coordinator.Wake()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("workers drained cleanly")
	case <-time.After(shutdownGrace):
		p.log.Warn("shutdown grace period elapsed, exporting snapshot with workers still draining")
	}

	if err := os.MkdirAll(filepath.Dir(p.snapshotPath), 0o755); err != nil {
		p.log.Warn("creating snapshot directory failed", logging.Err(err))
	}
	if err := p.Store.ExportSnapshot(p.snapshotPath); err != nil {
		p.log.Error("snapshot export failed during shutdown", logging.Err(err))
	} else {
		p.log.Info("snapshot exported", logging.String("path", p.snapshotPath))
	}

	p.Bus.Close()
	return p.Store.Close()
}
