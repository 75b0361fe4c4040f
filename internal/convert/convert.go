// Package convert implements the Converter (CV) of spec.md §4.5: it
// consumes QC strictly after TR permits, re-encodes WAV to FLAC via an
// external media tool, and records the produced artifact in the state
// store. Grounded on internal/audiocore/export/ffmpeg.go's
// exec.CommandContext lifecycle, adapted from a stdin-pipe PCM exporter to
// a file-to-file CLI invocation.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/events"
	"github.com/chboishabba/tircorder-JOBBIE/internal/governor"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/queue"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// maxRequeueAttempts and requeuePause implement spec.md §4.5 step 3:
// "re-queue the item and retry after a fixed pause (10s), up to 5
// attempts; on the 6th attempt the item is logged as skipped and
// re-enqueued for a later cycle."
const (
	maxRequeueAttempts = 5
	requeuePause       = 10 * time.Second
)

// Coordinator is the subset of *events.Coordinator the converter needs:
// the stage-granularity gate spec.md P4 requires ("No CV subprocess
// executes while transcribing-active is set") plus the wait/release
// transitions bounding steps 1 and 8 of spec.md §4.5.
type Coordinator interface {
	TranscribingActive() bool
	WaitTranscriptionComplete(done <-chan struct{}) bool
	OnConvertDone(qcEmpty bool)
}

// Converter runs the convert loop for a single worker goroutine. The
// converter mutex (spec.md §4.5 step 4) belongs to each Converter: it
// serialises the media tool invocations of that instance only. Mutual
// exclusion with TR comes from the Coordinator gate, not from this mutex.
type Converter struct {
	store     *store.Store
	queues    *queue.Queues
	coord     Coordinator
	mediaTool string
	folders   func() []store.RecordingFolder
	bus       *events.Bus
	log       logging.Logger
	cpu       *governor.CPUMonitor

	mu sync.Mutex // the converter mutex; guards subprocess invocation
}

// New builds a Converter. folders supplies the configured recording
// folders for the fallback resolver (hint, then store, then folder scan).
// govCfg feeds the CPU gate the external media tool invocation waits on
// before each dispatch (spec.md §4.2).
func New(s *store.Store, q *queue.Queues, coord Coordinator, mediaTool string, govCfg config.GovernorConfig, folders func() []store.RecordingFolder, bus *events.Bus, log logging.Logger) *Converter {
	if mediaTool == "" {
		mediaTool = "ffmpeg"
	}
	if log == nil {
		log = logging.Global()
	}
	checkInterval := time.Duration(govCfg.CPUCheckIntervalSec * float64(time.Second))
	return &Converter{
		store: s, queues: q, coord: coord, mediaTool: mediaTool,
		folders: folders, bus: bus, log: log.Module("convert"),
		cpu: governor.NewCPUMonitor(govCfg.CPUThresholdPercent, checkInterval, log),
	}
}

// Run pops and converts QC items until ctx is cancelled.
func (c *Converter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Step 1: wait on "transcription-complete" before popping, so CV
		// never races ahead of TR's first handoff for this cycle.
		if !c.coord.WaitTranscriptionComplete(ctx.Done()) {
			return nil
		}

		ticket, err := c.queues.PopQC(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("pop QC failed", logging.Err(err))
			continue
		}
		if ticket == nil {
			continue
		}

		if err := c.processWithRequeue(ctx, ticket); err != nil {
			c.log.Error("convert item failed permanently", logging.Err(err))
		}

		qcDepth, _ := c.queues.DepthQC()
		c.coord.OnConvertDone(qcDepth == 0)
	}
}

// processWithRequeue implements spec.md §4.5 step 3: if TR currently holds
// "transcribing-active", re-queue and retry after a fixed pause up to 5
// times before giving up for this cycle.
func (c *Converter) processWithRequeue(ctx context.Context, ticket *store.ConvertTicket) error {
	for attempt := 0; attempt <= maxRequeueAttempts; attempt++ {
		if !c.coord.TranscribingActive() {
			return c.processOne(ctx, ticket)
		}
		if attempt == maxRequeueAttempts {
			c.log.Warn("convert item skipped after repeated TR contention, re-enqueued for a later cycle",
				logging.Int("known_file_id", int(ticket.KnownFileID)))
			return c.queues.RequeueQC(ticket.ID)
		}
		timer := time.NewTimer(requeuePause)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

func (c *Converter) processOne(ctx context.Context, ticket *store.ConvertTicket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inputPath, err := c.resolvePath(ticket)
	if err != nil {
		return c.nack(ticket, string(store.SkipConversionFailed), err.Error())
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	outputPath := strings.TrimSuffix(inputPath, ext) + ".flac"

	if _, statErr := os.Stat(outputPath); statErr == nil {
		// I5: a .flac sibling already exists, ack and continue.
		return c.ack(ticket)
	}

	c.cpu.WaitForSafeUsage(ctx.Done())

	if err := c.runMediaTool(ctx, inputPath, outputPath); err != nil {
		return c.nack(ticket, string(store.SkipConversionFailed), err.Error())
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return c.nack(ticket, string(store.SkipConversionFailed), fmt.Sprintf("output file missing after conversion: %v", err))
	}
	if err := c.store.NoteAudio(ticket.KnownFileID, info.ModTime().Unix()); err != nil {
		return err
	}

	if c.bus != nil {
		c.bus.Publish(events.Event{Kind: events.KindConverted, KnownFileID: ticket.KnownFileID, Detail: outputPath})
	}
	return c.ack(ticket)
}

// resolvePath implements the hint-then-store-then-scan resolution order
// spec.md §9 describes for ConvertItem.
func (c *Converter) resolvePath(ticket *store.ConvertTicket) (string, error) {
	if ticket.HintFolder != "" && ticket.HintFileName != "" {
		p := filepath.Join(ticket.HintFolder, ticket.HintFileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	kf, err := c.store.GetKnownFile(ticket.KnownFileID)
	if err == nil {
		folder, ferr := c.store.GetFolder(kf.FolderID)
		if ferr == nil {
			p := filepath.Join(folder.FolderPath, kf.FileName)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	if c.folders != nil && kf != nil {
		for _, folder := range c.folders() {
			// kf.FileName may be a path relative to the folder root (recursive
			// folders), not just a basename, so join and stat directly rather
			// than re-listing directory entries.
			p := filepath.Join(folder.FolderPath, kf.FileName)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("convert: could not resolve input path for known_file_id %d", ticket.KnownFileID)
}

// runMediaTool invokes the external media tool with the fixed argument
// vector spec.md §4.5 step 6 prescribes.
func (c *Converter) runMediaTool(ctx context.Context, inputPath, outputPath string) error {
	args := []string{"-i", inputPath, "-c:a", "flac", outputPath}
	cmd := exec.CommandContext(ctx, c.mediaTool, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s exited with error: %w (stderr: %s)", c.mediaTool, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *Converter) ack(ticket *store.ConvertTicket) error {
	return c.queues.AckQC(ticket.ID)
}

func (c *Converter) nack(ticket *store.ConvertTicket, reason, detail string) error {
	c.log.Warn("convert item failed",
		logging.Int("known_file_id", int(ticket.KnownFileID)),
		logging.String("reason", reason),
		logging.String("detail", detail))
	if c.bus != nil {
		c.bus.Publish(events.Event{Kind: events.KindSkipped, KnownFileID: ticket.KnownFileID, Detail: reason + ":" + detail})
	}
	return c.queues.NackQC(ticket.ID, ticket.KnownFileID, reason, detail)
}
