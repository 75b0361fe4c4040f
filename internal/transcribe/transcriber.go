// transcriber.go implements the Transcriber (TR) worker of spec.md §4.4:
// it consumes QT, dispatches each audio file to the configured Backend,
// persists the transcript artifact, and on success hands the recording off
// to QC. Grounded on internal/analysis/directory.go's per-item
// process-then-continue loop, adapted from a single-pass batch job to a
// continuously running worker bound to a durable queue.
package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/events"
	"github.com/chboishabba/tircorder-JOBBIE/internal/governor"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/queue"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// Coordinator is the subset of *events.Coordinator the transcriber drives:
// the T-enqueue/T-done transitions bounding "transcribing-active" and
// "transcription-complete" (spec.md §4.4 steps 1 and 8).
type Coordinator interface {
	OnEnqueueQT()
	OnTranscribeDone(qtEmpty bool)
}

// Transcriber runs the TR loop for a single worker goroutine (spec.md
// §4.4 "Per-item algorithm").
type Transcriber struct {
	store   *store.Store
	queues  *queue.Queues
	coord   Coordinator
	backend Backend
	bus     *events.Bus
	log     logging.Logger
	rates   *RateCounter
	cpu     *governor.CPUMonitor

	emitEnvelope bool
	isWebUI      bool
}

// New builds a Transcriber bound to the resolved backend selection
// (spec.md §4.4 "Selection is driven by configuration"). govCfg feeds both
// the webui backend's FixedRateLimiter and this worker's CPUMonitor gate
// (spec.md §4.2 "before dispatching a new task, callers invoke
// wait_for_safe_usage()").
func New(s *store.Store, q *queue.Queues, coord Coordinator, cfg config.TranscriptionConfig, govCfg config.GovernorConfig, bus *events.Bus, log logging.Logger) (*Transcriber, error) {
	if log == nil {
		log = logging.Global()
	}
	backend, err := NewBackend(cfg, govCfg, log)
	if err != nil {
		return nil, err
	}
	checkInterval := time.Duration(govCfg.CPUCheckIntervalSec * float64(time.Second))
	return &Transcriber{
		store:        s,
		queues:       q,
		coord:        coord,
		backend:      backend,
		bus:          bus,
		log:          log.Module("transcribe"),
		rates:        NewRateCounter(),
		cpu:          governor.NewCPUMonitor(govCfg.CPUThresholdPercent, checkInterval, log),
		emitEnvelope: cfg.Method == config.MethodWebUI,
		isWebUI:      cfg.Method == config.MethodWebUI,
	}, nil
}

// Run pops and transcribes QT items until ctx is cancelled. When the
// configured backend is the WebUI adapter, each drain-to-empty pass
// processes every currently ready item before the next blocking pop
// (spec.md §4.4 "Batching (WebUI backend only)").
func (t *Transcriber) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ticket, err := t.queues.PopQT(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.log.Error("pop QT failed", logging.Err(err))
			continue
		}
		if ticket == nil {
			continue
		}

		t.coord.OnEnqueueQT()
		t.processOne(ctx, ticket)

		if t.isWebUI {
			// Drain-and-reDrain: keep processing ready items without
			// re-blocking on PopQT's channel wait, so newly appended
			// items join the batch immediately (spec.md §4.4).
			t.drainReady(ctx)
		}

		depth, _ := t.queues.DepthQT()
		t.coord.OnTranscribeDone(depth == 0)
	}
}

// drainReady keeps popping and processing QT items while the queue's
// durable depth is non-zero. Each pop still waits on the queue's signal
// channel (PopQT blocks until a signal or ctx is done).
func (t *Transcriber) drainReady(ctx context.Context) {
	for {
		depth, err := t.queues.DepthQT()
		if err != nil || depth == 0 {
			return
		}
		ticket, err := t.queues.PopQT(ctx)
		if err != nil || ticket == nil {
			return
		}
		t.processOne(ctx, ticket)
	}
}

// processOne implements spec.md §4.4's per-item algorithm, steps 2-7.
func (t *Transcriber) processOne(ctx context.Context, ticket *store.TranscribeTicket) {
	kf, err := t.store.GetKnownFile(ticket.KnownFileID)
	if err != nil {
		t.nack(ticket, string(store.SkipOther), fmt.Sprintf("resolving known file: %v", err))
		return
	}
	folder, err := t.store.GetFolder(kf.FolderID)
	if err != nil {
		t.nack(ticket, string(store.SkipOther), fmt.Sprintf("resolving folder: %v", err))
		return
	}

	if !isAudioExtension(kf.Extension) {
		// Step 3: extension not in the audio set -> ack and log, continue.
		t.log.Info("QT item is not an audio extension, acking without transcription",
			logging.String("file", kf.FileName), logging.String("extension", kf.Extension))
		_ = t.queues.AckQT(ticket.ID)
		return
	}

	audioPath := filepath.Join(folder.FolderPath, kf.FileName)

	t.cpu.WaitForSafeUsage(ctx.Done())

	result, err := t.backend.Transcribe(ctx, audioPath)
	if err != nil {
		reason, detail := classifyBackendError(err)
		t.nack(ticket, reason, detail)
		return
	}
	if result.Text == "" {
		// Non-null but empty text is a failure (spec.md §4.4 step 6 /
		// WebUI failure taxonomy applied uniformly to every backend).
		t.nack(ticket, string(store.SkipTranscriptionFailed), "backend returned empty transcript")
		return
	}

	basename := strings.TrimSuffix(kf.FileName, filepath.Ext(kf.FileName))
	txtPath := filepath.Join(folder.FolderPath, basename+".txt")
	if err := os.WriteFile(txtPath, []byte(result.Text), 0o644); err != nil {
		t.nack(ticket, string(store.SkipTranscriptionOutputError), err.Error())
		return
	}

	if t.emitEnvelope {
		if err := writeExecutionEnvelope(folder.FolderPath, basename, audioPath, result, t.backend.Label()); err != nil {
			// Envelope emission failure does not roll back the already
			// written canonical transcript; it is logged and the item
			// still proceeds, since .txt is the canonical artifact.
			t.log.Warn("execution envelope emission failed", logging.Err(err))
		}
	}

	tfKnownFileID, noteErr := t.store.UpsertKnownFile(folder.ID, basename+".txt", "txt", kf.Datetimes, time.Now().Unix())
	if noteErr == nil {
		if err := t.store.NoteTranscript(tfKnownFileID, time.Now().Unix()); err != nil {
			t.log.Warn("note_transcript failed", logging.Err(err))
		}
		if af, afErr := t.audioFileID(kf.ID); afErr == nil {
			if tf, tfErr := t.transcriptFileID(tfKnownFileID); tfErr == nil {
				if err := t.store.RecordPair(af, tf); err != nil {
					t.log.Warn("record_pair failed", logging.Err(err))
				}
			}
		}
	}

	if err := t.queues.EnqueueQC(kf.ID, folder.FolderPath, kf.FileName); err != nil {
		t.log.Error("enqueue QC failed after successful transcription", logging.Err(err))
	}

	t.rates.Mark()
	if err := t.store.RecordTranscriptionRate(t.rates.PerMinute(), t.rates.PerHour()); err != nil {
		// The rolling counters are observability only; persisting them is
		// best-effort and never blocks the QC handoff that just happened.
		t.log.Warn("recording transcription rate failed", logging.Err(err))
	}
	if t.bus != nil {
		t.bus.Publish(events.Event{Kind: events.KindTranscribed, KnownFileID: kf.ID, Detail: txtPath})
	}
	_ = t.queues.AckQT(ticket.ID)
}

func (t *Transcriber) audioFileID(knownFileID uint) (uint, error) {
	var af store.AudioFile
	if err := t.store.DB.Where("known_file_id = ?", knownFileID).First(&af).Error; err != nil {
		return 0, err
	}
	return af.ID, nil
}

func (t *Transcriber) transcriptFileID(knownFileID uint) (uint, error) {
	var tf store.TranscriptFile
	if err := t.store.DB.Where("known_file_id = ?", knownFileID).First(&tf).Error; err != nil {
		return 0, err
	}
	return tf.ID, nil
}

func (t *Transcriber) nack(ticket *store.TranscribeTicket, reason, detail string) {
	t.log.Warn("transcribe item failed",
		logging.Int("known_file_id", int(ticket.KnownFileID)),
		logging.String("reason", reason),
		logging.String("detail", detail))
	if t.bus != nil {
		t.bus.Publish(events.Event{Kind: events.KindSkipped, KnownFileID: ticket.KnownFileID, Detail: reason + ":" + detail})
	}
	if err := t.queues.NackQT(ticket.ID, ticket.KnownFileID, reason, detail); err != nil {
		t.log.Error("nack QT failed", logging.Err(err))
	}
}

// classifyBackendError maps a Backend error onto the reason-code taxonomy
// of spec.md §7 ("WebUI failure taxonomy maps directly to skip reasons").
func classifyBackendError(err error) (reason, detail string) {
	msg := err.Error()
	if strings.HasPrefix(msg, "webui_error:") {
		return msg, ""
	}
	if strings.Contains(msg, "invalid audio shape") || strings.Contains(msg, "incorrect_audio_shape") {
		return string(store.SkipIncorrectAudioShape), msg
	}
	return string(store.SkipTranscriptionFailed), msg
}

func isAudioExtension(ext string) bool {
	for _, a := range store.AudioExtensions {
		if a == ext {
			return true
		}
	}
	return false
}

// writeExecutionEnvelope emits the WebUI-only, strictly non-semantic
// artifact spec.md §4.4 describes: content hashes, provenance, and
// per-segment records carrying only {text, start, end, speaker?,
// confidence?} — no interpretive labels.
func writeExecutionEnvelope(dir, basename, audioPath string, result Result, adapterLabel string) error {
	audioHash, err := sha256File(audioPath)
	if err != nil {
		return fmt.Errorf("hashing audio file: %w", err)
	}
	transcriptHash := sha256Bytes([]byte(result.Text))

	envelope := executionEnvelope{
		ContentHash:    transcriptHash,
		AudioHash:      audioHash,
		Provenance:     provenance{Adapter: adapterLabel, Model: result.Model, Language: result.Language},
		CreatedAtUnix:  time.Now().Unix(),
		Segments:       make([]envelopeSegment, 0, len(result.Segments)),
	}
	for _, seg := range result.Segments {
		envelope.Segments = append(envelope.Segments, envelopeSegment{
			Text:       seg.Text,
			Start:      seg.StartSec,
			End:        seg.EndSec,
			Speaker:    seg.Speaker,
			Confidence: seg.Confidence,
			Provenance: envelope.Provenance,
		})
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, basename+".execution_envelope.json")
	return os.WriteFile(path, data, 0o644)
}

type provenance struct {
	Adapter  string `json:"adapter"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

type envelopeSegment struct {
	Text       string     `json:"text"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Speaker    string     `json:"speaker,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Provenance provenance `json:"provenance"`
}

type executionEnvelope struct {
	ContentHash   string            `json:"content_hash"`
	AudioHash     string            `json:"audio_hash"`
	Provenance    provenance        `json:"provenance"`
	CreatedAtUnix int64             `json:"created_at_unix"`
	Segments      []envelopeSegment `json:"segments"`
}

func sha256File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return sha256Bytes(data), nil
}

func sha256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
