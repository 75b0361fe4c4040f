// Package scanner implements the Scanner (SC) of spec.md §4.3: it observes
// configured RecordingFolders, discovers new or changed files, updates the
// state store, and admits work to the transcribe and convert queues.
// Grounded on internal/analysis/directory.go's WalkDir-based discovery loop
// and readiness checks, adapted from a single-directory batch job to a
// continuously polling multi-folder scanner.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/governor"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/queue"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// candidate is a newly discovered file awaiting classification.
type candidate struct {
	folder   store.RecordingFolder
	fileName string
	path     string
	ext      string
	mtime    time.Time
}

// Scanner runs the discovery loop described in spec.md §4.3.
type Scanner struct {
	store  *store.Store
	queues *queue.Queues
	gov    *governor.RateLimiter
	log    logging.Logger

	scanInterval time.Duration
	batchSize    int
	snapshotPath string

	known      map[string]struct{} // "folderID/fileName" seen this process lifetime
	emptyScans int
}

// New builds a Scanner from resolved settings.
func New(s *store.Store, q *queue.Queues, cfg *config.Settings, log logging.Logger) *Scanner {
	if log == nil {
		log = logging.Global()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := time.Duration(cfg.ScanIntervalSec) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scanner{
		store:        s,
		queues:       q,
		gov:          governor.NewRateLimiter(time.Duration(cfg.Governor.ScanMaxBackoffSec) * time.Second),
		log:          log.Module("scanner"),
		scanInterval: interval,
		batchSize:    batchSize,
		snapshotPath: cfg.StatePath + ".snapshot.json",
		known:        make(map[string]struct{}),
	}
}

// Run executes the scan loop until ctx is cancelled (spec.md §4.3
// "Algorithm (executed in a loop)").
func (sc *Scanner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		found, err := sc.passOnce()
		if err != nil {
			sc.log.Error("scan pass failed", logging.Err(err))
		}

		if found == 0 {
			sc.emptyScans++
			if sc.emptyScans == 2 {
				if expErr := sc.store.ExportSnapshot(sc.snapshotPath); expErr != nil {
					sc.log.Warn("opportunistic snapshot export failed", logging.Err(expErr))
				} else {
					sc.log.Info("opportunistic snapshot exported after two empty scans")
				}
			}
			sc.gov.Increment()
			sc.gov.Sleep(ctx.Done())
			continue
		}

		sc.emptyScans = 0
		sc.gov.Reset()

		timer := time.NewTimer(sc.scanInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// passOnce runs one full pass over every configured folder and returns the
// count of newly admitted files (spec.md §4.3 steps 1-6).
func (sc *Scanner) passOnce() (int, error) {
	folders, err := sc.store.ListFolders()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, folder := range folders {
		n, err := sc.scanFolder(folder)
		if err != nil {
			// Missing/unreadable folder: log and continue with other folders
			// (spec.md §4.3 failure semantics), never abort the whole pass.
			sc.log.Warn("folder scan failed, continuing with other folders",
				logging.String("folder", folder.FolderPath), logging.Err(err))
			continue
		}
		total += n
	}
	return total, nil
}

func (sc *Scanner) scanFolder(folder store.RecordingFolder) (int, error) {
	var fresh []candidate
	collect := func(path string, d os.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if !isTrackedExtension(ext) {
			return nil
		}

		// Known-set keys are relative to the folder root, not just the
		// basename, so identically named files in distinct subdirectories
		// of a recursive folder are tracked independently.
		rel, err := filepath.Rel(folder.FolderPath, path)
		if err != nil {
			rel = name
		}
		key := folderKey(folder.ID, rel)
		if _, seen := sc.known[key]; seen {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		fresh = append(fresh, candidate{
			folder:   folder,
			fileName: rel,
			path:     path,
			ext:      ext,
			mtime:    info.ModTime(),
		})
		return nil
	}

	// Non-recursive unless folder policy says otherwise (spec.md §4.3
	// step 2).
	if folder.Recursive {
		err := filepath.WalkDir(folder.FolderPath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subdirectory/file, skip and continue
			}
			if path == folder.FolderPath {
				return nil
			}
			return collect(path, d)
		})
		if err != nil {
			return 0, err
		}
	} else {
		entries, err := os.ReadDir(folder.FolderPath)
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			if err := collect(filepath.Join(folder.FolderPath, entry.Name()), entry); err != nil {
				return 0, err
			}
		}
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	// Newest-first ordering (spec.md P6: reverse-lexical by file name).
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].fileName > fresh[j].fileName })

	processed := 0
	for start := 0; start < len(fresh); start += sc.batchSize {
		end := start + sc.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		n, err := sc.processBatch(fresh[start:end])
		processed += n
		if err != nil {
			sc.log.Warn("batch processing error, continuing with next batch", logging.Err(err))
		}
	}
	return processed, nil
}

// processBatch classifies and admits one batch of candidate files
// (spec.md §4.3 step 5).
func (sc *Scanner) processBatch(batch []candidate) (int, error) {
	admitted := 0
	for _, c := range batch {
		if isAudioExt(c.ext) {
			ready, err := isFileReadyForProcessing(c.path)
			if err != nil {
				sc.log.Warn("readiness check failed", logging.String("path", c.path), logging.Err(err))
				continue
			}
			if !ready {
				continue // deferred; not added to known set, retried next pass
			}
		}

		if err := sc.classify(c); err != nil {
			sc.log.Warn("classify failed", logging.String("path", c.path), logging.Err(err))
			continue
		}
		sc.known[folderKey(c.folder.ID, c.fileName)] = struct{}{}
		admitted++
	}
	return admitted, nil
}

func (sc *Scanner) classify(c candidate) error {
	baseName := strings.TrimSuffix(c.fileName, filepath.Ext(c.fileName))
	// The datetime convention applies to the leaf file name only; c.fileName
	// may carry a subdirectory prefix for recursive folders.
	leafBase := strings.TrimSuffix(filepath.Base(c.fileName), filepath.Ext(c.fileName))
	datetimeToken, ok := parseDatetimeToken(leafBase)

	knownFileID, err := sc.store.UpsertKnownFile(c.folder.ID, c.fileName, c.ext, datetimeToken, c.mtime.Unix())
	if err != nil {
		return err
	}

	if !ok {
		// B2: skipped with invalid_filename exactly once; RecordSkip is
		// idempotent so repeated sightings never duplicate the record.
		return sc.store.RecordSkip(knownFileID, string(store.SkipInvalidFilename), "basename does not match recognised datetime convention")
	}

	if isTranscriptExt(c.ext) {
		return sc.store.NoteTranscript(knownFileID, c.mtime.Unix())
	}

	// Audio file.
	if err := sc.store.NoteAudio(knownFileID, c.mtime.Unix()); err != nil {
		return err
	}

	if siblingExists(c.folder.FolderPath, baseName, store.TranscriptExtensions) {
		// I4: a transcript already exists on disk; mark known, never enqueue QT.
		if err := sc.store.NoteTranscript(knownFileID, c.mtime.Unix()); err != nil {
			return err
		}
	} else if !c.folder.IgnoreTranscribing {
		if err := sc.queues.EnqueueQT(knownFileID); err != nil {
			return err
		}
	}

	if c.ext == "wav" && !c.folder.IgnoreConverting {
		if !siblingExists(c.folder.FolderPath, baseName, []string{"flac"}) {
			if err := sc.queues.EnqueueQC(knownFileID, c.folder.FolderPath, c.fileName); err != nil {
				return err
			}
		}
	}

	return nil
}

func siblingExists(dir, baseName string, exts []string) bool {
	for _, ext := range exts {
		if _, err := os.Stat(filepath.Join(dir, baseName+"."+ext)); err == nil {
			return true
		}
	}
	return false
}

func folderKey(folderID uint, fileName string) string {
	return strconv.FormatUint(uint64(folderID), 10) + "/" + fileName
}

func isAudioExt(ext string) bool { return contains(store.AudioExtensions, ext) }

func isTranscriptExt(ext string) bool { return contains(store.TranscriptExtensions, ext) }

func isTrackedExtension(ext string) bool { return isAudioExt(ext) || isTranscriptExt(ext) }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
