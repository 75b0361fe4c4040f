package store

import (
	"encoding/json"
	"os"

	"gorm.io/gorm"

	"github.com/chboishabba/tircorder-JOBBIE/internal/errors"
)

func wrapSnapshotErr(err error, operation string) error {
	return errors.New(err).
		Component("store").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}

// Snapshot is the ground-truth recovery artifact spec.md §7 describes:
// produced on every shutdown and opportunistically after two consecutive
// empty scans.
type Snapshot struct {
	Folders    []RecordingFolder     `json:"folders"`
	KnownFiles []KnownFile           `json:"known_files"`
	QT         []TranscribeQueueItem `json:"transcribe_queue"`
	QC         []ConvertQueueItem    `json:"convert_queue"`
	Skips      []SkipRecord          `json:"skip_records"`
}

// ExportSnapshot writes the full in-DB state to path as JSON (spec.md §5
// shutdown step 3, §7 "state_backup.json").
func (s *Store) ExportSnapshot(path string) error {
	snap := Snapshot{}
	if err := s.DB.Find(&snap.Folders).Error; err != nil {
		return wrapSnapshotErr(err, "export_folders")
	}
	if err := s.DB.Find(&snap.KnownFiles).Error; err != nil {
		return wrapSnapshotErr(err, "export_known_files")
	}
	if err := s.DB.Find(&snap.QT).Error; err != nil {
		return wrapSnapshotErr(err, "export_qt")
	}
	if err := s.DB.Find(&snap.QC).Error; err != nil {
		return wrapSnapshotErr(err, "export_qc")
	}
	if err := s.DB.Find(&snap.Skips).Error; err != nil {
		return wrapSnapshotErr(err, "export_skips")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return wrapSnapshotErr(err, "marshal_snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrapSnapshotErr(err, "write_snapshot_file")
	}
	return nil
}

// ImportSnapshot rehydrates QT, QC and the skip set from a snapshot file
// produced by ExportSnapshot (spec.md P5: round-trip identity). Rows that
// already exist (matched by their natural unique keys) are left untouched.
func (s *Store) ImportSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // cold start with no prior snapshot is not an error
		}
		return wrapSnapshotErr(err, "read_snapshot_file")
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return wrapSnapshotErr(err, "unmarshal_snapshot")
	}

	return s.write(func(tx *gorm.DB) error {
		for i := range snap.Folders {
			f := snap.Folders[i]
			if err := tx.Where(RecordingFolder{FolderPath: f.FolderPath}).FirstOrCreate(&f).Error; err != nil {
				return err
			}
		}
		for i := range snap.KnownFiles {
			kf := snap.KnownFiles[i]
			if err := tx.Where(KnownFile{FolderID: kf.FolderID, FileName: kf.FileName}).FirstOrCreate(&kf).Error; err != nil {
				return err
			}
		}
		for i := range snap.QT {
			item := snap.QT[i]
			if err := tx.Where(TranscribeQueueItem{KnownFileID: item.KnownFileID}).FirstOrCreate(&item).Error; err != nil {
				return err
			}
		}
		for i := range snap.QC {
			item := snap.QC[i]
			if err := tx.Where(ConvertQueueItem{KnownFileID: item.KnownFileID}).FirstOrCreate(&item).Error; err != nil {
				return err
			}
		}
		for i := range snap.Skips {
			rec := snap.Skips[i]
			if err := tx.Where(SkipRecord{KnownFileID: rec.KnownFileID}).FirstOrCreate(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
