package store

import (
	"gorm.io/gorm"
)

// UpsertKnownFile records a file's first sighting (or returns its existing
// id unchanged, per spec.md L2: idempotent under identical
// (folder_id, file_name, extension, mtime)).
func (s *Store) UpsertKnownFile(folderID uint, fileName, extension, datetimeToken string, mtime int64) (uint, error) {
	var id uint
	err := s.write(func(tx *gorm.DB) error {
		var kf KnownFile
		err := tx.Where(KnownFile{FolderID: folderID, FileName: fileName}).
			Attrs(KnownFile{Extension: extension, Datetimes: datetimeToken, MTime: mtime}).
			FirstOrCreate(&kf).Error
		if err != nil {
			return err
		}
		id = kf.ID
		return nil
	})
	return id, err
}

// GetKnownFile resolves a KnownFile by id (used by the converter's
// hint-then-store-then-scan resolution order, spec.md §9).
func (s *Store) GetKnownFile(id uint) (*KnownFile, error) {
	var kf KnownFile
	if err := s.DB.First(&kf, id).Error; err != nil {
		return nil, err
	}
	return &kf, nil
}

// GetFolder resolves a RecordingFolder by id.
func (s *Store) GetFolder(id uint) (*RecordingFolder, error) {
	var folder RecordingFolder
	if err := s.DB.First(&folder, id).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

// NoteAudio records that a KnownFile is an audio recording (spec.md §4.1
// note_audio). Idempotent: safe to call again after conversion produces a
// new file tracked under the same known-file id lineage.
func (s *Store) NoteAudio(knownFileID uint, mtime int64) error {
	return s.write(func(tx *gorm.DB) error {
		var af AudioFile
		err := tx.Where(AudioFile{KnownFileID: knownFileID}).
			Attrs(AudioFile{UnixTimestamp: mtime}).
			FirstOrCreate(&af).Error
		if err != nil {
			return err
		}
		return tx.Model(&af).Update("unix_timestamp", mtime).Error
	})
}

// NoteTranscript records that a KnownFile has a transcript artifact
// (spec.md §4.1 note_transcript).
func (s *Store) NoteTranscript(knownFileID uint, mtime int64) error {
	return s.write(func(tx *gorm.DB) error {
		var tf TranscriptFile
		return tx.Where(TranscriptFile{KnownFileID: knownFileID}).
			Attrs(TranscriptFile{UnixTimestamp: mtime}).
			FirstOrCreate(&tf).Error
	})
}

// HasTranscript reports whether a KnownFile already has a TranscriptFile
// row (the DB-side cache; spec.md I4 makes the filesystem the ultimate
// source of truth, so callers must still check on disk before trusting
// this for skip decisions).
func (s *Store) HasTranscript(knownFileID uint) (bool, error) {
	var count int64
	err := s.DB.Model(&TranscriptFile{}).Where("known_file_id = ?", knownFileID).Count(&count).Error
	return count > 0, err
}

// HasAudioFile reports whether a KnownFile has an AudioFile row.
func (s *Store) HasAudioFile(knownFileID uint) (bool, error) {
	var count int64
	err := s.DB.Model(&AudioFile{}).Where("known_file_id = ?", knownFileID).Count(&count).Error
	return count > 0, err
}
