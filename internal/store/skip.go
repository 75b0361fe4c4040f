package store

import (
	"gorm.io/gorm"
)

// RecordSkip records that a KnownFile should not be re-enqueued, per
// spec.md §3 SkipRecord. Idempotent: re-recording the same known file just
// overwrites the reason/detail (a file cannot be skipped twice for
// different reasons simultaneously).
func (s *Store) RecordSkip(knownFileID uint, reason, detail string) error {
	return s.write(func(tx *gorm.DB) error {
		var rec SkipRecord
		err := tx.Where(SkipRecord{KnownFileID: knownFileID}).
			Attrs(SkipRecord{Reason: reason, Detail: detail}).
			FirstOrCreate(&rec).Error
		if err != nil {
			return err
		}
		return tx.Model(&rec).Updates(map[string]any{"reason": reason, "detail": detail}).Error
	})
}

// IsSkipped reports whether a SkipRecord exists for the KnownFile
// (spec.md I3).
func (s *Store) IsSkipped(knownFileID uint) (bool, error) {
	var count int64
	err := s.DB.Model(&SkipRecord{}).Where("known_file_id = ?", knownFileID).Count(&count).Error
	return count > 0, err
}

// ClearSkip is the operator-only clearing action spec.md §9 mandates:
// skip-record lifecycle is operator-only, never automatic.
func (s *Store) ClearSkip(knownFileID uint) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Where("known_file_id = ?", knownFileID).Delete(&SkipRecord{}).Error
	})
}
