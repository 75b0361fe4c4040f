package store

import "gorm.io/gorm"

// statsRowID is the fixed primary key of the singleton PipelineStats row.
const statsRowID = 1

// RecordTranscriptionRate upserts the rolling per-minute/per-hour
// completion counters (spec.md §4.4 step 5). Called by the Transcriber
// after every successful item so an out-of-process reader (the support
// CLI) sees a current value via the same durable store file.
func (s *Store) RecordTranscriptionRate(perMinute, perHour int) error {
	return s.write(func(tx *gorm.DB) error {
		row := PipelineStats{ID: statsRowID, TranscribedPerMinute: perMinute, TranscribedPerHour: perHour}
		return tx.Save(&row).Error
	})
}

// TranscriptionRate reads the most recently recorded rolling counters.
// Returns the zero value, no error, if no Transcriber has run yet.
func (s *Store) TranscriptionRate() (PipelineStats, error) {
	var row PipelineStats
	err := s.DB.Where("id = ?", statsRowID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return PipelineStats{}, nil
	}
	return row, err
}
