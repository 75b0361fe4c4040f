package store

import "gorm.io/gorm"

// RecordPair records that an audio file and a transcript file are
// associated (spec.md §3 MatchedPair).
func (s *Store) RecordPair(audioFileID, transcriptFileID uint) error {
	return s.write(func(tx *gorm.DB) error {
		pair := MatchedPair{AudioFileID: audioFileID, TranscriptFileID: transcriptFileID}
		return tx.Where(pair).FirstOrCreate(&pair).Error
	})
}

// ListPairs returns every recorded MatchedPair.
func (s *Store) ListPairs() ([]MatchedPair, error) {
	var pairs []MatchedPair
	if err := s.DB.Find(&pairs).Error; err != nil {
		return nil, err
	}
	return pairs, nil
}

// ListDangling returns AudioFiles with no MatchedPair, i.e. audio known to
// the store that has not (yet, or ever) been paired with a transcript.
func (s *Store) ListDangling() ([]AudioFile, error) {
	var audios []AudioFile
	err := s.DB.
		Where("id NOT IN (?)", s.DB.Model(&MatchedPair{}).Select("audio_file_id")).
		Find(&audios).Error
	if err != nil {
		return nil, err
	}
	return audios, nil
}
