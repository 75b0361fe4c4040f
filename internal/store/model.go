// Package store is the durable State Store (S) of spec.md §4.1: a
// single-writer GORM/SQLite-backed relational store holding known files,
// queued work, skip records and folder policy. Schema shape follows
// internal/datastore/model.go's struct/tag style.
package store

import "time"

// RecordingFolder is a directory the scanner watches (spec.md §3).
type RecordingFolder struct {
	ID                 uint   `gorm:"primaryKey"`
	FolderPath         string `gorm:"uniqueIndex;not null"`
	IgnoreTranscribing bool   `gorm:"not null;default:false"`
	IgnoreConverting   bool   `gorm:"not null;default:false"`
	Recursive          bool   `gorm:"not null;default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Extension is a row in the closed extension set named in spec.md §6.
type Extension struct {
	ID  uint   `gorm:"primaryKey"`
	Ext string `gorm:"uniqueIndex;not null;size:10"`
}

// Audio and transcript extension sets, spec.md §3 "Extensions taxonomy".
var (
	AudioExtensions      = []string{"wav", "flac", "mp3", "ogg", "amr"}
	TranscriptExtensions = []string{"srt", "txt", "vtt", "json", "tsv"}
)

// KnownFile is any file SC has ever observed and classified (spec.md §3).
type KnownFile struct {
	ID         uint   `gorm:"primaryKey"`
	FolderID   uint   `gorm:"uniqueIndex:idx_known_files_folder_name_dt;not null"`
	FileName   string `gorm:"uniqueIndex:idx_known_files_folder_name_dt;not null"`
	Datetimes  string `gorm:"uniqueIndex:idx_known_files_folder_name_dt"`
	Extension  string `gorm:"not null;size:10"`
	MTime      int64  `gorm:"not null"`
	ContentHash string `gorm:"size:64"`
	CreatedAt  time.Time
}

// AudioFile references a KnownFile 1:1 (spec.md §3).
type AudioFile struct {
	ID          uint `gorm:"primaryKey"`
	KnownFileID uint `gorm:"uniqueIndex;not null;constraint:OnDelete:CASCADE"`
	UnixTimestamp int64 `gorm:"not null"`
}

// TranscriptFile references a KnownFile 1:1 (spec.md §3).
type TranscriptFile struct {
	ID          uint `gorm:"primaryKey"`
	KnownFileID uint `gorm:"uniqueIndex;not null;constraint:OnDelete:CASCADE"`
	UnixTimestamp int64 `gorm:"not null"`
}

// MatchedPair is the durable record that a recording has a transcript
// (spec.md §3).
type MatchedPair struct {
	ID               uint `gorm:"primaryKey"`
	AudioFileID      uint `gorm:"uniqueIndex:idx_matched_pairs;not null"`
	TranscriptFileID uint `gorm:"uniqueIndex:idx_matched_pairs;not null"`
	CreatedAt        time.Time
}

// SkipReason is the closed enumeration of skip-record reason codes
// (spec.md §3).
type SkipReason string

const (
	SkipInvalidFilename          SkipReason = "invalid_filename"
	SkipTranscriptionFailed      SkipReason = "transcription_failed"
	SkipTranscriptionOutputError SkipReason = "transcription_output_error"
	SkipConversionFailed         SkipReason = "conversion_failed"
	SkipIncorrectAudioShape      SkipReason = "incorrect_audio_shape"
	SkipUserIgnore               SkipReason = "user_ignore"
	SkipOther                    SkipReason = "other"
)

// SkipRecord is a durable note that a specific KnownFile should not be
// re-enqueued (spec.md §3).
type SkipRecord struct {
	ID          uint   `gorm:"primaryKey"`
	KnownFileID uint   `gorm:"uniqueIndex;not null"`
	Reason      string `gorm:"not null"`
	Detail      string
	CreatedAt   time.Time
}

// TranscribeQueueItem is the durable mirror of QT (spec.md §6).
type TranscribeQueueItem struct {
	ID          uint `gorm:"primaryKey"`
	KnownFileID uint `gorm:"uniqueIndex;not null"`
	LeaseToken  string
	LeasedAt    *time.Time
	CreatedAt   time.Time
}

// ConvertQueueItem is the durable mirror of QC, carrying the optional
// {folder path, file name} hint spec.md §3 describes for QueueItem.
type ConvertQueueItem struct {
	ID           uint `gorm:"primaryKey"`
	KnownFileID  uint `gorm:"uniqueIndex;not null"`
	HintFolder   string
	HintFileName string
	LeaseToken   string
	LeasedAt     *time.Time
	CreatedAt    time.Time
}

// PipelineStats is a singleton row (ID always 1) holding the rolling
// transcription-rate counters spec.md §4.4 step 5 asks for ("maintain a
// rolling per-hour and per-minute completion counter for observability").
// The Transcriber updates it after every completion; since it lives in S
// rather than process memory, a separate `support status` invocation can
// read the same durable file and see a current value.
type PipelineStats struct {
	ID                   uint `gorm:"primaryKey"`
	TranscribedPerMinute int  `gorm:"not null;default:0"`
	TranscribedPerHour   int  `gorm:"not null;default:0"`
	UpdatedAt            time.Time
}

// AllModels lists every table for AutoMigrate, following
// internal/datastore's migration-on-open discipline.
func AllModels() []any {
	return []any{
		&RecordingFolder{},
		&Extension{},
		&KnownFile{},
		&AudioFile{},
		&TranscriptFile{},
		&MatchedPair{},
		&SkipRecord{},
		&TranscribeQueueItem{},
		&ConvertQueueItem{},
		&PipelineStats{},
	}
}
