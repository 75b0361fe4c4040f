// Package store's queue.go implements the durable mirrors of QT and QC
// (spec.md §4.6): enqueue writes to S first, pop leases an item. Both ack
// and nack remove the row (spec.md §4.4 steps 6-7: record the skip, then
// ack); the SkipRecord itself, not the queue row, is what keeps the
// KnownFile from being re-enqueued (spec.md I3) until an operator clears
// it.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TranscribeTicket is a leased QT entry.
type TranscribeTicket struct {
	ID          uint
	KnownFileID uint
	LeaseToken  string
}

// ConvertTicket is a leased QC entry, carrying the optional resolver hint
// spec.md §9 describes (tried before falling back to the store, then a
// folder scan).
type ConvertTicket struct {
	ID           uint
	KnownFileID  uint
	HintFolder   string
	HintFileName string
	LeaseToken   string
}

// EnqueueQT admits a KnownFile to the transcribe queue. Idempotent per
// spec.md I1 (at most one concurrent entry) and refuses entry while a
// SkipRecord exists (I3).
func (s *Store) EnqueueQT(knownFileID uint) error {
	return s.write(func(tx *gorm.DB) error {
		var skipCount int64
		if err := tx.Model(&SkipRecord{}).Where("known_file_id = ?", knownFileID).Count(&skipCount).Error; err != nil {
			return err
		}
		if skipCount > 0 {
			return nil // I3: skipped files never re-enter the queue automatically
		}
		item := TranscribeQueueItem{KnownFileID: knownFileID}
		return tx.Where(TranscribeQueueItem{KnownFileID: knownFileID}).FirstOrCreate(&item).Error
	})
}

// EnqueueQC admits a KnownFile to the convert queue with an optional
// {folder, file name} hint (spec.md §3 QueueItem payload).
func (s *Store) EnqueueQC(knownFileID uint, hintFolder, hintFileName string) error {
	return s.write(func(tx *gorm.DB) error {
		var skipCount int64
		if err := tx.Model(&SkipRecord{}).Where("known_file_id = ?", knownFileID).Count(&skipCount).Error; err != nil {
			return err
		}
		if skipCount > 0 {
			return nil
		}
		item := ConvertQueueItem{KnownFileID: knownFileID}
		err := tx.Where(ConvertQueueItem{KnownFileID: knownFileID}).
			Attrs(ConvertQueueItem{HintFolder: hintFolder, HintFileName: hintFileName}).
			FirstOrCreate(&item).Error
		return err
	})
}

// PopQT leases the next transcribe-queue item in newest-first order
// (spec.md P6: "within a single scan batch, TR's dispatch order equals the
// reverse-lexical order of file names"). Returns (nil, nil) when QT is
// empty.
func (s *Store) PopQT() (*TranscribeTicket, error) {
	var ticket *TranscribeTicket
	err := s.write(func(tx *gorm.DB) error {
		var item TranscribeQueueItem
		err := tx.
			Joins("JOIN known_files ON known_files.id = transcribe_queue_items.known_file_id").
			Where("transcribe_queue_items.leased_at IS NULL").
			Where("transcribe_queue_items.known_file_id NOT IN (?)", tx.Model(&SkipRecord{}).Select("known_file_id")).
			Order("known_files.file_name DESC").
			First(&item).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		token := uuid.NewString()
		if err := tx.Model(&item).Updates(map[string]any{"lease_token": token, "leased_at": now}).Error; err != nil {
			return err
		}
		ticket = &TranscribeTicket{ID: item.ID, KnownFileID: item.KnownFileID, LeaseToken: token}
		return nil
	})
	return ticket, err
}

// PopQC leases the next convert-queue item in FIFO order (spec.md scenario
// 5: "CV processes them FIFO once TR signals completion").
func (s *Store) PopQC() (*ConvertTicket, error) {
	var ticket *ConvertTicket
	err := s.write(func(tx *gorm.DB) error {
		var item ConvertQueueItem
		err := tx.
			Where("leased_at IS NULL").
			Where("known_file_id NOT IN (?)", tx.Model(&SkipRecord{}).Select("known_file_id")).
			Order("id ASC").
			First(&item).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		token := uuid.NewString()
		if err := tx.Model(&item).Updates(map[string]any{"lease_token": token, "leased_at": now}).Error; err != nil {
			return err
		}
		ticket = &ConvertTicket{
			ID: item.ID, KnownFileID: item.KnownFileID,
			HintFolder: item.HintFolder, HintFileName: item.HintFileName,
			LeaseToken: token,
		}
		return nil
	})
	return ticket, err
}

// AckQT removes a successfully completed (or permanently ignored)
// transcribe-queue row.
func (s *Store) AckQT(id uint) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Delete(&TranscribeQueueItem{}, id).Error
	})
}

// AckQC removes a successfully completed convert-queue row.
func (s *Store) AckQC(id uint) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Delete(&ConvertQueueItem{}, id).Error
	})
}

// NackQT records a terminal SkipRecord and acks the row out of QT (spec.md
// §4.4 steps 6-7: record the skip, then ack). The SkipRecord is what
// enforces I3/P2 re-entry gating going forward, via EnqueueQT's check and
// PopQT's join; the queue row itself carries no audit value once it can
// never be leased again, and leaving it in place would make CountQT/
// DepthQT over-count forever (it would never reach zero after the first
// failure, wedging the transcription-complete/converter gate).
func (s *Store) NackQT(id, knownFileID uint, reason, detail string) error {
	return s.nack(&TranscribeQueueItem{}, id, knownFileID, reason, detail)
}

// NackQC is the convert-queue equivalent of NackQT.
func (s *Store) NackQC(id, knownFileID uint, reason, detail string) error {
	return s.nack(&ConvertQueueItem{}, id, knownFileID, reason, detail)
}

func (s *Store) nack(model any, id, knownFileID uint, reason, detail string) error {
	return s.write(func(tx *gorm.DB) error {
		rec := SkipRecord{KnownFileID: knownFileID, Reason: reason, Detail: detail}
		if err := tx.Where(SkipRecord{KnownFileID: knownFileID}).
			Attrs(rec).
			FirstOrCreate(&rec).Error; err != nil {
			return err
		}
		return tx.Delete(model, id).Error
	})
}

// RequeueQC clears a stale lease without recording a skip, used when the
// converter's "re-queue and retry after a pause" path (spec.md §4.5 step 3)
// needs the item visible to PopQC again.
func (s *Store) RequeueQC(id uint) error {
	return s.write(func(tx *gorm.DB) error {
		return tx.Model(&ConvertQueueItem{}).Where("id = ?", id).
			Updates(map[string]any{"lease_token": "", "leased_at": nil}).Error
	})
}

// CountQT and CountQC report queue depth for shutdown/export bookkeeping.
func (s *Store) CountQT() (int64, error) {
	var n int64
	err := s.DB.Model(&TranscribeQueueItem{}).Count(&n).Error
	return n, err
}

func (s *Store) CountQC() (int64, error) {
	var n int64
	err := s.DB.Model(&ConvertQueueItem{}).Count(&n).Error
	return n, err
}
