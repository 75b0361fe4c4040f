// Package queue implements the in-memory FIFO mirror of spec.md §4.6:
// "Queues are in-memory FIFO structures mirrored into S. The source of
// truth for pending work across restarts is S; the in-memory queue is
// rehydrated on start from S and drained into S on shutdown." enqueue
// writes to the store first, then to memory; pop/ack removes from memory
// first, then from the store. Grounded on internal/datastore's
// store-backed-by-channel pattern, adapted to the two named queues QT/QC.
package queue

import (
	"context"

	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// token is a zero-size semaphore signal: the in-memory queue tracks only
// "how many items are pending", not their payload, because the durable
// lease (id, lease token, dispatch ordering) lives in the store and must
// be re-derived atomically at pop time regardless of memory state.
type token struct{}

// Queues wraps a *store.Store with two buffered channels that let
// Transcriber and Converter block cheaply for work instead of polling S.
type Queues struct {
	s   *store.Store
	log logging.Logger

	qt chan token
	qc chan token
}

// capacity bounds how many pending-work signals may be buffered; it is
// sized well above any realistic backlog so Enqueue never blocks on a full
// channel during normal operation (spec.md has no stated upper bound on
// QT/QC depth).
const capacity = 8192

// New builds a Queues bound to s. Call Rehydrate once at startup to seed
// the in-memory signal counts from existing durable queue rows.
func New(s *store.Store, log logging.Logger) *Queues {
	if log == nil {
		log = logging.Global()
	}
	return &Queues{
		s:   s,
		log: log.Module("queue"),
		qt:  make(chan token, capacity),
		qc:  make(chan token, capacity),
	}
}

// Rehydrate seeds the in-memory signal counts from the durable queue
// depth (spec.md §4.6 "rehydrated on start from S"). Call once after
// store.Open, before any producer/consumer goroutines start.
func (q *Queues) Rehydrate() error {
	n, err := q.s.CountQT()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		q.qt <- token{}
	}

	m, err := q.s.CountQC()
	if err != nil {
		return err
	}
	for i := int64(0); i < m; i++ {
		q.qc <- token{}
	}

	q.log.Info("queues rehydrated",
		logging.Int("qt_depth", int(n)),
		logging.Int("qc_depth", int(m)))
	return nil
}

// EnqueueQT writes to S first, then signals memory, per spec.md §4.6's
// ordering.
func (q *Queues) EnqueueQT(knownFileID uint) error {
	if err := q.s.EnqueueQT(knownFileID); err != nil {
		return err
	}
	select {
	case q.qt <- token{}:
	default:
		q.log.Warn("QT memory signal buffer full, consumers will re-derive from store on next poll")
	}
	return nil
}

// EnqueueQC writes to S first, then signals memory.
func (q *Queues) EnqueueQC(knownFileID uint, hintFolder, hintFileName string) error {
	if err := q.s.EnqueueQC(knownFileID, hintFolder, hintFileName); err != nil {
		return err
	}
	select {
	case q.qc <- token{}:
	default:
		q.log.Warn("QC memory signal buffer full, consumers will re-derive from store on next poll")
	}
	return nil
}

// PopQT blocks until a transcribe-queue signal is available (or ctx is
// done), removes the signal from memory, then leases the actual next item
// from the store. A nil, nil return with no error means the in-memory
// signal count had drifted ahead of the store (e.g. after a concurrent
// Ack raced a signal) and there was nothing left to lease; callers should
// just poll again.
func (q *Queues) PopQT(ctx context.Context) (*store.TranscribeTicket, error) {
	select {
	case <-q.qt:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return q.s.PopQT()
}

// PopQC is the convert-queue equivalent of PopQT.
func (q *Queues) PopQC(ctx context.Context) (*store.ConvertTicket, error) {
	select {
	case <-q.qc:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return q.s.PopQC()
}

// AckQT removes from memory (already done by PopQT) then from the store.
func (q *Queues) AckQT(id uint) error { return q.s.AckQT(id) }

// AckQC is the convert-queue equivalent of AckQT.
func (q *Queues) AckQC(id uint) error { return q.s.AckQC(id) }

// NackQT records a terminal SkipRecord and removes the QT row in the same
// store transaction; the SkipRecord, not the row, keeps the KnownFile from
// being re-enqueued.
func (q *Queues) NackQT(id, knownFileID uint, reason, detail string) error {
	return q.s.NackQT(id, knownFileID, reason, detail)
}

// NackQC is the convert-queue equivalent of NackQT.
func (q *Queues) NackQC(id, knownFileID uint, reason, detail string) error {
	return q.s.NackQC(id, knownFileID, reason, detail)
}

// RequeueQC re-signals memory for an item whose lease was cleared without
// a skip (the converter's pause-and-retry path, spec.md §4.5 step 3).
func (q *Queues) RequeueQC(id uint) error {
	if err := q.s.RequeueQC(id); err != nil {
		return err
	}
	select {
	case q.qc <- token{}:
	default:
	}
	return nil
}

// DepthQT and DepthQC report the durable queue depth (used by the
// coordinator to decide whether QT/QC has drained).
func (q *Queues) DepthQT() (int64, error) { return q.s.CountQT() }
func (q *Queues) DepthQC() (int64, error) { return q.s.CountQC() }
