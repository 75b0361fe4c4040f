package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
)

// Kind enumerates the domain lifecycle events the pipeline publishes for
// observability (spec.md §4.4 step 5 "rolling per-hour and per-minute
// completion counter", §9 supplemented rolling-rate counters). Grounded on
// internal/events/eventbus.go's buffered, non-blocking dispatch shape,
// slimmed to this domain's event set.
type Kind string

const (
	KindFileDiscovered    Kind = "file_discovered"
	KindTranscribed       Kind = "transcribed"
	KindConverted         Kind = "converted"
	KindSkipped           Kind = "skipped"
	KindThrottled         Kind = "throttled"
)

// Event is a single lifecycle notification.
type Event struct {
	Kind      Kind
	KnownFileID uint
	Detail    string
	At        time.Time
}

// Bus is a non-blocking, best-effort fan-out of lifecycle events to
// registered consumers. A full buffer drops events rather than applying
// backpressure to pipeline workers, matching the teacher's "events are
// observability, never on the critical path" stance.
type Bus struct {
	ch        chan Event
	mu        sync.RWMutex
	consumers []func(Event)
	dropped   atomic.Uint64
	log       logging.Logger

	wg     sync.WaitGroup
	cancel func()
}

// NewBus starts a Bus with the given buffer size.
func NewBus(bufferSize int, log logging.Logger) *Bus {
	if log == nil {
		log = logging.Global()
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	b := &Bus{ch: make(chan Event, bufferSize), log: log.Module("events")}

	stop := make(chan struct{})
	b.cancel = sync.OnceFunc(func() { close(stop) })
	b.wg.Add(1)
	go b.run(stop)
	return b
}

func (b *Bus) run(stop <-chan struct{}) {
	defer b.wg.Done()
	for {
		select {
		case <-stop:
			return
		case ev := <-b.ch:
			b.mu.RLock()
			consumers := append([]func(Event){}, b.consumers...)
			b.mu.RUnlock()
			for _, c := range consumers {
				c(ev)
			}
		}
	}
}

// Subscribe registers a consumer callback; callbacks must not block.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, fn)
}

// Publish attempts to enqueue an event without blocking; a full buffer
// drops it and increments the in-process counter reported by Dropped.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
		b.log.Warn("event dropped, bus buffer full", logging.String("kind", string(ev.Kind)))
	}
}

// Dropped reports how many events have been dropped since start.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close stops the dispatch goroutine.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}
