package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	b := NewBus(4, nil)
	defer b.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})

	b.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		close(done)
	})

	b.Publish(Event{Kind: KindTranscribed, KnownFileID: 42, Detail: "ok"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was never delivered to subscriber")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, KindTranscribed, got[0].Kind)
	assert.Equal(t, uint(42), got[0].KnownFileID)
	assert.False(t, got[0].At.IsZero(), "Publish must stamp At when the caller leaves it zero")
}

func TestBus_FullBufferDropsRatherThanBlocks(t *testing.T) {
	b := NewBus(1, nil)
	defer b.Close()

	// The only subscriber is slow, so the dispatch goroutine is stuck in
	// its consumer call while the one-slot buffer fills; further publishes
	// must drop rather than block the publisher (spec.md: events are observability, never on the
	// critical path).
	done := make(chan struct{})
	var once sync.Once
	b.Subscribe(func(Event) {
		time.Sleep(100 * time.Millisecond)
		once.Do(func() { close(done) })
	})

	for i := 0; i < 10; i++ {
		b.Publish(Event{Kind: KindSkipped})
	}

	<-done
	assert.Greater(t, b.Dropped(), uint64(0))
}
