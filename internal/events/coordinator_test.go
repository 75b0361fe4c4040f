package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_StartsIdle(t *testing.T) {
	c := NewCoordinator()
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.TranscribingActive())
}

func TestCoordinator_OnEnqueueQT_AssertsTranscribingActive(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()
	assert.Equal(t, StateTranscribing, c.State())
	assert.True(t, c.TranscribingActive())
}

func TestCoordinator_OnTranscribeDone_StaysTranscribingWhileQTNonEmpty(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()
	c.OnTranscribeDone(false)
	assert.Equal(t, StateTranscribing, c.State(), "QT not empty: TR has priority over CV")
}

func TestCoordinator_OnTranscribeDone_DrainingWhenQTEmpty(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()
	c.OnTranscribeDone(true)
	assert.Equal(t, StateDraining, c.State())
}

func TestCoordinator_WaitTranscriptionComplete_P4NeverProceedsWhileTranscribing(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()

	proceeded := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if ok := c.WaitTranscriptionComplete(nil); ok {
			close(proceeded)
		}
	}()

	select {
	case <-proceeded:
		t.Fatal("P4: converter must not proceed while transcribing-active is set")
	case <-time.After(50 * time.Millisecond):
	}

	c.OnTranscribeDone(true) // QT drains -> transcription-complete
	select {
	case <-proceeded:
	case <-time.After(time.Second):
		t.Fatal("converter never unblocked after transcription-complete")
	}
	assert.Equal(t, StateConverting, c.State())
	wg.Wait()
}

func TestCoordinator_WaitTranscriptionComplete_ReturnsFalseOnDone(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()

	done := make(chan struct{})
	close(done)

	ok := c.WaitTranscriptionComplete(done)
	assert.False(t, ok)
}

func TestCoordinator_OnConvertDone_ReturnsToIdleWhenQCEmpty(t *testing.T) {
	c := NewCoordinator()
	c.OnEnqueueQT()
	c.OnTranscribeDone(true)
	require.Equal(t, StateDraining, c.State())

	ok := c.WaitTranscriptionComplete(nil)
	require.True(t, ok)

	c.OnConvertDone(false)
	assert.Equal(t, StateConverting, c.State(), "QC not empty: stays Converting")

	c.OnConvertDone(true)
	assert.Equal(t, StateIdle, c.State())
}
