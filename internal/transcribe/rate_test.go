package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateCounter_MarkIncrementsPerMinuteAndPerHour(t *testing.T) {
	r := NewRateCounter()
	assert.Zero(t, r.PerMinute())
	assert.Zero(t, r.PerHour())

	r.Mark()
	r.Mark()
	r.Mark()

	assert.Equal(t, 3, r.PerMinute())
	assert.Equal(t, 3, r.PerHour())
}
