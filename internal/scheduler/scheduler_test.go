package scheduler

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunNowInvokesJobSynchronously(t *testing.T) {
	var calls int32
	s, err := New("test", "@every 1h", func() { atomic.AddInt32(&calls, 1) }, zerolog.Nop())
	require.NoError(t, err)
	s.RunNow()
	s.RunNow()
	assert.EqualValues(t, 2, calls)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s, err := New("test", "@every 1h", func() {}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
	s.Stop()
}

func TestScheduler_RejectsBadCronExpression(t *testing.T) {
	_, err := New("test", "not a cron expr", func() {}, zerolog.Nop())
	assert.Error(t, err)
}
