package synclock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLock_ExclusiveAcquire(t *testing.T) {
	l := New()
	assert.False(t, l.IsHeld())
	assert.True(t, l.Acquire())
	assert.True(t, l.IsHeld())
	assert.False(t, l.Acquire(), "second acquire must fail while held")
	l.Release()
	assert.False(t, l.IsHeld())
	assert.True(t, l.Acquire())
	l.Release()
}

func TestLock_OnlyOneWinnerUnderContention(t *testing.T) {
	l := New()
	const n = 64
	var wins atomic32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if l.Acquire() {
				wins.add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.get())
}

func TestLock_WithLock(t *testing.T) {
	l := New()
	ran := false
	ok := l.WithLock(func() { ran = true })
	assert.True(t, ok)
	assert.True(t, ran)
	assert.False(t, l.IsHeld(), "WithLock must release")

	l.Acquire()
	ok = l.WithLock(func() { t.Fatal("must not run while already held") })
	assert.False(t, ok)
	l.Release()
}

// atomic32 is a tiny helper local to this test file; it avoids importing
// sync/atomic's typed wrappers just to count goroutine wins.
type atomic32 struct {
	mu sync.Mutex
	v  int32
}

func (a *atomic32) add(n int32) {
	a.mu.Lock()
	a.v += n
	a.mu.Unlock()
}

func (a *atomic32) get() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
