package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var calls int32
	var mutex sync.Mutex
	var got []ChangeEvent

	d := NewDebouncer(50*time.Millisecond, func(events []ChangeEvent) {
		atomic.AddInt32(&calls, 1)
		mutex.Lock()
		got = events
		mutex.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.html"})
		d.Add(ChangeEvent{Type: EventTypeCreated, Path: "a.html"})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	mutex.Lock()
	defer mutex.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "a.html", got[0].Path)
	assert.Equal(t, "b.html", got[1].Path)
}

func TestDebouncerSeparateBursts(t *testing.T) {
	var calls int32
	d := NewDebouncer(20*time.Millisecond, func([]ChangeEvent) {
		atomic.AddInt32(&calls, 1)
	})
	defer d.Stop()

	d.Add(ChangeEvent{Path: "a"})
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)

	d.Add(ChangeEvent{Path: "a"})
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerStopDropsPending(t *testing.T) {
	var calls int32
	d := NewDebouncer(20*time.Millisecond, func([]ChangeEvent) {
		atomic.AddInt32(&calls, 1)
	})

	d.Add(ChangeEvent{Path: "a"})
	assert.Equal(t, 1, d.Pending())
	d.Stop()
	d.Add(ChangeEvent{Path: "b"})

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, d.Pending())
}
