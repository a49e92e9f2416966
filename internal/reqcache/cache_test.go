package reqcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testEntry struct {
	number  uint16
	timeout time.Duration
	fired   chan struct{}
}

func (e *testEntry) Kind() string           { return "test" }
func (e *testEntry) Timeout() time.Duration { return e.timeout }
func (e *testEntry) OnTimeout()             { close(e.fired) }

func addTestEntry(c *Cache, timeout time.Duration) *testEntry {
	entry := c.Add("test", func(number uint16) Entry {
		return &testEntry{number: number, timeout: timeout, fired: make(chan struct{})}
	})
	return entry.(*testEntry)
}

func TestPopConsumesEntry(t *testing.T) {
	c := New()
	entry := addTestEntry(c, time.Minute)

	require.True(t, c.Has("test", entry.number))
	popped, ok := c.Pop("test", entry.number)
	require.True(t, ok)
	require.Same(t, entry, popped)

	require.False(t, c.Has("test", entry.number))
	_, ok = c.Pop("test", entry.number)
	require.False(t, ok)
}

func TestNumbersUniquePerKind(t *testing.T) {
	c := New()
	seen := make(map[uint16]bool)
	for i := 0; i < 100; i++ {
		entry := addTestEntry(c, time.Minute)
		require.False(t, seen[entry.number], "number %d allocated twice", entry.number)
		seen[entry.number] = true
	}
}

func TestTimeoutFiresOnceAndRemovesEntry(t *testing.T) {
	c := New()
	entry := addTestEntry(c, 20*time.Millisecond)

	select {
	case <-entry.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}
	require.False(t, c.Has("test", entry.number))
}

func TestPopBeforeTimeoutSuppressesIt(t *testing.T) {
	c := New()
	entry := addTestEntry(c, 30*time.Millisecond)

	_, ok := c.Pop("test", entry.number)
	require.True(t, ok)

	select {
	case <-entry.fired:
		t.Fatal("timeout fired after the entry was popped")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestShutdownResolvesPendingEntries(t *testing.T) {
	c := New()
	entry := addTestEntry(c, time.Minute)

	c.Shutdown()
	require.False(t, c.Has("test", entry.number))

	select {
	case <-entry.fired:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not resolve the pending entry")
	}
}
