package ruleengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"descan/internal/dkg"
	"descan/internal/rules"
)

func TestEngineProcessesFIFO(t *testing.T) {
	registry := rules.NewRegistry()
	registry.Add(rules.DummyRule{})

	var mu sync.Mutex
	var processed []string
	done := make(chan struct{}, 3)

	engine := New(registry, func(ctx context.Context, content dkg.Content, triplets []dkg.Triplet) {
		mu.Lock()
		processed = append(processed, string(content.Identifier))
		mu.Unlock()
		require.Len(t, triplets, 1)
		require.Equal(t, rules.DummyRuleName, triplets[0].Rules[0])
		done <- struct{}{}
	})

	engine.Enqueue(dkg.Content{Identifier: []byte("first")})
	engine.Enqueue(dkg.Content{Identifier: []byte("second")})
	engine.Enqueue(dkg.Content{Identifier: []byte("third")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx, 10*time.Millisecond)
	defer engine.Shutdown()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for rule engine to process queue")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second", "third"}, processed)
}

func TestEngineShutdownIsIdempotentBeforeStart(t *testing.T) {
	engine := New(rules.NewRegistry(), func(context.Context, dkg.Content, []dkg.Triplet) {})
	engine.Shutdown()
	engine.Shutdown()
}
