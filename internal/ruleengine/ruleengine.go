// Package ruleengine implements the periodically scheduled rule execution
// engine: a FIFO of pending content, drained one item per tick by applying
// every registered rule and invoking a callback with the resulting
// triplets.
package ruleengine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"descan/internal/dkg"
	"descan/internal/rules"
)

// Callback receives the triplets (if any) a processed piece of content
// generated. It is called synchronously on the engine's own goroutine, so
// the next queued item is not processed until the callback returns.
type Callback func(ctx context.Context, content dkg.Content, triplets []dkg.Triplet)

// Engine pops one item from the front of its pending-content queue per
// tick and runs every registered rule against it. Rules themselves may
// enqueue further derived content mid-processing.
type Engine struct {
	registry *rules.Registry
	callback Callback

	mu    sync.Mutex
	queue []dkg.Content

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New builds an engine that applies every rule in registry to each
// enqueued item, invoking callback with the result.
func New(registry *rules.Registry, callback Callback) *Engine {
	return &Engine{
		registry: registry,
		callback: callback,
		stop:     make(chan struct{}),
	}
}

// Enqueue adds content to the back of the pending queue. Safe to call
// before or after Start, and concurrently with the engine's own tick.
func (e *Engine) Enqueue(content dkg.Content) {
	e.mu.Lock()
	e.queue = append(e.queue, content)
	e.mu.Unlock()
}

// Seed loads an initial batch of content into the queue in randomized
// order, so a harness-loaded dataset doesn't always replay in insertion
// order.
func (e *Engine) Seed(content []dkg.Content) {
	shuffled := make([]dkg.Content, len(content))
	copy(shuffled, content)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	e.mu.Lock()
	e.queue = append(e.queue, shuffled...)
	e.mu.Unlock()
}

// Start begins processing one item from the queue every interval, until
// Shutdown is called.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	e.ticker = time.NewTicker(interval)
	e.done = make(chan struct{})
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-e.ticker.C:
			e.process(ctx)
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// process pops the next item from the front of the queue, applies every
// registered rule, tags each produced triplet with the rule's name, and
// invokes the callback.
func (e *Engine) process(ctx context.Context) {
	e.mu.Lock()
	if len(e.queue) == 0 {
		e.mu.Unlock()
		return
	}
	content := e.queue[0]
	e.queue = e.queue[1:]
	e.mu.Unlock()

	var triplets []dkg.Triplet
	for _, rule := range e.registry.All() {
		for _, t := range rule.Apply(content) {
			t.AddRule(rule.Name())
			triplets = append(triplets, t)
		}
	}
	e.callback(ctx, content, triplets)
}

// Shutdown cancels the interval timer. Safe to call even if Start was
// never called.
func (e *Engine) Shutdown() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.stop)
	<-e.done
}
