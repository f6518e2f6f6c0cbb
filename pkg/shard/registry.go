// Package shard runs one single-writer actor per routing key. Calls against
// the same key execute strictly one at a time in arrival order; different
// keys run concurrently and share no state.
package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrInvalidKey is returned for routing keys that are empty or contain
	// characters unsafe for file and schema names.
	ErrInvalidKey = errors.New("invalid shard key")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("shard registry closed")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,57}$`)

const defaultMailboxSize = 64

// ValidateKey reports whether key can name a shard.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Handler executes operations for one shard.
type Handler interface {
	Execute(ctx context.Context, operation string, payload json.RawMessage) (any, error)
	Close() error
}

// Factory opens the Handler for key. It runs on the shard's own goroutine the
// first time key is used.
type Factory func(ctx context.Context, key string) (Handler, error)

type result struct {
	resp any
	err  error
}

type call struct {
	ctx       context.Context
	operation string
	payload   json.RawMessage
	reply     chan result
}

type actor struct {
	key     string
	mailbox chan call
}

// Registry lazily starts one actor per key.
type Registry struct {
	factory Factory
	logger  *zap.Logger

	// sendMu is held shared while a call is queued and exclusively by Close,
	// so no call is sent on a closed mailbox.
	sendMu sync.RWMutex
	closed bool

	mu     sync.Mutex
	actors map[string]*actor
	wg     sync.WaitGroup
}

// NewRegistry creates a Registry that opens shards with factory.
func NewRegistry(factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory: factory,
		logger:  logger,
		actors:  make(map[string]*actor),
	}
}

// Execute queues operation on the actor for key and waits for its result.
// If ctx ends first, Execute returns ctx.Err(); a call already picked up by
// the actor still runs to completion.
func (r *Registry) Execute(ctx context.Context, key, operation string, payload json.RawMessage) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	c := call{
		ctx:       ctx,
		operation: operation,
		payload:   payload,
		reply:     make(chan result, 1),
	}
	if err := r.enqueue(ctx, key, c); err != nil {
		return nil, err
	}

	select {
	case res := <-c.reply:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Keys returns the keys of every started shard.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.actors))
	for k := range r.actors {
		keys = append(keys, k)
	}
	return keys
}

// Close stops accepting calls, lets every actor drain its queued calls and
// closes every opened shard.
func (r *Registry) Close() {
	r.sendMu.Lock()
	if r.closed {
		r.sendMu.Unlock()
		return
	}
	r.closed = true

	r.mu.Lock()
	for _, a := range r.actors {
		close(a.mailbox)
	}
	r.mu.Unlock()
	r.sendMu.Unlock()

	r.wg.Wait()
}

func (r *Registry) enqueue(ctx context.Context, key string, c call) error {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.closed {
		return ErrClosed
	}

	select {
	case r.actor(key).mailbox <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) actor(key string) *actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[key]; ok {
		return a
	}

	a := &actor{
		key:     key,
		mailbox: make(chan call, defaultMailboxSize),
	}
	r.actors[key] = a

	r.wg.Add(1)
	go r.run(a)

	r.logger.Debug("shard started", zap.String("shard", key))
	return a
}

// run is the actor loop. The handler is opened on the first call so a slow
// open never blocks other shards; a failed open is retried on the next call.
func (r *Registry) run(a *actor) {
	defer r.wg.Done()

	var handler Handler
	for c := range a.mailbox {
		if c.ctx.Err() != nil {
			c.reply <- result{err: c.ctx.Err()}
			continue
		}

		if handler == nil {
			h, err := r.factory(c.ctx, a.key)
			if err != nil {
				r.logger.Error("opening shard failed", zap.String("shard", a.key), zap.Error(err))
				c.reply <- result{err: fmt.Errorf("opening shard %s: %w", a.key, err)}
				continue
			}
			handler = h
		}

		resp, err := handler.Execute(c.ctx, c.operation, c.payload)
		c.reply <- result{resp: resp, err: err}
	}

	if handler != nil {
		if err := handler.Close(); err != nil {
			r.logger.Warn("closing shard failed", zap.String("shard", a.key), zap.Error(err))
		}
	}
	r.logger.Debug("shard stopped", zap.String("shard", a.key))
}
