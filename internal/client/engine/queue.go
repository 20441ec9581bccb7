package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophcache/internal/client/modifier"
	"github.com/iudanet/gophcache/internal/client/store"
	"github.com/iudanet/gophcache/internal/models"
)

// ProcessActionQueue flushes the queues of the given models. Entries of one
// model are sent concurrently; models are processed concurrently too.
//
// Entries that succeed are acknowledged, failed ones stay queued and their
// errors are joined into the returned error.
func (e *Engine) ProcessActionQueue(ctx context.Context, types ...string) error {
	return e.flushAll(ctx, types, false)
}

// SequentialProcessActionQueue flushes the queues of the given models one
// entry at a time, in queue order: posts, then patches, then deletes. The
// first failure stops the model's chain; that entry and every later one stay
// queued.
func (e *Engine) SequentialProcessActionQueue(ctx context.Context, types ...string) error {
	return e.flushAll(ctx, types, true)
}

func (e *Engine) flushAll(ctx context.Context, types []string, sequential bool) error {
	mutators := make([]*store.Mutator, 0, len(types))
	for _, t := range types {
		m, err := e.mutator(t)
		if err != nil {
			return err
		}
		mutators = append(mutators, m)
	}

	var g errgroup.Group
	for _, m := range mutators {
		g.Go(func() error {
			return e.flush(ctx, m, sequential)
		})
	}
	return g.Wait()
}

func (e *Engine) flush(ctx context.Context, m *store.Mutator, sequential bool) error {
	sl := m.Slice()
	if !sl.HasAction() {
		return nil
	}

	model := m.Model().Name
	entries := sl.ActionQueue.Entries()
	start := time.Now()

	e.logger.Debug("Flushing action queue",
		"model", model,
		"entries", len(entries),
		"sequential", sequential)

	var (
		done []models.QueuedAction
		err  error
	)
	if sequential {
		done, err = e.flushSequential(ctx, entries)
	} else {
		done, err = e.flushParallel(ctx, entries)
	}

	m.Settle(done)
	e.metrics.Flush(model, len(done), len(entries)-len(done), time.Since(start))

	if err != nil {
		e.logger.Warn("Action queue flushed partially",
			"model", model,
			"sent", len(done),
			"pending", len(entries)-len(done),
			"error", err)
		return fmt.Errorf("flush %s: %w", model, err)
	}
	return nil
}

func (e *Engine) flushSequential(ctx context.Context, entries []models.QueuedAction) ([]models.QueuedAction, error) {
	done := make([]models.QueuedAction, 0, len(entries))
	for _, a := range entries {
		if _, err := e.ProcessAction(ctx, a); err != nil {
			return done, err
		}
		done = append(done, a)
	}
	return done, nil
}

func (e *Engine) flushParallel(ctx context.Context, entries []models.QueuedAction) ([]models.QueuedAction, error) {
	errs := make([]error, len(entries))

	var wg sync.WaitGroup
	for i, a := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.ProcessAction(ctx, a)
		}()
	}
	wg.Wait()

	done := make([]models.QueuedAction, 0, len(entries))
	for i, a := range entries {
		if errs[i] == nil {
			done = append(done, a)
		}
	}
	return done, errors.Join(errs...)
}

// CancelActionQueue abandons the pending writes of the given models. Every
// id touched by the queue is restored from its origin snapshot (after the
// afterQueue hook), ids that were never confirmed by the backend are dropped
// from Items, and the queue is reset.
func (e *Engine) CancelActionQueue(ctx context.Context, types ...string) error {
	var errs []error
	for _, t := range types {
		m, err := e.mutator(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.cancel(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) cancel(ctx context.Context, m *store.Mutator) error {
	sl := m.Slice()
	if !sl.HasAction() {
		return nil
	}
	model := m.Model().Name

	var (
		origins     []models.Entity
		unconfirmed []string
	)
	for _, id := range sl.ActionQueue.IDs() {
		if origin, ok := sl.OriginItems[id]; ok {
			origins = append(origins, origin)
			continue
		}
		unconfirmed = append(unconfirmed, id)
	}

	restored, err := e.modifiers.ApplyAll(ctx, modifier.AfterQueue, model, origins)
	if err != nil {
		return err
	}

	if len(unconfirmed) > 0 {
		m.Delete(unconfirmed...)
	}
	if len(restored) > 0 {
		m.Restore(restored...)
	}
	m.ResetQueue()

	e.metrics.Cancel(model, sl.ActionQueue.Len())
	e.logger.Debug("Action queue cancelled",
		"model", model,
		"restored", len(restored),
		"dropped", len(unconfirmed))
	return nil
}
