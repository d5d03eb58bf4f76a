package octree

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/pcgeom/progress"
	"go.viam.com/pcgeom/utils"
)

// CellFunc processes one cell. params is shared by every invocation of a traversal and
// must only be read, or written at locations owned by the cell's points. np counts the
// processed points; a CellFunc should stop early when np reports a cancellation.
type CellFunc[P any] func(cell Cell, params *P, np *progress.Normalized) error

// TraversalConfig selects how cells are dispatched.
type TraversalConfig struct {
	// Parallel processes cells concurrently when set.
	Parallel bool
	// MaxThreads bounds the number of concurrent cells. 0 means utils.ParallelFactor.
	MaxThreads int
}

func (cfg TraversalConfig) threads() int {
	if !cfg.Parallel {
		return 1
	}
	if cfg.MaxThreads > 0 {
		return cfg.MaxThreads
	}
	return utils.ParallelFactor
}

// ForEachCell runs fn on every non empty cell of the level. The first error returned by fn
// aborts the traversal and is returned. When ctx is done or cb asks for cancellation, no new
// cell is started and ErrCancelled is returned. A panic in fn is returned as an error.
//
// Sequentially, cells are visited in increasing address order. In parallel, any order may be
// used and fn must only write data owned by the points of its cell.
func ForEachCell[P any](
	ctx context.Context,
	o *Octree,
	level int,
	params *P,
	fn CellFunc[P],
	cfg TraversalConfig,
	cb progress.Callback,
) error {
	if level < 0 || level > MaxLevel {
		return errors.Wrapf(ErrInvalidInput, "level %d out of [0, %d]", level, MaxLevel)
	}
	cb = progress.OrNoop(cb)
	np := progress.NewNormalized(cb, o.Size())
	threads := cfg.threads()

	o.logger.Debugw("traversing cells", "level", level, "cells", o.CellCount(level), "threads", threads)

	cancelled := func() bool {
		return ctx.Err() != nil || cb.Cancelled()
	}

	if threads <= 1 {
		for cell := range o.CellsAtLevel(level) {
			if cancelled() {
				return ErrCancelled
			}
			if err := runCell(cell, params, fn, np); err != nil {
				return err
			}
		}
		if cancelled() {
			return ErrCancelled
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(threads)
	stopped := false
	for cell := range o.CellsAtLevel(level) {
		if cancelled() || groupCtx.Err() != nil {
			stopped = true
			break
		}
		group.Go(func() error {
			if groupCtx.Err() != nil || cb.Cancelled() {
				return nil
			}
			return runCell(cell, params, fn, np)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	if stopped || cancelled() {
		return ErrCancelled
	}
	return nil
}

func runCell[P any](cell Cell, params *P, fn CellFunc[P], np *progress.Normalized) (err error) {
	defer func() {
		if thePanic := recover(); thePanic != nil {
			err = fmt.Errorf("got panic processing cell %d at level %d: %v", cell.Address, cell.Level, thePanic)
		}
	}()
	return fn(cell, params, np)
}
