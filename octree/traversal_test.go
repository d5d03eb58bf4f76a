package octree

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"go.viam.com/pcgeom/progress"
)

type countParams struct {
	visits []atomic.Int32
}

func countPoints(cell Cell, params *countParams, np *progress.Normalized) error {
	for _, idx := range cell.Points {
		params.visits[idx].Inc()
	}
	np.Steps(len(cell.Points))
	return nil
}

func TestForEachCellVisitsEveryPointOnce(t *testing.T) {
	o := buildOctree(t, randomCloud(t, 4000, 20))

	for _, cfg := range []TraversalConfig{
		{},
		{Parallel: true},
		{Parallel: true, MaxThreads: 3},
	} {
		for _, level := range []int{0, 3, 6} {
			params := &countParams{visits: make([]atomic.Int32, o.Size())}
			rec := &progress.Recorder{}
			err := ForEachCell(context.Background(), o, level, params, countPoints, cfg, rec)
			test.That(t, err, test.ShouldBeNil)
			for i := range params.visits {
				test.That(t, params.visits[i].Load(), test.ShouldEqual, int32(1))
			}
			test.That(t, rec.Last(), test.ShouldEqual, 1.)
		}
	}
}

func TestForEachCellSequentialOrder(t *testing.T) {
	o := buildOctree(t, randomCloud(t, 1000, 21))
	var addresses []uint64
	err := ForEachCell(context.Background(), o, 4, &struct{}{},
		func(cell Cell, _ *struct{}, _ *progress.Normalized) error {
			addresses = append(addresses, cell.Address)
			return nil
		}, TraversalConfig{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, addresses, test.ShouldHaveLength, o.CellCount(4))
	for k := 1; k < len(addresses); k++ {
		test.That(t, addresses[k], test.ShouldBeGreaterThan, addresses[k-1])
	}
}

func TestForEachCellErrors(t *testing.T) {
	o := buildOctree(t, randomCloud(t, 1000, 22))
	errBoom := errors.New("boom")

	for _, cfg := range []TraversalConfig{{}, {Parallel: true, MaxThreads: 4}} {
		var calls atomic.Int32
		err := ForEachCell(context.Background(), o, 5, &struct{}{},
			func(cell Cell, _ *struct{}, _ *progress.Normalized) error {
				calls.Inc()
				return errBoom
			}, cfg, nil)
		test.That(t, err, test.ShouldEqual, errBoom)
		if !cfg.Parallel {
			test.That(t, calls.Load(), test.ShouldEqual, int32(1))
		}

		err = ForEachCell(context.Background(), o, 5, &struct{}{},
			func(cell Cell, _ *struct{}, _ *progress.Normalized) error {
				panic("bad cell")
			}, cfg, nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "bad cell")
	}

	err := ForEachCell(context.Background(), o, MaxLevel+1, &struct{}{},
		func(Cell, *struct{}, *progress.Normalized) error { return nil }, TraversalConfig{}, nil)
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)
}

func TestForEachCellCancellation(t *testing.T) {
	o := buildOctree(t, randomCloud(t, 1000, 23))

	for _, cfg := range []TraversalConfig{{}, {Parallel: true}} {
		rec := &progress.Recorder{}
		rec.Cancel()
		var calls atomic.Int32
		err := ForEachCell(context.Background(), o, 5, &struct{}{},
			func(Cell, *struct{}, *progress.Normalized) error {
				calls.Inc()
				return nil
			}, cfg, rec)
		test.That(t, err, test.ShouldEqual, ErrCancelled)
		test.That(t, calls.Load(), test.ShouldEqual, int32(0))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = ForEachCell(ctx, o, 5, &struct{}{},
			func(Cell, *struct{}, *progress.Normalized) error {
				calls.Inc()
				return nil
			}, cfg, nil)
		test.That(t, err, test.ShouldEqual, ErrCancelled)
		test.That(t, calls.Load(), test.ShouldEqual, int32(0))

		// cancelling from within a cell stops the traversal
		rec = &progress.Recorder{}
		err = ForEachCell(context.Background(), o, 5, &struct{}{},
			func(Cell, *struct{}, *progress.Normalized) error {
				rec.Cancel()
				return nil
			}, cfg, rec)
		test.That(t, err, test.ShouldEqual, ErrCancelled)
	}
}
