// Package runtime provides the pieces that live outside the interpreter's
// single-threaded core (§5 Concurrency & Resource Model): the doall(start,
// end, tile_min, tile_max) fan-out primitive, the companion runtime-helper
// library code generation links against (§6 Runtime helper library), and
// the parallel-moments merge the mean/cm2 fold needs.
package runtime

import (
	"context"

	"vecjit/internal/config"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Tile is one partition of a doall() range; ThreadIndex is stable across
// the call so a worker can pick its private slot in a per-thread
// accumulator bank (§5 Scheduling).
type Tile struct {
	Start, End  int
	ThreadIndex int
}

// DoAll partitions [start,end) into tiles sized between cfg.DoAllTileMin
// and cfg.DoAllTileMax and runs fn over each on the fixed-size worker pool
// (§5 Scheduling). It is the barrier the interpreter blocks at: "the
// interpreter never voluntarily suspends within a bytecode; it blocks
// only at doall barriers." The first error from any tile is returned
// after every in-flight tile finishes, via errgroup; in-flight
// concurrency is bounded to cfg.Workers by a weighted semaphore so a huge
// range does not spawn one goroutine per tile.
func DoAll(ctx context.Context, cfg config.Config, start, end int, fn func(Tile) error) error {
	if end <= start {
		return nil
	}
	tileSize := tileSizeFor(cfg, end-start)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)

	thread := 0
	for s := start; s < end; s += tileSize {
		e := s + tileSize
		if e > end {
			e = end
		}
		tile := Tile{Start: s, End: e, ThreadIndex: thread % cfg.Workers}
		thread++

		if err := sem.Acquire(gctx, 1); err != nil {
			return g.Wait()
		}
		g.Go(func() error {
			defer sem.Release(1)
			return fn(tile)
		})
	}
	return g.Wait()
}

// tileSizeFor picks a tile size in [DoAllTileMin, DoAllTileMax] that
// divides span roughly evenly across cfg.Workers, clamped to the
// configured bounds at either end.
func tileSizeFor(cfg config.Config, span int) int {
	if cfg.Workers <= 0 {
		return span
	}
	size := span / cfg.Workers
	if size < cfg.DoAllTileMin {
		size = cfg.DoAllTileMin
	}
	if size > cfg.DoAllTileMax {
		size = cfg.DoAllTileMax
	}
	if size <= 0 || size > span {
		size = span
	}
	return size
}
