package runtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"vecjit/internal/config"
)

func TestDoAllCoversTheWholeRangeExactlyOnce(t *testing.T) {
	cfg := config.Default()
	cfg.DoAllTileMin = 4
	cfg.DoAllTileMax = 16
	cfg.Workers = 3

	var mu sync.Mutex
	var seen []int

	err := DoAll(context.Background(), cfg, 0, 100, func(tile Tile) error {
		mu.Lock()
		defer mu.Unlock()
		for i := tile.Start; i < tile.End; i++ {
			seen = append(seen, i)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("DoAll returned %v", err)
	}

	sort.Ints(seen)
	if len(seen) != 100 {
		t.Fatalf("want 100 elements covered exactly once, got %d", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("want a contiguous permutation of [0,100), gap/dup at %d (value %d)", i, v)
		}
	}
}

func TestDoAllEmptyRangeIsANoOp(t *testing.T) {
	called := false
	err := DoAll(context.Background(), config.Default(), 5, 5, func(Tile) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("want nil error on an empty range, got %v", err)
	}
	if called {
		t.Error("want fn never called for an empty [start,end)")
	}
}

func TestDoAllPropagatesTheFirstTileError(t *testing.T) {
	boom := errors.New("boom")
	cfg := config.Default()
	cfg.DoAllTileMin = 2
	cfg.DoAllTileMax = 2
	cfg.Workers = 2

	err := DoAll(context.Background(), cfg, 0, 10, func(tile Tile) error {
		if tile.Start == 4 {
			return boom
		}
		return nil
	})
	if err == nil {
		t.Fatal("want the tile's error surfaced")
	}
}

func TestTileSizeForRespectsConfiguredBounds(t *testing.T) {
	minCfg := config.Config{DoAllTileMin: 10, DoAllTileMax: 20, Workers: 20}
	if got := tileSizeFor(minCfg, 100); got != 10 {
		t.Errorf("want the per-worker share clamped up to DoAllTileMin, got %d", got)
	}

	maxCfg := config.Config{DoAllTileMin: 10, DoAllTileMax: 20, Workers: 1}
	if got := tileSizeFor(maxCfg, 1000); got != 20 {
		t.Errorf("want the per-worker share clamped down to DoAllTileMax, got %d", got)
	}
}
