// Package rastergo stores large 2-D numeric rasters that do not fit
// comfortably in memory.
//
// A grid is partitioned into fixed-extent chunks, each held in the cheapest
// encoding its contents allow (uniform, sparse or dense). All grids share an
// Env, which carries the chunk memory budget: when an allocation would
// exceed the budget, the Env synchronously swaps chunks out to a pluggable
// blob store and reloads them transparently on next access.
//
//	env := rastergo.NewEnv(blobstore.NewMemoryStore(),
//	    rastergo.WithMemoryLimit(64<<20))
//
//	g, err := rastergo.NewGrid[float64](ctx, env, 10_000, 10_000, -9999,
//	    rastergo.WithChunkSize(256, 256))
//	if err != nil { ... }
//
//	prev, err := g.SetCell(ctx, 120, 7, 42.5)
//
// Grids keep incrementally maintained aggregate statistics (count, exact
// decimal sum, min/max with multiplicity) and answer spatial queries:
// cells within a radius of a point, and the nearest data-bearing cells to a
// point with exact decimal distances.
//
// The design is single-threaded and cooperative: swaps, reloads and
// statistics updates all happen synchronously inside the call that needs
// them, and there are no background goroutines.
package rastergo
