package rastergo

import (
	"context"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/rastergo/blobstore"
	"github.com/hupe1980/rastergo/chunk"
	"github.com/hupe1980/rastergo/internal/resource"
)

// gridHandle is the non-generic surface the Env needs from a grid of any
// cell type: identity, the set of chunks worth swapping, and the swap-out
// itself.
type gridHandle interface {
	gridID() uint64
	// swapSet returns the packed IDs of resident, non-Uniform chunks.
	// The Env must not mutate it.
	swapSet() *roaring64.Bitmap
	// swapOut serializes the chunk to the blob store and drops its
	// in-memory representation, returning the bytes freed.
	swapOut(ctx context.Context, id chunk.ID) (int64, error)
}

// Evicted identifies one chunk removed from memory by an eviction pass.
// Callers that pinned their way through an operation can use the detail to
// re-validate or reload.
type Evicted struct {
	GridID uint64
	Chunk  chunk.ID
}

// Exclusion shields a grid, or a single chunk, from an eviction pass.
type Exclusion struct {
	gridID    uint64
	id        chunk.ID
	wholeGrid bool
}

// ExcludeGrid shields every chunk of the given grid from eviction.
func ExcludeGrid(gridID uint64) Exclusion {
	return Exclusion{gridID: gridID, wholeGrid: true}
}

// ExcludeChunk shields a single chunk from eviction.
func ExcludeChunk(gridID uint64, id chunk.ID) Exclusion {
	return Exclusion{gridID: gridID, id: id}
}

func excluded(excl []Exclusion, gridID uint64, id chunk.ID) bool {
	for _, e := range excl {
		if e.gridID != gridID {
			continue
		}
		if e.wholeGrid || e.id == id {
			return true
		}
	}
	return false
}

// Env is the explicit context every grid operates in. It owns the registry
// of live grids, the per-grid pinned sets, the chunk memory budget and the
// blob store chunks swap to. Construct one per process and pass it to every
// grid constructor; there is no hidden global.
//
// Env is not safe for concurrent use. The whole design is single-threaded
// and cooperative; a multi-threaded port would need a mutex here and one per
// grid, because pinning and eviction interleave across grids.
type Env struct {
	rc          *resource.Controller
	store       blobstore.Store
	logger      *Logger
	compression chunk.Compression

	nextGridID uint64
	grids      map[uint64]gridHandle
	gridIDs    []uint64 // ascending; fixes the eviction scan order
	pinned     map[uint64]*roaring64.Bitmap
}

// NewEnv creates an environment swapping to the given store.
func NewEnv(store blobstore.Store, opts ...EnvOption) *Env {
	o := envOptions{
		compression: chunk.CompressionLZ4,
		logger:      NoopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Env{
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:  o.memoryLimit,
			SwapIOBytesPerSec: o.swapIOPerSec,
		}),
		store:       store,
		logger:      o.logger,
		compression: o.compression,
		grids:       make(map[uint64]gridHandle),
		pinned:      make(map[uint64]*roaring64.Bitmap),
	}
}

// Store returns the blob store chunks swap to.
func (e *Env) Store() blobstore.Store { return e.store }

// MemoryUsage returns the tracked bytes of resident chunk representations.
func (e *Env) MemoryUsage() int64 { return e.rc.MemoryUsage() }

// MemoryLimit returns the configured budget (0 if unlimited).
func (e *Env) MemoryLimit() int64 { return e.rc.MemoryLimit() }

func (e *Env) register(h gridHandle) uint64 {
	e.nextGridID++
	id := e.nextGridID
	e.grids[id] = h
	e.pinned[id] = roaring64.New()

	i, _ := slices.BinarySearch(e.gridIDs, id)
	e.gridIDs = slices.Insert(e.gridIDs, i, id)
	return id
}

func (e *Env) deregister(id uint64) {
	delete(e.grids, id)
	delete(e.pinned, id)
	if i, ok := slices.BinarySearch(e.gridIDs, id); ok {
		e.gridIDs = slices.Delete(e.gridIDs, i, i+1)
	}
}

// pin marks a chunk required by an in-flight operation so eviction passes
// skip it. It reports whether this call added the pin; a false return means
// the chunk was already pinned by an enclosing scope, which then keeps
// ownership of the release.
func (e *Env) pin(gridID uint64, id chunk.ID) bool {
	p, ok := e.pinned[gridID]
	if !ok {
		return false
	}
	return p.CheckedAdd(id.Pack())
}

// unpin releases a pin taken with pin.
func (e *Env) unpin(gridID uint64, id chunk.ID) {
	if p, ok := e.pinned[gridID]; ok {
		p.Remove(id.Pack())
	}
}

func (e *Env) isPinned(gridID uint64, id chunk.ID) bool {
	p, ok := e.pinned[gridID]
	return ok && p.Contains(id.Pack())
}

// pickVictim selects the lowest (gridID, chunkID) resident, non-pinned,
// non-Uniform chunk outside the exclusion set.
func (e *Env) pickVictim(excl []Exclusion) (gridHandle, chunk.ID, bool) {
	for _, gid := range e.gridIDs {
		h := e.grids[gid]
		it := h.swapSet().Iterator()
		for it.HasNext() {
			id := chunk.Unpack(it.Next())
			if e.isPinned(gid, id) || excluded(excl, gid, id) {
				continue
			}
			return h, id, true
		}
	}
	return nil, chunk.ID{}, false
}

// EnsureHeadroom swaps chunks out until the budget has at least need bytes
// free, and returns how many chunks were evicted. If no eligible chunk
// remains while the budget is still short, it fails with
// ErrResourceExhausted (wrapped), leaving the evictions it did make in
// place.
func (e *Env) EnsureHeadroom(ctx context.Context, need int64, excl ...Exclusion) (int, error) {
	evicted, err := e.EnsureHeadroomDetail(ctx, need, excl...)
	return len(evicted), err
}

// EnsureHeadroomDetail is EnsureHeadroom reporting exactly which chunks were
// evicted instead of only how many.
func (e *Env) EnsureHeadroomDetail(ctx context.Context, need int64, excl ...Exclusion) ([]Evicted, error) {
	var evicted []Evicted
	for e.rc.Available() < need {
		h, id, ok := e.pickVictim(excl)
		if !ok {
			err := fmt.Errorf("need %d bytes, %d available, no evictable chunk: %w",
				need, e.rc.Available(), ErrResourceExhausted)
			e.logger.LogHeadroom(ctx, need, len(evicted), err)
			return evicted, err
		}

		freed, err := h.swapOut(ctx, id)
		if err != nil {
			e.logger.LogSwapOut(ctx, h.gridID(), id, 0, err)
			return evicted, err
		}
		e.rc.ReleaseMemory(freed)
		e.logger.LogSwapOut(ctx, h.gridID(), id, freed, nil)
		evicted = append(evicted, Evicted{GridID: h.gridID(), Chunk: id})
	}
	e.logger.LogHeadroom(ctx, need, len(evicted), nil)
	return evicted, nil
}

// acquireChunkMemory reserves bytes for a new chunk representation. On a
// denied reservation it runs exactly one eviction pass and retries once;
// a second denial fails with ErrResourceExhausted. The explicit two-attempt
// loop bounds the recovery: there is no recursive retry.
func (e *Env) acquireChunkMemory(ctx context.Context, bytes int64, excl ...Exclusion) error {
	if e.rc.TryAcquireMemory(bytes) {
		return nil
	}

	if _, err := e.EnsureHeadroom(ctx, bytes, excl...); err != nil {
		return err
	}

	if e.rc.TryAcquireMemory(bytes) {
		return nil
	}
	return fmt.Errorf("allocating %d bytes after eviction pass: %w", bytes, ErrResourceExhausted)
}

// releaseChunkMemory returns bytes of a dropped representation to the budget.
func (e *Env) releaseChunkMemory(bytes int64) {
	e.rc.ReleaseMemory(bytes)
}

// swapIO throttles a swap write of the given size.
func (e *Env) swapIO(ctx context.Context, bytes int) error {
	return e.rc.AcquireIO(ctx, bytes)
}
