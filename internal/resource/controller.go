// Package resource tracks the process-wide chunk memory budget and throttles
// swap IO.
package resource

import (
	"context"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the budget for resident chunk representations.
	// If 0, no limit is enforced (only tracking).
	MemoryLimitBytes int64

	// SwapIOBytesPerSec is the maximum throughput for swap-out writes.
	// If 0, unlimited.
	SwapIOBytesPerSec int64
}

// Controller manages the chunk memory budget. Acquisition is non-blocking:
// a denied acquisition is the signal for the environment to run an eviction
// pass, not something to wait out.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.SwapIOBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.SwapIOBytesPerSec), int(cfg.SwapIOBytesPerSec))
	}

	return c
}

// TryAcquireMemory attempts to reserve bytes against the budget.
// Returns false if the budget would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current tracked usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured budget in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// Available returns the headroom left under the budget, or MaxInt64 when no
// budget is configured.
func (c *Controller) Available() int64 {
	if c == nil || c.cfg.MemoryLimitBytes == 0 {
		return math.MaxInt64
	}
	return c.cfg.MemoryLimitBytes - c.memUsed.Load()
}

// AcquireIO waits until the swap IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
