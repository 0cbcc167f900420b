package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold, which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// PoolStats is the subset of *pgxpool.Stat used by PoolSaturationCheck.
type PoolStats interface {
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

// PoolSaturationCheck reports unhealthy while every pool connection is in use
// and callers had to wait for one since the previous run.
func PoolSaturationCheck(stat func() PoolStats) CheckFunc {
	var lastWaits int64
	return func(_ context.Context) error {
		s := stat()
		waits := s.EmptyAcquireCount()
		queued := waits > lastWaits
		lastWaits = waits
		if queued && s.AcquiredConns() >= s.MaxConns() {
			return errors.Errorf("all %d connections acquired with callers waiting", s.MaxConns())
		}
		return nil
	}
}
