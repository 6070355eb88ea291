package netdiscovery

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// AbortFlag is a cooperative shutdown signal shared between a termination
// handler and the scheduler's supervisor loop. It replaces the source's
// closure-captured boolean with an atomic, so no lock is needed to read it
// from the dispatch loop.
type AbortFlag struct {
	flag atomic.Bool
}

// Set raises the flag. Idempotent.
func (a *AbortFlag) Set() { a.flag.Store(true) }

// IsSet reports whether abort has been raised.
func (a *AbortFlag) IsSet() bool { return a.flag.Load() }

// WatchSignals raises flag on any of sig (SIGINT/SIGTERM when none are
// given) and returns a stop function that releases the underlying signal
// notification.
func WatchSignals(flag *AbortFlag, sig ...os.Signal) (stop func()) {
	if len(sig) == 0 {
		sig = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	done := make(chan struct{})

	go func() {
		select {
		case <-ch:
			flag.Set()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// Abort is the direct entry point the outer task framework calls when
// tearing the task down outside a running job (§4.9). If pid is nonzero it
// emits a single END for that process number; it does not touch the
// shared AbortFlag, since that flag only governs an in-progress run
// loop.
func Abort(reporter *Reporter, pid uint32) {
	if pid == 0 {
		return
	}
	reporter.SendEnd(context.Background(), pid)
}
