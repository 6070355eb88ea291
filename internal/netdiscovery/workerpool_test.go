package netdiscovery

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := newWorkerPool(2)
	var current, max int32

	for i := 0; i < 10; i++ {
		pool.Go(func() {
			n := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		})
	}
	pool.Wait()

	if max > 2 {
		t.Errorf("observed concurrency %d, want <= 2", max)
	}
}

func TestWorkerPool_WaitBlocksUntilAllDone(t *testing.T) {
	pool := newWorkerPool(4)
	var done int32
	for i := 0; i < 20; i++ {
		pool.Go(func() {
			atomic.AddInt32(&done, 1)
		})
	}
	pool.Wait()

	if done != 20 {
		t.Errorf("done = %d, want 20", done)
	}
}

func TestNewWorkerPool_ZeroOrNegativeTreatedAsOne(t *testing.T) {
	pool := newWorkerPool(0)
	if cap(pool.sem) != 1 {
		t.Errorf("cap(sem) = %d, want 1", cap(pool.sem))
	}
}
