package workerpool

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPool_ExecutesTasks(t *testing.T) {
	pool := New(2, 8, testLogger())
	defer pool.Shutdown()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := pool.Submit("", func() {
			defer wg.Done()
			count.Add(1)
		})
		if !ok {
			t.Fatalf("Submit failed")
		}
	}

	wg.Wait()
	if got := count.Load(); got != 5 {
		t.Errorf("expected 5 tasks executed, got %d", got)
	}
}

func TestPool_CoalescesSameKey(t *testing.T) {
	pool := New(1, 8, testLogger())
	defer pool.Shutdown()

	release := make(chan struct{})
	blocked := make(chan struct{})
	pool.Submit("block", func() {
		close(blocked)
		<-release
	})
	<-blocked

	// worker 阻塞期间，同 key 重复提交应被合并为一次
	var count atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		ok := pool.Submit("refresh", func() {
			count.Add(1)
			select {
			case done <- struct{}{}:
			default:
			}
		})
		if !ok {
			t.Fatalf("Submit failed")
		}
	}

	close(release)
	<-done

	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("expected coalesced execution count 1, got %d", got)
	}

	// 排队结束后同 key 可以再次提交
	pool.Submit("refresh", func() {
		count.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
	})
	<-done
	if got := count.Load(); got != 2 {
		t.Errorf("expected second execution, got %d", got)
	}
}

func TestPool_RecoversPanic(t *testing.T) {
	pool := New(1, 4, testLogger())
	defer pool.Shutdown()

	pool.Submit("", func() {
		panic("boom")
	})

	// panic 被捕获后 worker 仍然可用
	done := make(chan struct{})
	pool.Submit("", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive task panic")
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := New(1, 4, testLogger())
	pool.Shutdown()

	if pool.Submit("", func() {}) {
		t.Error("Submit after shutdown should return false")
	}
}
