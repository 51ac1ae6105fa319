package shared_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestLockSerializesSameKey(t *testing.T) {
	locker := shared.NewKeyLocker()

	var mu sync.Mutex
	var events []int

	release := locker.Lock("stock:1:1")

	done := make(chan struct{})
	go func() {
		r := locker.Lock("stock:1:1")
		mu.Lock()
		events = append(events, 2)
		mu.Unlock()
		r()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	events = append(events, 1)
	mu.Unlock()
	release()

	<-done
	require.Equal(t, []int{1, 2}, events)
}

func TestLockAllowsDistinctKeysConcurrently(t *testing.T) {
	locker := shared.NewKeyLocker()

	release := locker.Lock("stock:1:1")
	defer release()

	acquired := make(chan struct{})
	go func() {
		r := locker.Lock("stock:2:1")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated key blocked")
	}
}

func TestLockManyCollapsesDuplicates(t *testing.T) {
	locker := shared.NewKeyLocker()

	key := shared.StockLockKey(5, 9)
	release := locker.LockMany([]string{key, key, key})
	release()

	// A second pass must succeed immediately; duplicate keys in the first
	// call would deadlock against themselves otherwise.
	release = locker.LockMany([]string{key})
	release()
}

func TestLockManyAvoidsDeadlockOnOpposingOrders(t *testing.T) {
	locker := shared.NewKeyLocker()
	keys := []string{shared.StockLockKey(1, 1), shared.StockLockKey(2, 1), shared.StockLockKey(3, 1)}
	reversed := []string{keys[2], keys[1], keys[0]}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release := locker.LockMany(keys)
			time.Sleep(time.Millisecond)
			release()
		}()
		go func() {
			defer wg.Done()
			release := locker.LockMany(reversed)
			time.Sleep(time.Millisecond)
			release()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing lock orders deadlocked")
	}
}

func TestConcurrentIncrementsUnderLock(t *testing.T) {
	locker := shared.NewKeyLocker()
	key := shared.StockLockKey(1, 1)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locker.Lock(key)
			counter++
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, 100, counter)
}

func TestLockKeyFormats(t *testing.T) {
	require.Equal(t, "stock:3:7", shared.StockLockKey(3, 7))
	require.Equal(t, "batch:3:7:B-001", shared.BatchLockKey(3, 7, "B-001"))
}
