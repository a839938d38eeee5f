package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/metroflow/internal/domain/model"
)

func job(i int) Job {
	return Job{Index: i, Station: model.Station{Name: fmt.Sprintf("station-%d", i)}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Station.Name != "station-1" || j.Index != 1 {
		t.Errorf("unexpected job %+v", j)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(1)) || !q.Enqueue(ctx, job(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		q.Enqueue(ctx, job(i))
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, job(9)) {
		t.Error("expected enqueue after close to fail")
	}

	var got []int
	for j := range q.Dequeue(ctx) {
		got = append(got, j.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("expected queued jobs in order, got %v", got)
	}
}

func TestInMemoryQueue_CancelStopsDequeue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()
	if _, ok := <-ch; ok {
		t.Error("expected dequeue channel to close after cancel")
	}
}

func TestInMemoryQueue_ConcurrentConsumers(t *testing.T) {
	const n = 200
	q := NewInMemoryQueue(WithCapacity(n))
	ctx := context.Background()
	for i := 0; i < n; i++ {
		q.Enqueue(ctx, job(i))
	}
	_ = q.Close()

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range q.Dequeue(ctx) {
				mu.Lock()
				seen[j.Index] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct jobs, got %d", n, len(seen))
	}
}
