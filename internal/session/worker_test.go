package session

import (
	"sync"
	"testing"
	"time"
)

func TestWorker_RunsInOrder(t *testing.T) {
	w := newWorker()
	defer w.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := range 100 {
		w.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	w.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestWorker_StopRunsQueuedWork(t *testing.T) {
	w := newWorker()

	ran := 0
	block := make(chan struct{})
	w.Submit(func() { <-block })
	for range 3 {
		w.Submit(func() { ran++ })
	}
	close(block)
	w.Stop()

	if ran != 3 {
		t.Errorf("expected queued work to run before stop, got %d", ran)
	}
	if w.Submit(func() {}) {
		t.Error("Submit should fail after Stop")
	}
	if w.Do(func() { t.Error("Do ran after Stop") }) {
		t.Error("Do should fail after Stop")
	}
}

func TestQueueDispatcher_DoesNotBlockOnDelivery(t *testing.T) {
	release := make(chan struct{})
	got := make(chan int, 3)
	q := NewQueueDispatcher(func(fn func()) {
		<-release
		fn()
	})
	defer q.Close()

	for i := range 3 {
		q.Dispatch(func() { got <- i })
	}
	close(release)

	for want := range 3 {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %d, got %d", want, v)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("callback not delivered")
		}
	}
}
