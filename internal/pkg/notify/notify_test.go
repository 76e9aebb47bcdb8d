package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	var b Broadcaster[int]
	var got []string

	b.Subscribe(func(v int) { got = append(got, "a") })
	b.Subscribe(func(v int) { got = append(got, "b") })

	b.Publish(1)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnsubscribe(t *testing.T) {
	var b Broadcaster[int]
	calls := 0

	cancel := b.Subscribe(func(int) { calls++ })
	b.Publish(1)
	cancel()
	b.Publish(2)

	assert.Equal(t, 1, calls)
}

func TestNestedPublishIsDeliveredAfterCurrentEvent(t *testing.T) {
	var b Broadcaster[int]
	var order []int

	b.Subscribe(func(v int) {
		order = append(order, v)
		if v == 1 {
			b.Publish(2)
			order = append(order, -1)
		}
	})
	b.Subscribe(func(v int) { order = append(order, v*10) })

	b.Publish(1)

	assert.Equal(t, []int{1, -1, 10, 2, 20}, order)
}

func TestEnqueueWithoutFlushDefersDelivery(t *testing.T) {
	var b Broadcaster[string]
	var got []string
	b.Subscribe(func(s string) { got = append(got, s) })

	b.Enqueue("first")
	b.Enqueue("second")
	assert.Empty(t, got)

	b.Flush()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestFlushWaitsForDeliveryOnAnotherGoroutine(t *testing.T) {
	var b Broadcaster[int]

	var mu sync.Mutex
	var seen []int
	entered := make(chan struct{})
	release := make(chan struct{})

	b.Subscribe(func(v int) {
		if v == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	go b.Publish(1)
	<-entered

	returned := make(chan []int, 1)
	go func() {
		b.Publish(2)
		mu.Lock()
		returned <- append([]int(nil), seen...)
		mu.Unlock()
	}()

	assert.Never(t, func() bool { return len(returned) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(release)

	select {
	case got := <-returned:
		assert.Equal(t, []int{1, 2}, got)
	case <-time.After(time.Second):
		t.Fatal("Publish did not return after its event was delivered")
	}
}

func TestPanickingSubscriberDoesNotWedgeLaterFlushes(t *testing.T) {
	var b Broadcaster[int]
	var got []int

	b.Subscribe(func(v int) {
		if v == 1 {
			panic("boom")
		}
		got = append(got, v)
	})

	assert.Panics(t, func() { b.Publish(1) })

	done := make(chan struct{})
	go func() {
		b.Publish(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after a subscriber panicked")
	}
	assert.Equal(t, []int{2}, got)
}
