/*
Package notify provides the ordered, synchronous event fan-out used by the storefront stores.

A store enqueues an event while it still holds its own lock, so events are queued in commit
order, and flushes after unlocking, so subscribers may freely read the store or trigger new
transitions. Events raised by a subscriber are appended to the queue and delivered after the
current one, never interleaved with it.

Flush returns once every event enqueued before it has reached every subscriber. While one
goroutine delivers, a Flush from another goroutine waits for it; a Flush from inside a
subscriber returns at once and its events follow the current one.
*/
package notify

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Broadcaster delivers events of type T to its subscribers in enqueue order.
// The zero value is ready to use.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	subs   []subscriber[T]
	nextID uint64
	queue  []T

	// enqueued and delivered count events; an event numbered n has been delivered once
	// delivered >= n.
	enqueued  uint64
	delivered uint64

	// dispatcher is the id of the goroutine delivering events, 0 when idle.
	dispatcher uint64
}

// Subscribe registers fn and returns a function that removes it again.
// Subscribers are called in registration order.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Enqueue appends ev to the delivery queue without delivering it.
func (b *Broadcaster[T]) Enqueue(ev T) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.enqueued++
	b.mu.Unlock()
}

// Flush delivers queued events until the queue is empty and returns once the events
// enqueued before the call have been delivered.
func (b *Broadcaster[T]) Flush() {
	me := goroutineID()

	b.mu.Lock()
	defer b.mu.Unlock()

	target := b.enqueued
	for b.delivered < target {
		switch b.dispatcher {
		case 0:
			b.dispatch(me)
		case me:
			// Called by a subscriber; the enclosing Flush delivers the rest.
			return
		default:
			b.waitLocked()
		}
	}
}

// dispatch delivers the queue on the calling goroutine. Callers hold mu.
func (b *Broadcaster[T]) dispatch(me uint64) {
	b.dispatcher = me
	defer func() {
		b.dispatcher = 0
		b.broadcastLocked()
	}()

	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		subs := append([]subscriber[T](nil), b.subs...)
		b.mu.Unlock()

		func() {
			defer func() {
				b.mu.Lock()
				b.delivered++
				b.broadcastLocked()
			}()
			for _, s := range subs {
				s.fn(ev)
			}
		}()
	}
}

func (b *Broadcaster[T]) waitLocked() {
	if b.cond == nil {
		b.cond = sync.NewCond(&b.mu)
	}
	b.cond.Wait()
}

func (b *Broadcaster[T]) broadcastLocked() {
	if b.cond != nil {
		b.cond.Broadcast()
	}
}

// Publish enqueues ev and flushes the queue.
func (b *Broadcaster[T]) Publish(ev T) {
	b.Enqueue(ev)
	b.Flush()
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the id of the calling goroutine, read from the header of its stack
// trace ("goroutine 42 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	id, _ := strconv.ParseUint(string(field), 10, 64)
	return id
}
