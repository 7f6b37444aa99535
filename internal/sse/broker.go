// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is a single change notification. Project-scoped events carry the
// project name; the throttled listing refresh carries none.
type Event struct {
	Kind    string    `json:"kind"`
	Project string    `json:"project,omitempty"`
	At      time.Time `json:"at"`
}

const listingKind = "listing"

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (subscribers, frame sequence, listing throttle timestamp). Public
// methods communicate with this loop through channels, so no mutexes are
// required.
type Broker struct {
	listingMin time.Duration

	join   chan chan []byte
	leave  chan chan []byte
	events chan Event
	census chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given listing throttle interval.
func NewBroker(listingThrottle time.Duration) *Broker {
	if listingThrottle <= 0 {
		listingThrottle = 2 * time.Second
	}

	b := &Broker{
		listingMin: listingThrottle,
		join:       make(chan chan []byte),
		leave:      make(chan chan []byte),
		events:     make(chan Event, 256),
		census:     make(chan chan int),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	subscribers := make(map[chan []byte]struct{})
	var seq uint64
	var lastListing time.Time

	send := func(e Event) {
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		name := "project"
		if e.Kind == listingKind {
			name = listingKind
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, name, payload))

		for ch := range subscribers {
			select {
			case ch <- frame:
			default:
				// Subscriber buffer full; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subscribers {
				close(ch)
			}
			return

		case ch := <-b.join:
			subscribers[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}

		case e := <-b.events:
			send(e)
			if e.Project == "" {
				continue
			}
			// Project changes invalidate the listing view too, at most
			// once per throttle window.
			now := time.Now()
			if now.Sub(lastListing) >= b.listingMin {
				lastListing = now
				send(Event{Kind: listingKind})
			}

		case resp := <-b.census:
			resp <- len(subscribers)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.census <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

// PublishProjectEvent publishes a project change. The broker loop follows it
// with a throttled listing event for index refreshes.
func (b *Broker) PublishProjectEvent(kind, project string) {
	b.Publish(Event{Kind: kind, Project: project, At: time.Now().UTC()})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
