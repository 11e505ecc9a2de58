package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/metrics"
)

// subscriberCapacity is the per-subscriber channel buffer, meeting the
// "bounded capacity (>= 100)" floor spec §4.9 sets.
const subscriberCapacity = 128

// keepAliveInterval paces the SSE keep-alive comment line that stops idle
// connections from being reaped by intermediate proxies.
const keepAliveInterval = 15 * time.Second

// Broadcaster is a multi-producer, multi-subscriber topic of
// domain.ControllerEvent, fanning every Publish out to every subscriber. An
// event is skipped for any subscriber whose buffer is full rather than
// blocking the publisher; that subscriber stays subscribed and receives
// later events.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[uint64]chan domain.ControllerEvent
	next uint64
	log  *logging.Logger
}

// NewBroadcaster builds an empty Broadcaster.
func NewBroadcaster(log *logging.Logger) *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan domain.ControllerEvent), log: log}
}

// Publish sends evt to every current subscriber, dropping it for any whose
// buffer is full.
func (b *Broadcaster) Publish(evt domain.ControllerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broadcaster) subscribe() (<-chan domain.ControllerEvent, func()) {
	ch := make(chan domain.ControllerEvent, subscriberCapacity)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	metrics.SSESubscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
			metrics.SSESubscribers.Set(float64(len(b.subs)))
		}
	}
	return ch, cancel
}

// ServeHTTP streams every subscribed ControllerEvent as an SSE `data:` line
// until the client disconnects, with a periodic keep-alive comment.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				b.log.Warn("failed to marshal sse event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
