package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
)

func TestBroadcasterStreamsPublishedEvents(t *testing.T) {
	b := NewBroadcaster(logging.New(false))

	srv := httptest.NewServer(http.HandlerFunc(b.ServeHTTP))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /sse: %v", err)
	}
	defer resp.Body.Close()

	// give the subscriber goroutine a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)
	b.Publish(domain.ControllerEvent{Type: domain.ControllerEventRetry, ProjectName: "blog", ContainerID: "abc"})

	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(time.Second)
	found := make(chan struct{})
	go func() {
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), "\"project_name\":\"blog\"") {
				close(found)
				return
			}
		}
	}()

	select {
	case <-found:
	case <-deadline:
		t.Fatal("timed out waiting for published event to be streamed")
	}
}

func TestBroadcasterDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroadcaster(logging.New(false))
	ch, cancel := b.subscribe()
	defer cancel()

	for i := 0; i < subscriberCapacity+10; i++ {
		b.Publish(domain.ControllerEvent{Type: domain.ControllerEventRetry})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != subscriberCapacity {
				t.Errorf("buffered count = %d, want %d", count, subscriberCapacity)
			}
			return
		}
	}
}
