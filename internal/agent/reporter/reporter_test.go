package reporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoisterhq/hoister/internal/agent/engine"
	"github.com/hoisterhq/hoister/internal/dispatch"
	"github.com/hoisterhq/hoister/internal/logging"
)

type countingNotifier struct {
	count atomic.Int32
}

func (c *countingNotifier) Name() string { return "counting" }
func (c *countingNotifier) Send(ctx context.Context, msg dispatch.Message) error {
	c.count.Add(1)
	return nil
}

func TestReportSuppressesNoUpdateFromDispatchButPersistsIt(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	notifier := &countingNotifier{}
	d := dispatch.NewMulti(logging.New(false), notifier)
	r := New(srv.URL, "tok", d, logging.New(false))

	ctx := context.Background()
	r.report(ctx, engine.Result{ProjectName: "p", ServiceName: "s", Outcome: engine.OutcomeNoUpdate})

	if posts.Load() != 1 {
		t.Errorf("expected controller POST for NoUpdate, got %d", posts.Load())
	}
	if notifier.count.Load() != 0 {
		t.Errorf("expected NoUpdate to be suppressed from dispatch, got %d sends", notifier.count.Load())
	}

	r.report(ctx, engine.Result{ProjectName: "p", ServiceName: "s", Outcome: engine.OutcomeSuccess})
	if posts.Load() != 2 {
		t.Errorf("expected second controller POST, got %d", posts.Load())
	}
	if notifier.count.Load() != 1 {
		t.Errorf("expected Success to reach dispatch, got %d sends", notifier.count.Load())
	}
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := dispatch.NewMulti(logging.New(false))
	r := New(srv.URL, "", d, logging.New(false))

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	r.Submit(ctx, engine.Result{ProjectName: "p", ServiceName: "s", Outcome: engine.OutcomeSuccess})

	deadline := time.After(time.Second)
	for posts.Load() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for submitted result to be reported")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
}
