package testmessage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoisterhq/hoister/internal/agent/reporter"
	"github.com/hoisterhq/hoister/internal/dispatch"
	"github.com/hoisterhq/hoister/internal/logging"
)

func TestSendSubmitsOneTestMessageDeployment(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := dispatch.NewMulti(logging.New(false))
	r := reporter.New(srv.URL, "", d, logging.New(false))

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer cancel()

	Send(ctx, r, "host-1")

	deadline := time.After(time.Second)
	for posts.Load() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for test message to be reported")
		case <-time.After(time.Millisecond):
		}
	}
}
