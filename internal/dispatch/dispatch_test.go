package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/hoisterhq/hoister/internal/logging"
)

type stubNotifier struct {
	name string
	err  error
	sent bool
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Send(ctx context.Context, msg Message) error {
	s.sent = true
	return s.err
}

func TestMultiDispatchIsolatesFailures(t *testing.T) {
	failing := &stubNotifier{name: "failing", err: errors.New("boom")}
	ok := &stubNotifier{name: "ok"}

	m := NewMulti(logging.New(false), failing, ok)
	m.Dispatch(context.Background(), Message{Title: "t", Body: "b"})

	if !failing.sent || !ok.sent {
		t.Errorf("expected both notifiers to be invoked: failing=%v ok=%v", failing.sent, ok.sent)
	}
}

func TestMultiDispatchNoNotifiersIsNoop(t *testing.T) {
	m := NewMulti(logging.New(false))
	m.Dispatch(context.Background(), Message{Title: "t", Body: "b"}) // must not block or panic
}
