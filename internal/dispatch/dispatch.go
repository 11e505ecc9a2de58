// Package dispatch implements the Dispatch(Message) capability named in
// spec.md §1: a Notifier per configured transport, fanned out through a
// Multi sink that never lets one transport's failure affect another. The
// fan-out shape is the teacher's internal/notify.Multi, reused wholesale
// since it already does exactly what the spec needs.
package dispatch

import (
	"context"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/metrics"
)

// Message is what a deployment outcome looks like once translated for
// human-facing transports.
type Message struct {
	Title string
	Body  string
}

// FromDeployment renders a Message for a terminal deployment outcome.
// NoUpdate is suppressed by the caller before reaching Dispatch, per spec
// §4.5 — this function does not special-case it.
func FromDeployment(d domain.Deployment) Message {
	title := d.Status.String() + ": " + d.ServiceName
	body := d.ProjectName + "/" + d.ServiceName + " -> " + d.Image
	if d.Digest != "" {
		body += " (" + d.Digest + ")"
	}
	return Message{Title: title, Body: body}
}

// Notifier is a single chat/email transport.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Multi fans a Dispatch call out to every configured Notifier concurrently,
// logging individual failures without letting them cancel siblings.
type Multi struct {
	log       *logging.Logger
	notifiers []Notifier
}

// NewMulti builds a Multi dispatcher over the given notifiers.
func NewMulti(log *logging.Logger, notifiers ...Notifier) *Multi {
	return &Multi{log: log, notifiers: notifiers}
}

// Dispatch sends msg to every configured notifier and waits for them all.
// It never returns an error: failures are logged per-transport.
func (m *Multi) Dispatch(ctx context.Context, msg Message) {
	if len(m.notifiers) == 0 {
		return
	}
	done := make(chan struct{}, len(m.notifiers))
	for _, n := range m.notifiers {
		n := n
		go func() {
			defer func() { done <- struct{}{} }()
			if err := n.Send(ctx, msg); err != nil {
				metrics.DispatchErrorsTotal.WithLabelValues(n.Name()).Inc()
				m.log.Warn("dispatch failed", "transport", n.Name(), "error", err)
			}
		}()
	}
	for range m.notifiers {
		<-done
	}
}
