// Package sse implements the agent's long-lived, reconnecting SSE client
// against the controller's /sse endpoint. The double-newline event framing
// mirrors the wire format the teacher's server-side broadcaster
// (internal/web/sse.go) produces; this side is new since the teacher never
// needed an SSE client.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
)

// ReconnectDelay is how long the consumer sleeps between dropped streams,
// per spec §4.4.
const ReconnectDelay = 5 * time.Second

// Handler is invoked for each successfully parsed ControllerEvent.
type Handler func(ctx context.Context, evt domain.ControllerEvent)

// Consumer opens and re-opens GET /sse against the controller, forwarding
// every well-formed event to Handler. Malformed events are dropped; stream
// or status errors trigger a reconnect after ReconnectDelay.
type Consumer struct {
	baseURL string
	token   string
	client  *http.Client
	handle  Handler
	log     *logging.Logger
}

// New builds a Consumer.
func New(baseURL, token string, handle Handler, log *logging.Logger) *Consumer {
	return &Consumer{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{}, // no overall timeout: the stream is meant to stay open
		handle:  handle,
		log:     log,
	}
}

// Run blocks, reconnecting indefinitely, until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.runOnce(ctx); err != nil {
			c.log.Warn("sse: stream error, reconnecting", "error", err)
		}
		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sse", nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{resp.StatusCode}
	}

	return ParseStream(resp.Body, func(data string) {
		var evt domain.ControllerEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			c.log.Warn("sse: dropping malformed event", "error", err)
			return
		}
		c.handle(ctx, evt)
	})
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}

// ParseStream reads an SSE byte stream, accumulating a buffer until a
// double-newline (\n\n) terminates an event, then invokes onData for every
// line within that event beginning with "data: ", in order. This is
// deliberately chunk-boundary-agnostic: a \n\n split across two reads still
// yields exactly one event.
func ParseStream(r io.Reader, onData func(data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitOnDoubleNewline)

	for scanner.Scan() {
		event := scanner.Text()
		for _, line := range strings.Split(event, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				onData(data)
			}
		}
	}
	return scanner.Err()
}

// splitOnDoubleNewline is a bufio.SplitFunc that yields one token per
// "\n\n"-delimited SSE event.
func splitOnDoubleNewline(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := indexDoubleNewline(data); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func indexDoubleNewline(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\n' && data[i+1] == '\n' {
			return i
		}
	}
	return -1
}
