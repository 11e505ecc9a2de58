// Package reporter fans out each terminal Result the update engine produces
// to the controller and to the configured chat transports, per spec §4.5:
// NoUpdate is persisted but never reaches chat.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hoisterhq/hoister/internal/agent/engine"
	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/dispatch"
	"github.com/hoisterhq/hoister/internal/logging"
)

// queueCapacity bounds the internal channel per spec §5: a sweep producing
// more terminal results than this in flight blocks the engine rather than
// growing memory without limit.
const queueCapacity = 32

// Reporter owns the bounded channel feeding the controller POST and the
// dispatcher, joined per message before the next one is taken.
type Reporter struct {
	controllerURL string
	authToken     string
	httpClient    *http.Client
	dispatcher    *dispatch.Multi
	ha            *dispatch.HomeAssistantPublisher
	log           *logging.Logger

	queue chan engine.Result
}

// SetHomeAssistant wires an optional Home Assistant MQTT discovery
// publisher. It takes the full domain.Deployment rather than a rendered
// Message, so it is driven separately from the Notifier fan-out in Multi.
func (r *Reporter) SetHomeAssistant(h *dispatch.HomeAssistantPublisher) {
	r.ha = h
}

// New builds a Reporter. controllerURL is the base address of the
// controller (e.g. "https://controller.example.com"); authToken is sent as
// a bearer credential on the POST /deployments call.
func New(controllerURL, authToken string, d *dispatch.Multi, log *logging.Logger) *Reporter {
	return &Reporter{
		controllerURL: controllerURL,
		authToken:     authToken,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		dispatcher:    d,
		log:           log,
		queue:         make(chan engine.Result, queueCapacity),
	}
}

// Submit enqueues a terminal Result. Blocks if the queue is full, applying
// backpressure to whatever is driving the engine.
func (r *Reporter) Submit(ctx context.Context, res engine.Result) {
	select {
	case r.queue <- res:
	case <-ctx.Done():
	}
}

// Run drains the queue until ctx is cancelled, fanning out each Result to
// the controller and the dispatcher concurrently.
func (r *Reporter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-r.queue:
			r.report(ctx, res)
		}
	}
}

func (r *Reporter) report(ctx context.Context, res engine.Result) {
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		if err := r.postToController(ctx, res); err != nil {
			r.log.Warn("report to controller failed", "container", res.ContainerID, "error", err)
		}
	}()

	go func() {
		defer func() { done <- struct{}{} }()
		if res.Outcome == engine.OutcomeNoUpdate {
			return
		}
		d := toDeployment(res)
		r.dispatcher.Dispatch(ctx, dispatch.FromDeployment(d))
		if r.ha != nil {
			if err := r.ha.Publish(ctx, d); err != nil {
				r.log.Warn("home assistant publish failed", "error", err)
			}
		}
	}()

	<-done
	<-done
}

func toDeployment(res engine.Result) domain.Deployment {
	status, _ := domain.ParseStatus(string(res.Outcome))
	return domain.Deployment{
		ProjectName: res.ProjectName,
		ServiceName: res.ServiceName,
		Image:       res.Image,
		Digest:      res.Digest,
		Status:      status,
	}
}

func (r *Reporter) postToController(ctx context.Context, res engine.Result) error {
	body := domain.CreateDeploymentRequest{
		ProjectName: res.ProjectName,
		ServiceName: res.ServiceName,
		Image:       res.Image,
		Digest:      res.Digest,
		Status:      string(res.Outcome),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal deployment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.controllerURL+"/deployments", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post deployment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controller returned %d", resp.StatusCode)
	}
	return nil
}
