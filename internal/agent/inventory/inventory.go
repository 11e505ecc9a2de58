// Package inventory implements the agent's periodic inventory push: list
// managed containers, redact sensitive environment variables, and POST the
// result to the controller. The substring-match redaction style follows
// the teacher's notify/provider.go secret-masking helpers, generalized to
// the fixed keyword list spec §4.3 names.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"

	"github.com/hoisterhq/hoister/internal/agent/engine"
	"github.com/hoisterhq/hoister/internal/controller/domain"
	"github.com/hoisterhq/hoister/internal/logging"
	"github.com/hoisterhq/hoister/internal/runtime"
)

// Interval is the fixed 5-second tick spec §4.3/§5 requires.
const Interval = 5 * time.Second

const redactedValue = "***REDACTED***"

// sensitiveSubstrings is the exact keyword list from spec §4.3, matched
// case-insensitively against the (lower-cased) env var key.
var sensitiveSubstrings = []string{
	"password", "passwd", "pwd", "secret", "token", "key", "auth",
	"credential", "cred", "apikey", "api_key", "username", "user",
	"session", "cookie", "telegram_chat_id", "discord_channel_id", "slack_webhook",
}

// RedactEnv returns a copy of the environment map with sensitive values
// replaced by the redacted marker. A key is sensitive if its lower-cased
// form contains any configured substring.
func RedactEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if isSensitiveKey(k) {
			out[k] = redactedValue
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, substr := range sensitiveSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// ParseEnv turns a container's raw "KEY=VALUE" env slice into a map,
// leaving entries without an "=" as a key with an empty value.
func ParseEnv(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		} else {
			out[kv] = ""
		}
	}
	return out
}

// Reporter pushes redacted container inventories to the controller.
type Reporter struct {
	rt            runtime.ContainerRuntime
	httpClient    *http.Client
	controllerURL string
	token         string
	project       string
	debugAllHosts bool
	log           *logging.Logger
}

// New builds a Reporter.
func New(rt runtime.ContainerRuntime, controllerURL, token, project string, debugAllHosts bool, log *logging.Logger) *Reporter {
	return &Reporter{
		rt:            rt,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		controllerURL: controllerURL,
		token:         token,
		project:       project,
		debugAllHosts: debugAllHosts,
		log:           log,
	}
}

// Tick lists managed containers, redacts, and pushes one inventory to the
// controller for (host, project). A non-2xx response is logged at warn and
// left for the next tick to retry, per spec §4.3.
func (r *Reporter) Tick(ctx context.Context, host string) error {
	containers, err := r.rt.ListManaged(ctx, r.project, r.debugAllHosts)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}

	payload := make(map[string]domain.Inspection)
	for _, c := range containers {
		if engine.IsHidden(c.Labels) {
			continue
		}
		insp, err := r.rt.Inspect(ctx, c.ID)
		if err != nil {
			r.log.Warn("inventory: inspect failed", "id", c.ID, "error", err)
			continue
		}
		service := engine.ResolveService(c.Labels, containerDisplayName(c))
		payload[service] = toInspection(insp)
	}

	body, err := json.Marshal(domain.ContainerStatePush{ProjectName: r.project, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}

	url := fmt.Sprintf("%s/container/state/%s/%s", r.controllerURL, host, r.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Warn("inventory: controller unreachable", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.log.Warn("inventory: controller returned non-2xx", "status", resp.StatusCode)
	}
	return nil
}

func containerDisplayName(c container.Summary) string {
	if len(c.Names) > 0 && len(c.Names[0]) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}

func toInspection(insp container.InspectResponse) domain.Inspection {
	out := domain.Inspection{ContainerID: insp.ID}
	if insp.Config != nil {
		out.Image = insp.Config.Image
		out.Env = RedactEnv(ParseEnv(insp.Config.Env))
		out.Labels = insp.Config.Labels
	}
	if insp.State != nil {
		out.Running = insp.State.Running
		out.State = insp.State.Status
		if insp.State.Health != nil {
			out.Health = insp.State.Health.Status
		}
	}
	return out
}
