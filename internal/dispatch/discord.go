package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Discord posts deployment messages to a webhook URL.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord builds a Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{webhookURL: webhookURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]string{"content": msg.Title + "\n" + msg.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}
	return nil
}
