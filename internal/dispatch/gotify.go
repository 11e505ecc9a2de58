package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gotify posts to a self-hosted Gotify server's message endpoint.
type Gotify struct {
	serverURL string
	appToken  string
	client    *http.Client
}

// NewGotify builds a Gotify notifier.
func NewGotify(serverURL, appToken string) *Gotify {
	return &Gotify{serverURL: serverURL, appToken: appToken, client: &http.Client{Timeout: 10 * time.Second}}
}

func (g *Gotify) Name() string { return "gotify" }

func (g *Gotify) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]any{
		"title":    msg.Title,
		"message":  msg.Body,
		"priority": 5,
	})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/message?token=%s", g.serverURL, g.appToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gotify returned %d", resp.StatusCode)
	}
	return nil
}
