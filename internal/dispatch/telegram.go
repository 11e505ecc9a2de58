package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Telegram sends a message via the Bot API's sendMessage endpoint.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{botToken: botToken, chatID: chatID, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	form := url.Values{
		"chat_id": {t.chatID},
		"text":    {msg.Title + "\n" + msg.Body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API returned %d", resp.StatusCode)
	}
	return nil
}
