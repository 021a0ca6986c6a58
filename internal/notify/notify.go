package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nmarkelov/simshop/internal/logger"
)

// Notifier delivers a message to a platform identity. Delivery is best
// effort: failures are logged and never propagate, a missed notification
// must not roll back the state transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, text string)
}

type telegramNotifier struct {
	botToken string
	client   *http.Client
	logger   logger.Logger
}

// NewTelegram sends messages through the Telegram Bot API
func NewTelegram(botToken string, l logger.Logger) Notifier {
	return &telegramNotifier{
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   l,
	}
}

func (n *telegramNotifier) Notify(ctx context.Context, recipientID int64, text string) {
	payload, err := json.Marshal(map[string]any{
		"chat_id": recipientID,
		"text":    text,
	})
	if err != nil {
		n.logger.Error("Failed to marshal notification", "error", err)
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("Failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Failed to send notification", "recipient", recipientID, "error", err)
		return
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("Notification rejected", "recipient", recipientID, "status_code", resp.StatusCode)
	}
}

type noopNotifier struct{}

// NewNoOp returns a notifier that drops every message, used when no bot
// token is configured and in tests
func NewNoOp() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(context.Context, int64, string) {}
