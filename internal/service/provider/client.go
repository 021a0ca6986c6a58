package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nmarkelov/simshop/internal/logger"
)

const (
	CodeNoNumbers = "no-numbers"
	CodeWaitCode  = "wait-code"
	CodeCancelled = "cancelled"
	CodeUnknown   = "unknown"
)

// Error is a typed failure of the upstream activation API. Code tells the
// caller whether to retry (wait-code), give up on the activation (cancelled)
// or back off (no-numbers, unknown).
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %s, error: %v", e.Code, e.Err)
}

func NewError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Activation is a rented number at the upstream provider
type Activation struct {
	ID     string
	Number string
}

// Client talks the handler_api.php plain-text protocol most activation
// providers expose: getNumber rents, getStatus polls for the SMS code,
// setStatus=8 releases.
type Client struct {
	ProviderAddr string

	apiKey string
	client *http.Client
	logger logger.Logger
}

func NewClient(addr string, apiKey string, l logger.Logger) *Client {
	return &Client{
		ProviderAddr: addr,
		apiKey:       apiKey,
		client:       &http.Client{},
		logger:       l,
	}
}

// RequestNumber rents a number for the given service/country category
func (c *Client) RequestNumber(ctx context.Context, service string, country string) (Activation, error) {
	var activation Activation

	body, err := c.call(ctx, url.Values{
		"action":  {"getNumber"},
		"service": {service},
		"country": {country},
	})
	if err != nil {
		return activation, err
	}

	// ACCESS_NUMBER:<id>:<number>
	parts := strings.Split(body, ":")
	switch {
	case parts[0] == "ACCESS_NUMBER" && len(parts) == 3:
		activation.ID = parts[1]
		activation.Number = parts[2]
		return activation, nil
	case parts[0] == "NO_NUMBERS":
		return activation, NewError(CodeNoNumbers, fmt.Errorf("no numbers for service %s country %s", service, country))
	default:
		c.logger.Warn("Unexpected getNumber response", "body", body)
		return activation, NewError(CodeUnknown, fmt.Errorf("unexpected response %q", body))
	}
}

// PollCode checks the activation for a delivered SMS code. Returns
// CodeWaitCode while the provider is still waiting and CodeCancelled once the
// activation is dead upstream.
func (c *Client) PollCode(ctx context.Context, activationID string) (string, error) {
	body, err := c.call(ctx, url.Values{
		"action": {"getStatus"},
		"id":     {activationID},
	})
	if err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(body, "STATUS_OK:"):
		return strings.TrimPrefix(body, "STATUS_OK:"), nil
	case body == "STATUS_WAIT_CODE":
		return "", NewError(CodeWaitCode, fmt.Errorf("activation %s still waiting for code", activationID))
	case body == "STATUS_CANCEL":
		return "", NewError(CodeCancelled, fmt.Errorf("activation %s cancelled upstream", activationID))
	default:
		c.logger.Warn("Unexpected getStatus response", "body", body, "activation_id", activationID)
		return "", NewError(CodeUnknown, fmt.Errorf("unexpected response %q", body))
	}
}

// Release tells the provider to drop the activation (setStatus=8)
func (c *Client) Release(ctx context.Context, activationID string) error {
	body, err := c.call(ctx, url.Values{
		"action": {"setStatus"},
		"status": {"8"},
		"id":     {activationID},
	})
	if err != nil {
		return err
	}

	if body != "ACCESS_CANCEL" {
		c.logger.Warn("Unexpected setStatus response", "body", body, "activation_id", activationID)
		return NewError(CodeUnknown, fmt.Errorf("unexpected response %q", body))
	}

	return nil
}

func (c *Client) call(ctx context.Context, params url.Values) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ProviderAddr+"/stubs/handler_api.php?"+params.Encode(), nil)
	if err != nil {
		return "", NewError(CodeUnknown, fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", NewError(CodeUnknown, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", NewError(CodeUnknown, fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(CodeUnknown, fmt.Errorf("failed to read response: %w", err))
	}

	return strings.TrimSpace(string(raw)), nil
}
