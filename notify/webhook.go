package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// DeliveryError reports a message the sink did not accept
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook answered with status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook delivery failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error { return e.Err }

// Sink delivers a formatted message
type Sink interface {
	Post(ctx context.Context, msg Message) error
}

// Webhook posts messages as JSON to an incoming webhook URL
type Webhook struct {
	url    string
	client *http.Client
}

var _ Sink = (*Webhook)(nil)

// NewWebhook creates a Webhook. A nil client means http.DefaultClient.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{url: url, client: client}
}

// Post implements Sink. Anything but a 2xx answer is a DeliveryError.
func (w *Webhook) Post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}
