package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	delivery "github.com/interactive-solutions/go-delivery"
)

type webhookSender struct {
	client *retryablehttp.Client
}

// NewWebhookSender returns a sender that posts the message content as json to
// the recipient url.
func NewWebhookSender() delivery.Sender {
	return &webhookSender{
		client: retryablehttp.NewClient(),
	}
}

func (s *webhookSender) Send(ctx context.Context, recipient, content string) error {
	payload, err := json.Marshal(struct {
		Content string `json:"content"`
	}{content})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, recipient, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "Invalid webhook url %q", recipient)
	}

	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", delivery.UserAgent)

	if resp, err := s.client.Do(req); err != nil {
		return err
	} else if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return errors.Errorf("Unexpected response code %d received from webhook", resp.StatusCode)
	}

	return nil
}
