package elks

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	delivery "github.com/interactive-solutions/go-delivery"
)

const elksApi = "https://api.46elks.com/a1/sms"

// elks is an sms sender backed by 46elks.
type elks struct {
	client *retryablehttp.Client

	from string

	username string
	password string
}

func New46ElksSender(from, username, password string) delivery.Sender {
	return &elks{
		client: retryablehttp.NewClient(),

		from:     from,
		username: username,
		password: password,
	}
}

func (e *elks) Send(ctx context.Context, recipient, content string) error {
	body := url.Values{
		"from":    {e.from},
		"to":      {recipient},
		"message": {content},
	}.Encode()

	req, err := retryablehttp.NewRequest(http.MethodPost, elksApi, bytes.NewReader([]byte(body)))
	if err != nil {
		return err
	}

	req = req.WithContext(ctx)
	req.SetBasicAuth(e.username, e.password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Header.Set("User-Agent", delivery.UserAgent)

	if resp, err := e.client.Do(req); err != nil {
		return err
	} else if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return errors.Errorf("Unexpected response code %d received from 46elks", resp.StatusCode)
	}

	return nil
}
