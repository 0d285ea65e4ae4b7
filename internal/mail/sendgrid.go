package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

const defaultSendGridBaseURL = "https://api.sendgrid.com"

// SendGridClient sends mail through the SendGrid v3 mail/send API.
type SendGridClient struct {
	APIKey     string
	BaseURL    string
	From       Sender
	HTTPClient *http.Client
}

// NewSendGridClient returns a client for the given API key and optional base URL.
func NewSendGridClient(apiKey, baseURL string, from Sender) *SendGridClient {
	if baseURL == "" {
		baseURL = defaultSendGridBaseURL
	}
	return &SendGridClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send posts msg to /v3/mail/send. Any non-2xx status is an error.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: sendgrid API key", ErrNotConfigured)
	}
	body := sgRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To}}}},
		From:             sgAddress{Email: c.From.Email, Name: c.From.Name},
		Subject:          msg.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: textOf(msg)},
			{Type: "text/html", Value: msg.HTML},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: sendgrid request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
