package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendResult contains the gateway's response for one outbound message.
type SendResult struct {
	MessageID string `json:"message_id"`
	Accepted  bool   `json:"accepted"`
	Detail    string `json:"detail,omitempty"`
}

// Messenger calls the outbound SMS gateway microservice.
type Messenger struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewMessenger creates a gateway client. With skip set, Send succeeds
// without contacting the gateway (dev mode).
func NewMessenger(baseURL string, skip bool) *Messenger {
	return &Messenger{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers one message to a recipient phone number.
func (m *Messenger) Send(ctx context.Context, to, message string) (*SendResult, error) {
	if m.Skip {
		return &SendResult{MessageID: "skipped", Accepted: true}, nil
	}
	if to == "" {
		return nil, fmt.Errorf("recipient required")
	}

	body, _ := json.Marshal(map[string]string{"to": to, "message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messenger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("messenger error %s: %s", resp.Status, string(bodyBytes))
	}

	var out SendResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Accepted {
		return &out, fmt.Errorf("messenger rejected message: %s", out.Detail)
	}
	return &out, nil
}

// Health pings the gateway.
func (m *Messenger) Health(ctx context.Context) error {
	if m.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := m.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("messenger unhealthy: %s", resp.Status)
	}
	return nil
}
