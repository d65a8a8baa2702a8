package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatRelay delivers rich chat messages through the chat bridge's HTTP API.
type ChatRelay struct {
	url    string
	apiKey string
	client *http.Client
}

func NewChatRelay(url, apiKey string) *ChatRelay {
	return &ChatRelay{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type chatRelayRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Ref  string `json:"ref"`
}

type chatRelayResponse struct {
	GUID string `json:"guid"`
}

func (c *ChatRelay) Send(ctx context.Context, p Payload) (*Result, error) {
	body, err := json.Marshal(chatRelayRequest{
		To:   p.Recipient,
		Text: p.Text,
		Ref:  p.MessageID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("chat relay returned status %d body=%q", resp.StatusCode, string(raw)),
		}, nil
	}

	var cr chatRelayResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("failed to decode chat relay response: %w body=%q", err, string(raw))
	}

	return &Result{Success: true, MessageID: cr.GUID}, nil
}
