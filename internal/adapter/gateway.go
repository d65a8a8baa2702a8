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

// Gateway relays rich and basic messaging through the device gateway's HTTP
// endpoint.
type Gateway struct {
	url    string
	client *http.Client
}

func NewGateway(url string) *Gateway {
	return &Gateway{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

func (g *Gateway) Send(ctx context.Context, p Payload) (*Result, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("gateway returned status %d body=%q", resp.StatusCode, string(raw)),
		}, nil
	}

	var gr gatewayResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w body=%q", err, string(raw))
	}
	if gr.MessageID == "" {
		return &Result{Success: false, Error: fmt.Sprintf("missing messageId in response body=%q", string(raw))}, nil
	}

	return &Result{
		Success:   true,
		MessageID: gr.MessageID,
		Details:   map[string]string{"status": gr.Status},
	}, nil
}
