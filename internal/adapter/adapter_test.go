package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LeventeLantos/outbound-router/internal/model"
)

func testPayload() Payload {
	return Payload{
		MessageID: "msg-1",
		Recipient: "+15550001111",
		Text:      "hello",
		Channel:   model.ChannelBasicMessaging,
	}
}

func TestGateway_Send_Success(t *testing.T) {
	t.Parallel()

	var gotBody Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"gw-77","status":"queued"}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	res, err := g.Send(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Send() failed: %s", res.Error)
	}
	if res.MessageID != "gw-77" {
		t.Fatalf("remote id = %q, want gw-77", res.MessageID)
	}
	if gotBody.MessageID != "msg-1" || gotBody.Recipient != "+15550001111" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestGateway_Send_NonAcceptedStatusIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	res, err := g.Send(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Error == "" {
		t.Fatal("expected error description")
	}
}

func TestGateway_Send_MissingMessageIDIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	res, err := g.Send(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
}

func TestChatRelay_Send_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization = %q", auth)
		}
		var req chatRelayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Ref != "msg-1" {
			t.Errorf("ref = %q, want msg-1", req.Ref)
		}
		_, _ = w.Write([]byte(`{"guid":"chat-42"}`))
	}))
	defer srv.Close()

	c := NewChatRelay(srv.URL, "secret")
	p := testPayload()
	p.Channel = model.ChannelRichChat

	res, err := c.Send(context.Background(), p)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !res.Success || res.MessageID != "chat-42" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestChatRelay_Send_ServerErrorIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChatRelay(srv.URL, "secret")
	res, err := c.Send(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
}

func TestEmail_Send_MissingRecipient(t *testing.T) {
	t.Parallel()

	e := NewEmail("smtp.example.com:587", "user", "pass", "noreply@example.com")
	p := testPayload()
	p.Recipient = ""

	res, err := e.Send(context.Background(), p)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result for missing recipient")
	}
}

func TestEmail_Send_CanceledContext(t *testing.T) {
	t.Parallel()

	e := NewEmail("smtp.example.com:587", "user", "pass", "noreply@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Send(ctx, testPayload()); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestRegistry_DispatchesByChannel(t *testing.T) {
	t.Parallel()

	basic := NewMock()
	email := NewMock()

	reg := NewRegistry()
	reg.Register(model.ChannelBasicMessaging, basic)
	reg.Register(model.ChannelEmail, email)

	p := testPayload()
	if _, err := reg.Send(context.Background(), p); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if n := len(basic.Sent()); n != 1 {
		t.Fatalf("basic adapter sends = %d, want 1", n)
	}
	if n := len(email.Sent()); n != 0 {
		t.Fatalf("email adapter sends = %d, want 0", n)
	}
}

func TestRegistry_UnknownChannel(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if _, err := reg.Send(context.Background(), testPayload()); err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}
