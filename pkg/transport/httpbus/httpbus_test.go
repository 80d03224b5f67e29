package httpbus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"pagelens/pkg/bus"
)

func newBridge(t *testing.T) (*bus.Bus, *bus.Bus) {
	t.Helper()

	background := bus.New("background", nil, nil)
	t.Cleanup(background.Close)

	server := httptest.NewServer(NewServer(background, "unused", nil).Handler())
	t.Cleanup(server.Close)

	ui := bus.New("popup", NewClient(server.URL, 5*time.Second), nil)
	t.Cleanup(ui.Close)

	return ui, background
}

func TestRoundTripOverHTTP(t *testing.T) {
	ui, background := newBridge(t)

	background.RegisterHandler(func(_ context.Context, msg bus.Message) (json.RawMessage, error) {
		if msg.Action != "generate" {
			return nil, errors.New("unexpected action")
		}
		return json.RawMessage(`{"success":true,"text":"A short summary."}`), nil
	})

	msg := bus.NewMessage("generate", json.RawMessage(`{"prompt":"Summarize this page"}`))
	resp, err := ui.SendRequest(context.Background(), msg)
	if err != nil {
		t.Fatalf("SendRequest error: %v", err)
	}
	if resp.RequestID != msg.RequestID {
		t.Fatalf("request id = %q, want %q", resp.RequestID, msg.RequestID)
	}

	var decoded struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(resp.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !decoded.Success || decoded.Text != "A short summary." {
		t.Fatalf("payload = %s", resp.Payload)
	}
}

func TestHandlerErrorTravelsAsPayload(t *testing.T) {
	ui, background := newBridge(t)

	background.RegisterHandler(func(context.Context, bus.Message) (json.RawMessage, error) {
		return nil, errors.New("backend exploded")
	})

	resp, err := ui.SendRequest(context.Background(), bus.NewMessage("generate", nil))
	if err != nil {
		t.Fatalf("SendRequest error: %v", err)
	}

	var failure bus.ErrorPayload
	if err := json.Unmarshal(resp.Payload, &failure); err != nil {
		t.Fatalf("decode failure payload: %v", err)
	}
	if failure.Error != "backend exploded" {
		t.Fatalf("error = %q", failure.Error)
	}
}

func TestMissingHandlerIsTransportError(t *testing.T) {
	ui, _ := newBridge(t)

	_, err := ui.SendRequest(context.Background(), bus.NewMessage("generate", nil))
	if !errors.Is(err, bus.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestUnreachableServerIsTransportError(t *testing.T) {
	ui := bus.New("popup", NewClient("http://127.0.0.1:1", 500*time.Millisecond), nil)
	t.Cleanup(ui.Close)

	_, err := ui.SendRequest(context.Background(), bus.NewMessage("generate", nil))
	if !errors.Is(err, bus.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestRejectsInvalidEnvelope(t *testing.T) {
	ui, background := newBridge(t)

	background.RegisterHandler(func(context.Context, bus.Message) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	// Missing request id never reaches the handler.
	_, err := ui.SendRequest(context.Background(), bus.Message{Action: "generate"})
	if err == nil {
		t.Fatal("expected error for missing request id")
	}
}
