package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubRegisterSendUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		Send:   make(chan []byte, 10),
		UserID: "u1",
	}
	other := &Client{
		Send:   make(chan []byte, 10),
		UserID: "u2",
	}
	hub.register <- client
	hub.register <- other

	payload, err := encode(TypeDashboard, map[string]string{"stage": "paid"})
	if err != nil {
		t.Fatal(err)
	}
	hub.deliver("u1", payload)

	select {
	case got := <-client.Send:
		var msg struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		if err := json.Unmarshal(got, &msg); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if msg.Type != TypeDashboard || msg.Data["stage"] != "paid" {
			t.Fatalf("unexpected message %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case got := <-other.Send:
		t.Fatalf("message leaked to another user: %s", got)
	case <-time.After(50 * time.Millisecond):
	}

	hub.unregister <- client
	if _, ok := <-client.Send; ok {
		t.Fatal("expected send channel to be closed")
	}
}
