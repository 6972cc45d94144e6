package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(hub *Hub, email string) *Client {
	return &Client{hub: hub, Email: email, Send: make(chan []byte, 4)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestNotifyReachesOnlyAddressedAccount(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice := newTestClient(hub, "alice@x.com")
	aliceTab := newTestClient(hub, "alice@x.com")
	bob := newTestClient(hub, "bob@x.com")
	for _, c := range []*Client{alice, aliceTab, bob} {
		if !hub.Join(c) {
			t.Fatal("Join failed")
		}
	}

	if !hub.Notify("alice@x.com", "application.status", map[string]string{"status": "accepted"}) {
		t.Fatal("Notify dropped message")
	}
	for _, c := range []*Client{alice, aliceTab} {
		if msg := receive(t, c); msg.Action != "application.status" {
			t.Errorf("action = %q", msg.Action)
		}
	}

	// A published posting is the only thing Bob should see.
	if !hub.Publish(ActionJobCreated, map[string]string{"title": "Dev"}) {
		t.Fatal("Publish dropped message")
	}
	if msg := receive(t, bob); msg.Action != ActionJobCreated {
		t.Errorf("bob got %q, want %s", msg.Action, ActionJobCreated)
	}
	for _, c := range []*Client{alice, aliceTab} {
		if msg := receive(t, c); msg.Action != ActionJobCreated {
			t.Errorf("alice got %q, want %s", msg.Action, ActionJobCreated)
		}
	}
}

func TestLeaveClosesSendChannel(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub, "a@x.com")
	hub.Join(c)
	hub.Leave(c)

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestJoinAfterStop(t *testing.T) {
	hub := NewHub()
	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()
	hub.Stop()
	<-finished
	if hub.Join(newTestClient(hub, "a@x.com")) {
		t.Fatal("Join should fail after Stop")
	}
}
