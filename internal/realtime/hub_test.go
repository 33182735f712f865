package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventTransactionFrozen, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventTransactionFrozen, EventCoolingExpired},
	}}

	if !h.shouldSend(client, &Event{Type: EventTransactionFrozen}) {
		t.Error("should receive transaction_frozen events")
	}
	if !h.shouldSend(client, &Event{Type: EventCoolingExpired}) {
		t.Error("should receive cooling_expired events")
	}
	if h.shouldSend(client, &Event{Type: EventScamAlert}) {
		t.Error("should NOT receive scam_alert events")
	}
}

func TestShouldSend_TransactionFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		TransactionIDs: []string{"TXN1"},
	}}

	matching := &Event{
		Type: EventTransactionFrozen,
		Data: map[string]interface{}{"transaction_id": "TXN1"},
	}
	other := &Event{
		Type: EventTransactionFrozen,
		Data: map[string]interface{}{"transaction_id": "TXN2"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("should match the watched transaction")
	}
	if h.shouldSend(client, other) {
		t.Error("should NOT match other transactions")
	}
}

func TestShouldSend_MinRiskScore(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{MinRiskScore: 70}}

	low := &Event{
		Type: EventTransactionFrozen,
		Data: map[string]interface{}{"risk_score": 40},
	}
	high := &Event{
		Type: EventTransactionFrozen,
		Data: map[string]interface{}{"risk_score": 85},
	}
	highFloat := &Event{
		Type: EventTransactionFrozen,
		Data: map[string]interface{}{"risk_score": float64(85)},
	}

	if h.shouldSend(client, low) {
		t.Error("should filter events below min risk score")
	}
	if !h.shouldSend(client, high) {
		t.Error("should pass events at or above min risk score")
	}
	if !h.shouldSend(client, highFloat) {
		t.Error("should handle float64 scores from JSON round-trips")
	}
}

func TestHubBroadcastToRegisteredClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 8),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	h.BroadcastShieldEvent(EventTransactionFrozen, map[string]interface{}{
		"transaction_id": "TXN1",
		"risk_score":     85,
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("empty message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received broadcast")
	}
}

func TestHubEvictsSlowClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Unbuffered send channel with no reader: first matching broadcast
	// marks the client slow and evicts it.
	client := &Client{
		hub:  h,
		send: make(chan []byte),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	h.BroadcastShieldEvent(EventScamAlert, map[string]interface{}{"risk_score": 90})

	deadline := time.After(2 * time.Second)
	for {
		stats := h.Stats()
		if stats["connected_clients"].(int) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow client was never evicted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHubStats(t *testing.T) {
	h := testHub()
	stats := h.Stats()
	if stats["connected_clients"].(int) != 0 {
		t.Errorf("connected_clients = %v, want 0", stats["connected_clients"])
	}
}
