package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shieldsenior/shieldsenior/internal/detect"
	"github.com/shieldsenior/shieldsenior/internal/realtime"
	"github.com/shieldsenior/shieldsenior/internal/shield"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTxn() *shield.FrozenTransaction {
	return &shield.FrozenTransaction{
		TransactionID: "TXN1",
		Amount:        50000,
		RiskScore:     87,
		FrozenAt:      time.Now(),
		Status:        shield.StatusFrozen,
		Reasons:       []string{"High scam risk score: 87/100"},
	}
}

func TestWebhookSinkDelivers(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shieldsenior-Event"); got != EventTransactionFrozen {
			t.Errorf("event header = %q", got)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, testLogger())
	sink.TransactionFrozen(context.Background(), sampleTxn(), &shield.Decision{
		Status:        "FROZEN",
		TransactionID: "TXN1",
		Message:       "Transaction FROZEN for 30 minutes.",
	})

	select {
	case ev := <-received:
		if ev.Type != EventTransactionFrozen {
			t.Errorf("type = %s", ev.Type)
		}
		if ev.Data["transaction_id"] != "TXN1" {
			t.Errorf("transaction_id = %v", ev.Data["transaction_id"])
		}
		if ev.ID == "" {
			t.Error("event has no ID")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	delivered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		delivered <- struct{}{}
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, testLogger())
	sink.GuardianDecided(context.Background(), sampleTxn(), &shield.GuardianDecision{
		Status:        "APPROVED",
		TransactionID: "TXN1",
		Guardian:      "Asha",
	})

	select {
	case <-delivered:
		if calls.Load() != 2 {
			t.Errorf("calls = %d, want 2", calls.Load())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("delivery never retried to success")
	}
}

func TestWebhookSinkGivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, testLogger())
	sink.deliver(EventTransactionFrozen, map[string]interface{}{"transaction_id": "TXN1"})

	// A 4xx is permanent: exactly one attempt.
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestHubSinkBroadcasts(t *testing.T) {
	hub := realtime.NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sink := NewHubSink(hub)
	sink.TransactionFrozen(context.Background(), sampleTxn(), &shield.Decision{
		Status:        "FROZEN",
		TransactionID: "TXN1",
	})
	sink.CoolingExpired(context.Background(), sampleTxn())
	sink.GuardianDecided(context.Background(), sampleTxn(), &shield.GuardianDecision{
		Status:        "REJECTED",
		TransactionID: "TXN1",
		Guardian:      "Asha",
	})

	deadline := time.After(2 * time.Second)
	for {
		if hub.Stats()["total_events"].(int64) == 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("hub processed %v events, want 3", hub.Stats()["total_events"])
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWebhookSinkDeliversCoolingExpired(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shieldsenior-Event"); got != EventCoolingExpired {
			t.Errorf("event header = %q", got)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	txn := sampleTxn()
	txn.Status = shield.StatusCoolingExpired

	sink := NewWebhookSink(srv.URL, testLogger())
	sink.CoolingExpired(context.Background(), txn)

	select {
	case ev := <-received:
		if ev.Type != EventCoolingExpired {
			t.Errorf("type = %s", ev.Type)
		}
		if ev.Data["transaction_id"] != "TXN1" {
			t.Errorf("transaction_id = %v", ev.Data["transaction_id"])
		}
		if ev.Data["status"] != string(shield.StatusCoolingExpired) {
			t.Errorf("status = %v", ev.Data["status"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never called")
	}
}

func TestScamAlerterBroadcastsHighThreat(t *testing.T) {
	hub := realtime.NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alerter := NewScamAlerter(hub)
	alerter.HighRiskDetected(context.Background(), detect.NewResult(
		85, "Digital Arrest Scam", []string{"digital arrest"}, "Keyword hit.", detect.SourceKeywordFallback))

	deadline := time.After(2 * time.Second)
	for {
		if hub.Stats()["total_events"].(int64) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("hub processed %v events, want 1", hub.Stats()["total_events"])
		case <-time.After(10 * time.Millisecond):
		}
	}
}
