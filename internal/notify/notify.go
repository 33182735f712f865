// Package notify delivers shield lifecycle events to guardians: a webhook
// sink POSTs events to a configured guardian endpoint, and a hub sink
// broadcasts them to connected dashboards.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shieldsenior/shieldsenior/internal/detect"
	"github.com/shieldsenior/shieldsenior/internal/idgen"
	"github.com/shieldsenior/shieldsenior/internal/metrics"
	"github.com/shieldsenior/shieldsenior/internal/realtime"
	"github.com/shieldsenior/shieldsenior/internal/retry"
	"github.com/shieldsenior/shieldsenior/internal/shield"
)

// Event is the payload delivered to the guardian webhook.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

const (
	EventTransactionFrozen = "shield.transaction.frozen"
	EventCoolingExpired    = "shield.cooling.expired"
	EventGuardianDecision  = "shield.guardian.decision"
)

// WebhookSink POSTs shield events to a guardian's webhook URL. Delivery is
// fire-and-forget from the caller's perspective: each event is sent in its
// own goroutine with retry, and failures are logged but never surface.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

var _ shield.AlertSink = (*WebhookSink)(nil)

// NewWebhookSink creates a sink targeting the given URL.
func NewWebhookSink(url string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (w *WebhookSink) TransactionFrozen(_ context.Context, txn *shield.FrozenTransaction, decision *shield.Decision) {
	go w.deliver(EventTransactionFrozen, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         txn.Status,
		"reasons":        txn.Reasons,
		"message":        decision.Message,
	})
}

func (w *WebhookSink) CoolingExpired(_ context.Context, txn *shield.FrozenTransaction) {
	go w.deliver(EventCoolingExpired, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         txn.Status,
		"reasons":        txn.Reasons,
	})
}

func (w *WebhookSink) GuardianDecided(_ context.Context, txn *shield.FrozenTransaction, decision *shield.GuardianDecision) {
	go w.deliver(EventGuardianDecision, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         decision.Status,
		"guardian":       decision.Guardian,
		"message":        decision.Message,
	})
}

func (w *WebhookSink) deliver(eventType string, data map[string]interface{}) {
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("guardian alert marshal failed", "event", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		return w.post(ctx, eventType, payload)
	})
	if err != nil {
		metrics.GuardianAlertsTotal.WithLabelValues("error").Inc()
		w.logger.Warn("guardian alert delivery failed", "event", eventType, "error", err)
		return
	}
	metrics.GuardianAlertsTotal.WithLabelValues("ok").Inc()
}

func (w *WebhookSink) post(ctx context.Context, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shieldsenior-Event", eventType)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(fmt.Errorf("guardian webhook rejected event: status %d", resp.StatusCode))
	}
	return fmt.Errorf("guardian webhook returned status %d", resp.StatusCode)
}

// HubSink forwards shield events to the realtime hub so connected guardian
// dashboards see them immediately.
type HubSink struct {
	hub *realtime.Hub
}

var _ shield.AlertSink = (*HubSink)(nil)

// NewHubSink creates a sink that broadcasts through the given hub.
func NewHubSink(hub *realtime.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (h *HubSink) TransactionFrozen(_ context.Context, txn *shield.FrozenTransaction, decision *shield.Decision) {
	h.hub.BroadcastShieldEvent(realtime.EventTransactionFrozen, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         txn.Status,
		"reasons":        txn.Reasons,
		"message":        decision.Message,
	})
}

func (h *HubSink) CoolingExpired(_ context.Context, txn *shield.FrozenTransaction) {
	h.hub.BroadcastShieldEvent(realtime.EventCoolingExpired, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         txn.Status,
		"reasons":        txn.Reasons,
	})
}

func (h *HubSink) GuardianDecided(_ context.Context, txn *shield.FrozenTransaction, decision *shield.GuardianDecision) {
	h.hub.BroadcastShieldEvent(realtime.EventGuardianDecision, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"risk_score":     txn.RiskScore,
		"status":         decision.Status,
		"guardian":       decision.Guardian,
		"message":        decision.Message,
	})
}

// ScamAlerter pushes high-threat analysis results to guardian dashboards.
// Implements detect.Alerter.
type ScamAlerter struct {
	hub *realtime.Hub
}

var _ detect.Alerter = (*ScamAlerter)(nil)

// NewScamAlerter creates an alerter that broadcasts through the given hub.
func NewScamAlerter(hub *realtime.Hub) *ScamAlerter {
	return &ScamAlerter{hub: hub}
}

func (s *ScamAlerter) HighRiskDetected(_ context.Context, result detect.Result) {
	s.hub.BroadcastShieldEvent(realtime.EventScamAlert, map[string]interface{}{
		"risk_score":         result.RiskScore,
		"threat_level":       result.ThreatLevel,
		"scam_type":          result.ScamType,
		"triggers_found":     result.TriggersFound,
		"recommended_action": result.RecommendedAction,
	})
}
