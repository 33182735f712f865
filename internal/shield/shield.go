// Package shield implements the transaction-freeze state machine.
//
// Flow:
//  1. A risky transaction is evaluated → any matching trigger freezes it
//  2. The frozen record cools for 30 minutes
//  3. Cooling elapses → record becomes actionable (COOLING_EXPIRED)
//  4. A guardian approves or rejects → lifecycle ends, record retained
//
// A guardian may also decide before the cooling period elapses; nothing in
// the decision path gates on elapsed time.
package shield

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shieldsenior/shieldsenior/internal/metrics"
	"github.com/shieldsenior/shieldsenior/internal/traces"
)

var ErrTransactionNotFound = errors.New("frozen transaction not found")

// Status represents the state of a frozen transaction.
type Status string

const (
	StatusFrozen         Status = "FROZEN"
	StatusCoolingExpired Status = "COOLING_EXPIRED"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
)

// Decision statuses beyond the record lifecycle.
const (
	StatusAllowed  = "ALLOWED"
	StatusNotFound = "NOT_FOUND"
)

// Freeze thresholds.
const (
	CoolingPeriod        = 30 * time.Minute
	HighRiskThreshold    = 70
	SuspicionThreshold   = 40
	HighAmountThreshold  = 10000.0 // Rs
	LongCallSecThreshold = 600
)

// IsTerminal returns true for statuses that end the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// FrozenTransaction is a transaction held back pending guardian review.
// Amount and risk score are immutable after creation; status and
// guardian_action are the only mutable fields.
type FrozenTransaction struct {
	TransactionID  string    `json:"transaction_id"`
	Amount         float64   `json:"amount"`
	RiskScore      int       `json:"risk_score"`
	FrozenAt       time.Time `json:"frozen_at"`
	Status         Status    `json:"status"`
	Reasons        []string  `json:"reasons"`
	GuardianAction string    `json:"guardian_action,omitempty"`
}

// Store persists frozen transactions. Put overwrites any existing record
// for the same transaction ID (latest freeze wins).
type Store interface {
	Put(ctx context.Context, txn *FrozenTransaction) error
	Get(ctx context.Context, transactionID string) (*FrozenTransaction, error)
	Update(ctx context.Context, txn *FrozenTransaction) error
	ListFrozenBefore(ctx context.Context, frozenBefore time.Time, limit int) ([]*FrozenTransaction, error)
}

// Decision is the shield's verdict on one evaluation call.
type Decision struct {
	Status                   string   `json:"status"` // FROZEN or ALLOWED
	TransactionID            string   `json:"transaction_id"`
	Amount                   float64  `json:"amount"`
	RiskScore                int      `json:"risk_score"`
	Reasons                  []string `json:"reasons"`
	CoolingPeriodMinutes     int      `json:"cooling_period_minutes,omitempty"`
	GuardianApprovalRequired bool     `json:"guardian_approval_required"`
	Message                  string   `json:"message"`
}

// CoolingStatus reports the remaining cooling time for a frozen transaction.
type CoolingStatus struct {
	Status           string  `json:"status"`
	TransactionID    string  `json:"transaction_id"`
	Amount           float64 `json:"amount,omitempty"`
	RiskScore        int     `json:"risk_score,omitempty"`
	RemainingTime    string  `json:"remaining_time,omitempty"` // mm:ss
	RemainingSeconds int     `json:"remaining_seconds,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// GuardianDecision records the outcome of a guardian's approve/reject call.
type GuardianDecision struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Guardian      string `json:"guardian,omitempty"`
	Message       string `json:"message,omitempty"`
}

// AlertSink receives shield lifecycle events. Implementations must not
// block; delivery is fire-and-forget.
type AlertSink interface {
	TransactionFrozen(ctx context.Context, txn *FrozenTransaction, decision *Decision)
	CoolingExpired(ctx context.Context, txn *FrozenTransaction)
	GuardianDecided(ctx context.Context, txn *FrozenTransaction, decision *GuardianDecision)
}

// Service implements the shield business logic over a Store.
type Service struct {
	store  Store
	sinks  []AlertSink
	logger *slog.Logger
	locks  sync.Map // per-transaction-ID locks
	now    func() time.Time
}

// NewService creates a new shield service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithAlertSink registers a lifecycle event sink.
func (s *Service) WithAlertSink(sink AlertSink) *Service {
	s.sinks = append(s.sinks, sink)
	return s
}

// WithClock overrides the time source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// txnLock returns a mutex for the given transaction ID. Serializes
// concurrent evaluate/cooling/guardian calls racing on the same record.
func (s *Service) txnLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Evaluate decides FREEZE vs ALLOW for a transaction. Every matching
// trigger contributes a reason; any single trigger is enough to freeze.
// An ALLOW decision touches no stored state.
func (s *Service) Evaluate(ctx context.Context, transactionID string, amount float64, riskScore, callDurationSeconds int) (*Decision, error) {
	ctx, span := traces.StartSpan(ctx, "shield.Evaluate",
		traces.TransactionID(transactionID), traces.RiskScore(riskScore), traces.Amount(amount))
	defer span.End()

	var reasons []string
	if riskScore >= HighRiskThreshold {
		reasons = append(reasons, fmt.Sprintf("High scam risk score: %d/100", riskScore))
	}
	if amount >= HighAmountThreshold && riskScore >= SuspicionThreshold {
		reasons = append(reasons, fmt.Sprintf("Large amount (Rs %.0f) during suspicious activity", amount))
	}
	if callDurationSeconds >= LongCallSecThreshold && riskScore >= SuspicionThreshold {
		reasons = append(reasons, fmt.Sprintf("Long call duration (%d min) with suspicious patterns", callDurationSeconds/60))
	}

	if len(reasons) == 0 {
		metrics.ShieldDecisionsTotal.WithLabelValues(StatusAllowed).Inc()
		return &Decision{
			Status:                   StatusAllowed,
			TransactionID:            transactionID,
			Amount:                   amount,
			RiskScore:                riskScore,
			Reasons:                  []string{"Transaction appears safe based on current risk assessment"},
			GuardianApprovalRequired: false,
			Message:                  "Transaction approved. Stay alert and never share OTP with anyone.",
		}, nil
	}

	mu := s.txnLock(transactionID)
	mu.Lock()
	defer mu.Unlock()

	txn := &FrozenTransaction{
		TransactionID: transactionID,
		Amount:        amount,
		RiskScore:     riskScore,
		FrozenAt:      s.now(),
		Status:        StatusFrozen,
		Reasons:       reasons,
	}
	if err := s.store.Put(ctx, txn); err != nil {
		return nil, fmt.Errorf("store frozen transaction: %w", err)
	}

	metrics.ShieldDecisionsTotal.WithLabelValues(string(StatusFrozen)).Inc()
	s.logger.Info("transaction frozen",
		"transaction_id", transactionID,
		"amount", amount,
		"risk_score", riskScore,
		"reasons", len(reasons),
	)

	decision := &Decision{
		Status:                   string(StatusFrozen),
		TransactionID:            transactionID,
		Amount:                   amount,
		RiskScore:                riskScore,
		Reasons:                  reasons,
		CoolingPeriodMinutes:     int(CoolingPeriod.Minutes()),
		GuardianApprovalRequired: true,
		Message: fmt.Sprintf("Transaction FROZEN for %d minutes. Guardian approval required. Cyber Crime Helpline: 1930.",
			int(CoolingPeriod.Minutes())),
	}

	for _, sink := range s.sinks {
		sink.TransactionFrozen(ctx, txn, decision)
	}

	return decision, nil
}

// CoolingStatus reports how much cooling time remains. When the window has
// elapsed, the stored record transitions to COOLING_EXPIRED; applying the
// transition again is a no-op. Records already decided by a guardian are
// never moved back.
func (s *Service) CoolingStatus(ctx context.Context, transactionID string) (*CoolingStatus, error) {
	mu := s.txnLock(transactionID)
	mu.Lock()
	defer mu.Unlock()

	txn, err := s.store.Get(ctx, transactionID)
	if errors.Is(err, ErrTransactionNotFound) {
		return &CoolingStatus{Status: StatusNotFound, TransactionID: transactionID}, nil
	}
	if err != nil {
		return nil, err
	}

	if txn.Status.IsTerminal() {
		return &CoolingStatus{
			Status:        string(txn.Status),
			TransactionID: transactionID,
			Message:       fmt.Sprintf("Transaction already %s by %s.", txn.Status, txn.GuardianAction),
		}, nil
	}

	elapsed := s.now().Sub(txn.FrozenAt)
	remaining := CoolingPeriod - elapsed

	if remaining <= 0 {
		if txn.Status != StatusCoolingExpired {
			txn.Status = StatusCoolingExpired
			if err := s.store.Update(ctx, txn); err != nil {
				return nil, fmt.Errorf("mark cooling expired: %w", err)
			}
			metrics.CoolingExpiredTotal.Inc()
			for _, sink := range s.sinks {
				sink.CoolingExpired(ctx, txn)
			}
		}
		return &CoolingStatus{
			Status:        string(StatusCoolingExpired),
			TransactionID: transactionID,
			Message:       "Cooling period ended. Guardian must approve or reject.",
		}, nil
	}

	minutesLeft := int(remaining.Seconds()) / 60
	secondsLeft := int(remaining.Seconds()) % 60

	return &CoolingStatus{
		Status:           string(StatusFrozen),
		TransactionID:    transactionID,
		Amount:           txn.Amount,
		RiskScore:        txn.RiskScore,
		RemainingTime:    fmt.Sprintf("%02d:%02d", minutesLeft, secondsLeft),
		RemainingSeconds: int(remaining.Seconds()),
		Message:          fmt.Sprintf("Transaction frozen. %dm %ds remaining before guardian can act.", minutesLeft, secondsLeft),
	}, nil
}

// Decide records a guardian's approval or rejection. The decision is
// accepted in any status: before the cooling window elapses, after it, and
// even over an earlier decision (the source system behaves this way; see
// DESIGN.md).
func (s *Service) Decide(ctx context.Context, transactionID string, approved bool, guardianName string) (*GuardianDecision, error) {
	mu := s.txnLock(transactionID)
	mu.Lock()
	defer mu.Unlock()

	txn, err := s.store.Get(ctx, transactionID)
	if errors.Is(err, ErrTransactionNotFound) {
		return &GuardianDecision{Status: StatusNotFound, TransactionID: transactionID}, nil
	}
	if err != nil {
		return nil, err
	}

	if txn.Status.IsTerminal() {
		s.logger.Warn("overwriting terminal guardian decision",
			"transaction_id", transactionID,
			"previous_status", txn.Status,
			"previous_guardian", txn.GuardianAction,
		)
	}

	action := StatusRejected
	if approved {
		action = StatusApproved
	}
	txn.Status = action
	txn.GuardianAction = guardianName
	if err := s.store.Update(ctx, txn); err != nil {
		return nil, fmt.Errorf("record guardian decision: %w", err)
	}

	metrics.GuardianDecisionsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info("guardian decision recorded",
		"transaction_id", transactionID,
		"action", action,
		"guardian", guardianName,
	)

	message := fmt.Sprintf("Transaction APPROVED by %s.", guardianName)
	if !approved {
		message = fmt.Sprintf("Transaction BLOCKED by %s. Senior citizen is safe.", guardianName)
	}

	decision := &GuardianDecision{
		Status:        string(action),
		TransactionID: transactionID,
		Guardian:      guardianName,
		Message:       message,
	}

	for _, sink := range s.sinks {
		sink.GuardianDecided(ctx, txn, decision)
	}

	return decision, nil
}

// Get returns a frozen transaction by ID.
func (s *Service) Get(ctx context.Context, transactionID string) (*FrozenTransaction, error) {
	return s.store.Get(ctx, transactionID)
}

// expireElapsed transitions one record to COOLING_EXPIRED if its cooling
// window has elapsed and no guardian has decided yet. Called by the Timer.
func (s *Service) expireElapsed(ctx context.Context, transactionID string) error {
	mu := s.txnLock(transactionID)
	mu.Lock()
	defer mu.Unlock()

	txn, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.Status != StatusFrozen {
		return nil
	}
	if s.now().Sub(txn.FrozenAt) < CoolingPeriod {
		return nil
	}

	txn.Status = StatusCoolingExpired
	if err := s.store.Update(ctx, txn); err != nil {
		return err
	}
	metrics.CoolingExpiredTotal.Inc()
	s.logger.Info("cooling period elapsed", "transaction_id", transactionID)

	for _, sink := range s.sinks {
		sink.CoolingExpired(ctx, txn)
	}
	return nil
}
