package detect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClassifier returns a fixed result or error.
type stubClassifier struct {
	result Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, transcript string) (Result, error) {
	s.calls++
	return s.result, s.err
}

// chanStore signals each recorded analysis on a channel.
type chanStore struct {
	recorded chan *AnalysisRecord
}

func (c *chanStore) Record(ctx context.Context, rec *AnalysisRecord) error {
	c.recorded <- rec
	return nil
}

func (c *chanStore) ListRecent(ctx context.Context, limit int) ([]*AnalysisRecord, error) {
	return nil, nil
}

func TestAnalyzerEmptyTranscript(t *testing.T) {
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger())

	for _, in := range []string{"", "   ", "\n\t"} {
		result := a.Analyze(context.Background(), in)
		if result.Source != SourceSystem {
			t.Errorf("Analyze(%q) source = %s, want system", in, result.Source)
		}
		if result.RiskScore != 0 {
			t.Errorf("Analyze(%q) score = %d, want 0", in, result.RiskScore)
		}
		if result.ScamType != "No Input" {
			t.Errorf("Analyze(%q) scam type = %q", in, result.ScamType)
		}
	}
}

func TestAnalyzerPrefersAI(t *testing.T) {
	stub := &stubClassifier{
		result: NewResult(90, "Digital Arrest Scam", []string{"fear"}, "AI verdict.", SourceAI),
	}
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger()).
		WithClassifier(stub)

	result := a.Analyze(context.Background(), "this is cbi officer")

	if stub.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", stub.calls)
	}
	if result.Source != SourceAI {
		t.Errorf("source = %s, want ai", result.Source)
	}
	if result.RiskScore != 90 {
		t.Errorf("risk score = %d, want 90", result.RiskScore)
	}
}

func TestAnalyzerFallsBackOnAIError(t *testing.T) {
	stub := &stubClassifier{err: errors.New("quota exceeded")}
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger()).
		WithClassifier(stub)

	result := a.Analyze(context.Background(), "digital arrest warrant, transfer money immediately")

	if result.Source != SourceKeywordFallback {
		t.Errorf("source = %s, want keyword_fallback", result.Source)
	}
	// digital_arrest_threat (30) + money_transfer_demand (25) + urgency (15)
	if result.RiskScore != 70 {
		t.Errorf("risk score = %d, want 70", result.RiskScore)
	}
	if result.ThreatLevel != ThreatHigh {
		t.Errorf("threat level = %s, want HIGH", result.ThreatLevel)
	}
}

func TestAnalyzerWithoutClassifier(t *testing.T) {
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger())

	if a.AIEnabled() {
		t.Error("AIEnabled = true without classifier")
	}

	result := a.Analyze(context.Background(), "share the otp right now")
	if result.Source != SourceKeywordFallback {
		t.Errorf("source = %s, want keyword_fallback", result.Source)
	}
}

func TestAnalyzerRecordsAuditTrail(t *testing.T) {
	store := &chanStore{recorded: make(chan *AnalysisRecord, 1)}
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger()).
		WithStore(store)

	a.Analyze(context.Background(), "digital arrest")

	select {
	case rec := <-store.recorded:
		if rec.ID == "" {
			t.Error("record has empty ID")
		}
		if rec.Source != SourceKeywordFallback {
			t.Errorf("record source = %s", rec.Source)
		}
		if rec.RiskScore != 30 {
			t.Errorf("record score = %d, want 30", rec.RiskScore)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("analysis was not recorded")
	}
}

// stubAlerter records high-risk callbacks.
type stubAlerter struct {
	scores []int
}

func (s *stubAlerter) HighRiskDetected(ctx context.Context, result Result) {
	s.scores = append(s.scores, result.RiskScore)
}

func TestAnalyzerAlertsOnHighThreatOnly(t *testing.T) {
	alerter := &stubAlerter{}
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger()).
		WithAlerter(alerter)

	// MEDIUM: no alert.
	a.Analyze(context.Background(), "digital arrest")
	if len(alerter.scores) != 0 {
		t.Fatalf("alerts after MEDIUM result = %v, want none", alerter.scores)
	}

	// HIGH: one alert carrying the score.
	a.Analyze(context.Background(), "digital arrest warrant, transfer money immediately")
	if len(alerter.scores) != 1 || alerter.scores[0] != 70 {
		t.Errorf("alerts = %v, want [70]", alerter.scores)
	}
}

func TestAnalyzerSkipsRecordForEmptyInput(t *testing.T) {
	store := &chanStore{recorded: make(chan *AnalysisRecord, 1)}
	a := NewAnalyzer(NewKeywordEngine(loadDefaultRules(t)), testLogger()).
		WithStore(store)

	a.Analyze(context.Background(), "")

	select {
	case <-store.recorded:
		t.Error("empty input should not be recorded")
	case <-time.After(100 * time.Millisecond):
	}
}
