package detect

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shieldsenior/shieldsenior/internal/idgen"
	"github.com/shieldsenior/shieldsenior/internal/metrics"
	"github.com/shieldsenior/shieldsenior/internal/traces"
)

// Classifier is the AI layer's contract. Implemented by GeminiClassifier;
// tests substitute fakes.
type Classifier interface {
	Classify(ctx context.Context, transcript string) (Result, error)
}

// Alerter receives high-threat analysis results. Implementations must not
// block.
type Alerter interface {
	HighRiskDetected(ctx context.Context, result Result)
}

// Analyzer orchestrates the two detection layers. The AI classifier runs
// first when configured; any failure falls through to the keyword engine.
// Analyze never fails.
type Analyzer struct {
	classifier Classifier
	keywords   *KeywordEngine
	store      Store
	alerter    Alerter
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer over the keyword engine.
func NewAnalyzer(keywords *KeywordEngine, logger *slog.Logger) *Analyzer {
	return &Analyzer{keywords: keywords, logger: logger}
}

// WithClassifier enables the AI layer.
func (a *Analyzer) WithClassifier(c Classifier) *Analyzer {
	a.classifier = c
	return a
}

// WithStore enables the best-effort analysis audit trail.
func (a *Analyzer) WithStore(s Store) *Analyzer {
	a.store = s
	return a
}

// WithAlerter enables scam alerts for HIGH-threat results.
func (a *Analyzer) WithAlerter(al Alerter) *Analyzer {
	a.alerter = al
	return a
}

// AIEnabled reports whether the AI layer is configured.
func (a *Analyzer) AIEnabled() bool {
	return a.classifier != nil
}

// Analyze classifies a transcript. Empty input short-circuits without
// invoking either layer. The two layers never blend: a response is entirely
// AI or entirely keyword-scored.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) Result {
	ctx, span := traces.StartSpan(ctx, "detect.Analyze")
	defer span.End()

	if strings.TrimSpace(transcript) == "" {
		return NewResult(0, "No Input", nil, "Empty transcript provided.", SourceSystem)
	}

	if a.classifier != nil {
		result, err := a.classifier.Classify(ctx, transcript)
		if err == nil {
			a.finish(ctx, result)
			return result
		}
		a.logger.Warn("ai classifier failed, using keyword fallback", "error", err)
		metrics.ClassifierFallbacksTotal.Inc()
	}

	result := a.keywords.Classify(transcript)
	a.finish(ctx, result)
	return result
}

// finish records the result and raises a scam alert for HIGH threats.
func (a *Analyzer) finish(ctx context.Context, result Result) {
	a.record(result)
	if a.alerter != nil && result.ThreatLevel == ThreatHigh {
		a.alerter.HighRiskDetected(ctx, result)
	}
}

// record persists the analysis asynchronously (best-effort audit trail).
func (a *Analyzer) record(result Result) {
	metrics.AnalysesTotal.WithLabelValues(string(result.Source), string(result.ThreatLevel)).Inc()
	if a.store == nil {
		return
	}
	rec := &AnalysisRecord{
		ID:          idgen.WithPrefix("ana_"),
		Source:      result.Source,
		RiskScore:   result.RiskScore,
		ThreatLevel: result.ThreatLevel,
		ScamType:    result.ScamType,
		Triggers:    result.TriggersFound,
		Reason:      result.Reason,
		CreatedAt:   time.Now(),
	}
	go func() {
		_ = a.store.Record(context.Background(), rec)
	}()
}
