// Package detect implements the two-layer scam classification pipeline.
//
// Layer 1 is a Gemini-backed classifier tuned for "Digital Arrest" scams
// targeting senior citizens. Layer 2 is a deterministic keyword rule engine
// that takes over whenever the AI layer is unconfigured or fails. The
// analyzer never returns an error: every transcript produces a well-formed
// result from one of the two layers.
package detect

import (
	"context"
	"time"
)

// Source identifies which layer produced a result.
type Source string

const (
	SourceAI              Source = "ai"
	SourceKeywordFallback Source = "keyword_fallback"
	SourceSystem          Source = "system"
)

// ThreatLevel is the coarse severity band derived from a risk score.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "LOW"
	ThreatMedium ThreatLevel = "MEDIUM"
	ThreatHigh   ThreatLevel = "HIGH"
)

// Score thresholds for threat levels.
const (
	HighRiskThreshold   = 70
	MediumRiskThreshold = 40
)

// LevelForScore maps a risk score to its threat level.
func LevelForScore(score int) ThreatLevel {
	switch {
	case score >= HighRiskThreshold:
		return ThreatHigh
	case score >= MediumRiskThreshold:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

// Result is the outcome of analyzing a single transcript. Immutable once
// produced; the audit trail keeps a separate record type.
type Result struct {
	Source            Source      `json:"source"`
	RiskScore         int         `json:"risk_score"`
	ThreatLevel       ThreatLevel `json:"threat_level"`
	ScamType          string      `json:"scam_type"`
	TriggersFound     []string    `json:"triggers_found"`
	Reason            string      `json:"reason"`
	RecommendedAction string      `json:"recommended_action"`
}

// RecommendedAction returns the canned advisory for a threat level, written
// for the senior citizen on the call.
func RecommendedAction(level ThreatLevel) string {
	switch level {
	case ThreatHigh:
		return "HIGH RISK! Do NOT transfer any money or share OTP/PIN. " +
			"Hang up immediately. Contact a family member. " +
			"Call Cyber Crime Helpline: 1930."
	case ThreatMedium:
		return "SUSPICIOUS CALL. Do not act under pressure. " +
			"Verify by calling the official government/bank helpline. " +
			"Real government officers NEVER demand money over phone."
	default:
		return "Appears safe, but stay alert. " +
			"Never share OTP, PIN, or bank details with anyone on call. " +
			"Government never demands payment over phone."
	}
}

// NewResult assembles a Result, clamping the score to [0,100] and deriving
// the threat level and advisory.
func NewResult(score int, scamType string, triggers []string, reason string, source Source) Result {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if triggers == nil {
		triggers = []string{}
	}
	level := LevelForScore(score)
	return Result{
		Source:            source,
		RiskScore:         score,
		ThreatLevel:       level,
		ScamType:          scamType,
		TriggersFound:     triggers,
		Reason:            reason,
		RecommendedAction: RecommendedAction(level),
	}
}

// AnalysisRecord is the audit-trail row for one analysis. The transcript
// itself is never stored.
type AnalysisRecord struct {
	ID          string      `json:"id"`
	Source      Source      `json:"source"`
	RiskScore   int         `json:"risk_score"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	ScamType    string      `json:"scam_type"`
	Triggers    []string    `json:"triggers"`
	Reason      string      `json:"reason"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists analysis records for the audit trail.
type Store interface {
	Record(ctx context.Context, rec *AnalysisRecord) error
	ListRecent(ctx context.Context, limit int) ([]*AnalysisRecord, error)
}
