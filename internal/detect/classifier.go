package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// classifierPrompt instructs Gemini to answer with a strict JSON object.
const classifierPrompt = `You are an AI cybercrime detection assistant trained to detect "Digital Arrest" scams targeting senior citizens in India.

Analyze the following transcript carefully and respond ONLY in valid JSON format like this:
{
  "risk_score": <integer 0-100>,
  "scam_type": "<type of scam or 'No Scam Detected'>",
  "threat_level": "<LOW | MEDIUM | HIGH>",
  "psychological_tactics": ["<tactic1>", "<tactic2>"],
  "reason": "<simple explanation in 1-2 sentences in simple language>",
  "recommended_action": "<clear, actionable advice for a senior citizen>"
}

Common scam patterns to detect:
- Authority impersonation (CBI, Police, RBI, Income Tax, TRAI)
- Digital Arrest threat
- Urgency and fear tactics
- Money/UPI transfer demand
- OTP or credential theft
- Isolation from family

Transcript:
"""
%s
"""

Return ONLY the JSON. No text outside the JSON block.`

// GeminiClassifier calls the Gemini generateContent endpoint. One call per
// transcript, bounded by the configured timeout, no retries: any failure is
// returned to the caller, which owns the keyword fallback.
type GeminiClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGeminiClassifier creates a classifier for the given endpoint and key.
func NewGeminiClassifier(endpoint, apiKey string, timeout time.Duration) *GeminiClassifier {
	return &GeminiClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// generateContent wire types (request and the slice of the response we read).

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// classifierPayload is the strict JSON object the model must return.
type classifierPayload struct {
	RiskScore            *int     `json:"risk_score"`
	ScamType             string   `json:"scam_type"`
	ThreatLevel          string   `json:"threat_level"`
	PsychologicalTactics []string `json:"psychological_tactics"`
	Reason               string   `json:"reason"`
	RecommendedAction    string   `json:"recommended_action"`
}

// Classify sends the transcript to Gemini and parses the model's JSON
// verdict into a Result with Source "ai".
func (g *GeminiClassifier) Classify(ctx context.Context, transcript string) (Result, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(classifierPrompt, transcript)}}}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	url := g.endpoint + "?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Result{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("gemini response has no candidates")
	}

	raw := stripCodeFences(envelope.Candidates[0].Content.Parts[0].Text)

	var payload classifierPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("parse classifier JSON: %w", err)
	}
	if payload.RiskScore == nil {
		return Result{}, fmt.Errorf("classifier JSON missing risk_score")
	}
	if payload.ScamType == "" || payload.ThreatLevel == "" {
		return Result{}, fmt.Errorf("classifier JSON missing required fields")
	}

	score := *payload.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	level := ThreatLevel(strings.ToUpper(payload.ThreatLevel))
	switch level {
	case ThreatLow, ThreatMedium, ThreatHigh:
	default:
		level = LevelForScore(score)
	}

	triggers := payload.PsychologicalTactics
	if triggers == nil {
		triggers = []string{}
	}

	return Result{
		Source:            SourceAI,
		RiskScore:         score,
		ThreatLevel:       level,
		ScamType:          payload.ScamType,
		TriggersFound:     triggers,
		Reason:            payload.Reason,
		RecommendedAction: payload.RecommendedAction,
	}, nil
}

// stripCodeFences removes a markdown ```json ... ``` wrapper if present.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
