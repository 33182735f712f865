package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func loadDefaultRules(t *testing.T) *Ruleset {
	t.Helper()
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	return rules
}

func TestKeywordEngineDigitalArrest(t *testing.T) {
	engine := NewKeywordEngine(loadDefaultRules(t))

	transcript := "This is CBI officer speaking. You will be arrested. " +
		"Transfer money immediately. Share the OTP. Do not tell anyone."
	result := engine.Classify(transcript)

	// All six categories fire: 25+30+15+25+25+15 = 135, clamped to 100.
	if result.RiskScore != 100 {
		t.Errorf("risk score = %d, want 100", result.RiskScore)
	}
	if result.ThreatLevel != ThreatHigh {
		t.Errorf("threat level = %s, want HIGH", result.ThreatLevel)
	}
	if result.ScamType != "Digital Arrest / Cyber Fraud" {
		t.Errorf("scam type = %q", result.ScamType)
	}
	if result.Source != SourceKeywordFallback {
		t.Errorf("source = %s, want keyword_fallback", result.Source)
	}
	if len(result.TriggersFound) != 6 {
		t.Errorf("triggers = %v, want 6 categories", result.TriggersFound)
	}
}

func TestKeywordEngineBenign(t *testing.T) {
	engine := NewKeywordEngine(loadDefaultRules(t))

	result := engine.Classify("Hello grandma, how was the doctor visit today?")

	if result.RiskScore != 0 {
		t.Errorf("risk score = %d, want 0", result.RiskScore)
	}
	if result.ThreatLevel != ThreatLow {
		t.Errorf("threat level = %s, want LOW", result.ThreatLevel)
	}
	if result.ScamType != "No Scam Detected" {
		t.Errorf("scam type = %q", result.ScamType)
	}
	if len(result.TriggersFound) != 0 {
		t.Errorf("triggers = %v, want none", result.TriggersFound)
	}
}

func TestKeywordEngineMediumBand(t *testing.T) {
	engine := NewKeywordEngine(loadDefaultRules(t))

	// Authority (25) + urgency (15) = 40, the MEDIUM boundary.
	result := engine.Classify("I am a CBI officer, you must act immediately")

	if result.RiskScore != 40 {
		t.Errorf("risk score = %d, want 40", result.RiskScore)
	}
	if result.ThreatLevel != ThreatMedium {
		t.Errorf("threat level = %s, want MEDIUM", result.ThreatLevel)
	}
}

func TestKeywordEngineCategoryCountedOnce(t *testing.T) {
	engine := NewKeywordEngine(loadDefaultRules(t))

	// Three keywords from the same category still score it once.
	result := engine.Classify("share the otp, the one time password, and your cvv")

	if result.RiskScore != 25 {
		t.Errorf("risk score = %d, want 25", result.RiskScore)
	}
	if len(result.TriggersFound) != 1 {
		t.Errorf("triggers = %v, want one category", result.TriggersFound)
	}
	if result.TriggersFound[0] != "Otp Credential Theft" {
		t.Errorf("trigger label = %q", result.TriggersFound[0])
	}
}

func TestKeywordEngineCaseAndPunctuation(t *testing.T) {
	engine := NewKeywordEngine(loadDefaultRules(t))

	plain := engine.Classify("digital arrest")
	noisy := engine.Classify("DIGITAL-ARREST!!!")

	if plain.RiskScore != noisy.RiskScore {
		t.Errorf("normalization mismatch: %d vs %d", plain.RiskScore, noisy.RiskScore)
	}
	if noisy.RiskScore != 30 {
		t.Errorf("risk score = %d, want 30", noisy.RiskScore)
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	custom := `
categories:
  - name: test_category
    weight: 50
    keywords:
      - "Magic Phrase"
`
	if err := os.WriteFile(path, []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules(%s): %v", path, err)
	}

	result := NewKeywordEngine(rules).Classify("say the magic phrase")
	if result.RiskScore != 50 {
		t.Errorf("risk score = %d, want 50", result.RiskScore)
	}
	if result.TriggersFound[0] != "Test Category" {
		t.Errorf("trigger label = %q", result.TriggersFound[0])
	}
}

func TestLoadRulesRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "categories: []"},
		{"no name", "categories:\n  - weight: 10\n    keywords: [a]"},
		{"zero weight", "categories:\n  - name: x\n    weight: 0\n    keywords: [a]"},
		{"no keywords", "categories:\n  - name: x\n    weight: 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRules(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  ThreatLevel
	}{
		{0, ThreatLow},
		{39, ThreatLow},
		{40, ThreatMedium},
		{69, ThreatMedium},
		{70, ThreatHigh},
		{100, ThreatHigh},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
