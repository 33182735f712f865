package detect

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shieldsenior/shieldsenior/internal/textproc"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Category is one weighted keyword group. Categories are evaluated in
// declaration order and contribute their weight at most once per transcript.
type Category struct {
	Name     string   `yaml:"name"`
	Weight   int      `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// Ruleset is the keyword configuration, loaded once at startup and treated
// as read-only afterwards.
type Ruleset struct {
	Categories []Category `yaml:"categories"`
}

// LoadRules reads a YAML ruleset from path, or the embedded default ruleset
// when path is empty. Keywords are normalized at load so matching at
// classification time is a plain substring check.
func LoadRules(path string) (*Ruleset, error) {
	data := defaultRulesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		data = b
	}

	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(rs.Categories) == 0 {
		return nil, fmt.Errorf("rules contain no categories")
	}
	for i := range rs.Categories {
		cat := &rs.Categories[i]
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if cat.Weight <= 0 {
			return nil, fmt.Errorf("category %q has non-positive weight", cat.Name)
		}
		if len(cat.Keywords) == 0 {
			return nil, fmt.Errorf("category %q has no keywords", cat.Name)
		}
		for j, kw := range cat.Keywords {
			cat.Keywords[j] = textproc.Normalize(kw)
		}
	}
	return &rs, nil
}

// KeywordEngine scores transcripts against the weighted ruleset. It is
// deterministic, does no I/O, and cannot fail.
type KeywordEngine struct {
	rules *Ruleset
}

// NewKeywordEngine creates an engine over a loaded ruleset.
func NewKeywordEngine(rules *Ruleset) *KeywordEngine {
	return &KeywordEngine{rules: rules}
}

// Classify scores the transcript with the keyword rules.
func (e *KeywordEngine) Classify(transcript string) Result {
	text := textproc.Normalize(transcript)

	score := 0
	var triggers []string
	for _, cat := range e.rules.Categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				score += cat.Weight
				triggers = append(triggers, categoryLabel(cat.Name))
				break // each category counted once
			}
		}
	}

	scamType := "No Scam Detected"
	reason := "No significant scam indicators found in this message."
	if len(triggers) > 0 {
		scamType = "Digital Arrest / Cyber Fraud"
		reason = fmt.Sprintf("Suspicious patterns detected: %s.", strings.Join(triggers, ", "))
	}

	return NewResult(score, scamType, triggers, reason, SourceKeywordFallback)
}

// categoryLabel turns "authority_impersonation" into "Authority Impersonation".
func categoryLabel(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
