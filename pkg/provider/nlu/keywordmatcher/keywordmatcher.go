// Package keywordmatcher implements an NLU provider that resolves an
// utterance to an intent by phonetic/fuzzy matching against a configured
// table of trigger phrases per intent, rather than a trained model (§4.8
// step 4, §9 Open Question: "NLU providers range from full ML models down
// to keyword matching").
//
// Matching is delegated to internal/transcript/phonetic's Double Metaphone
// + Jaro-Winkler matcher, so misheard or partially-transcribed phrases
// ("what's the whether" / "turn on the lits") still resolve correctly.
package keywordmatcher

import (
	"context"
	"strings"

	"github.com/MrWong99/voiced/internal/transcript/phonetic"
	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/nlu"
	"github.com/MrWong99/voiced/pkg/types"
)

// Config is the provider's typed parameter model, decoded from
// ComponentCfg.Providers["keyword_matcher"] via schema.DecodeParams.
type Config struct {
	// Threshold is the minimum Jaro-Winkler similarity score accepted as a
	// match, both for phonetic candidates and the pure-fuzzy fallback pass.
	// Default: 0.75.
	Threshold float64 `mapstructure:"threshold"`

	// Intents maps an intent name to the trigger phrases that resolve to
	// it, e.g. "weather.query": ["what's the weather", "weather forecast"].
	Intents map[string][]string `mapstructure:"intents"`
}

// Provider matches transcript text against Config.Intents using phonetic
// similarity instead of a trained classifier.
type Provider struct {
	cfg     Config
	matcher *phonetic.Matcher

	phrases  []string          // flattened trigger phrases, for Matcher.Match
	intentOf map[string]string // phrase (lowercased) -> intent name
}

var _ nlu.Provider = (*Provider)(nil)

// New builds a Provider from cfg. A zero Threshold defaults to 0.75.
func New(cfg Config) *Provider {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.75
	}

	p := &Provider{
		cfg:      cfg,
		matcher:  phonetic.New(phonetic.WithPhoneticThreshold(cfg.Threshold), phonetic.WithFuzzyThreshold(cfg.Threshold)),
		intentOf: make(map[string]string),
	}
	for intentName, phrases := range cfg.Intents {
		for _, phrase := range phrases {
			key := strings.ToLower(strings.TrimSpace(phrase))
			if key == "" {
				continue
			}
			p.phrases = append(p.phrases, phrase)
			p.intentOf[key] = intentName
		}
	}
	return p
}

func (p *Provider) IsAvailable(context.Context) bool { return len(p.phrases) > 0 }

func (p *Provider) Capabilities() map[string]any {
	return map[string]any{"intents": len(p.cfg.Intents), "phrases": len(p.phrases)}
}

func (p *Provider) ParameterSchema() provider.ParameterSchema {
	return provider.ParameterSchema{
		"threshold": {Type: provider.FieldNumber, Description: "minimum fuzzy-match score to accept an intent", Min: floatPtr(0), Max: floatPtr(1)},
		"intents":   {Type: provider.FieldObject, Description: "intent name to trigger-phrase list"},
	}
}

// Parse matches text against the configured trigger phrases and returns the
// best-scoring intent. When nothing clears the threshold, it returns an
// Intent with an empty Name and Confidence 0 (only RawText and Language
// set) — the workflow engine's fallback routing then takes over.
func (p *Provider) Parse(_ context.Context, text, language string, _ map[string]any) (types.Intent, error) {
	matched, confidence, ok := p.matcher.Match(text, p.phrases)
	if !ok {
		return types.Intent{RawText: text, Language: language}, nil
	}

	name := p.intentOf[strings.ToLower(strings.TrimSpace(matched))]
	return types.Intent{
		Name:       name,
		Confidence: confidence,
		RawText:    text,
		Language:   language,
	}, nil
}

func floatPtr(f float64) *float64 { return &f }
