// Package general implements a small, dependency-free text-normalisation
// provider applying the same cleanup pass to both pipeline normalisation
// stages (§4.8 steps 3 and 7): collapsing whitespace runs left over from ASR
// output or handler-generated reply text and trimming surrounding
// whitespace. Punctuation is left unchanged.
//
// No pack library covers generic whitespace/punctuation cleanup (matchr is
// a fuzzy-matching library, not a text normaliser), so this stays on the
// standard library by necessity rather than by default.
package general

import (
	"context"
	"regexp"
	"strings"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/textproc"
)

// Config is the provider's typed parameter model.
type Config struct {
	// Stages lists which normalisation stage labels this processor applies
	// to (e.g. ["asr_output", "tts_input"]). Defaults to both when empty.
	Stages []string `mapstructure:"stages"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Provider collapses repeated whitespace and trims leading/trailing
// whitespace; it does not remove punctuation.
type Provider struct {
	stages []string
}

var _ textproc.Provider = (*Provider)(nil)

// New builds a Provider from cfg. An empty Stages list defaults to running
// on both the "asr_output" and "tts_input" stages.
func New(cfg Config) *Provider {
	stages := cfg.Stages
	if len(stages) == 0 {
		stages = []string{"asr_output", "tts_input"}
	}
	return &Provider{stages: stages}
}

func (p *Provider) IsAvailable(context.Context) bool { return true }
func (p *Provider) Capabilities() map[string]any     { return map[string]any{"stages": p.stages} }
func (p *Provider) ParameterSchema() provider.ParameterSchema {
	return provider.ParameterSchema{
		"stages": {Type: provider.FieldArray, Description: "normalisation stage labels this processor applies to"},
	}
}

func (p *Provider) Stages() []string { return p.stages }

// Normalise collapses whitespace runs to a single space and trims the
// result. language is unused; the cleanup is language-agnostic.
func (p *Provider) Normalise(_ context.Context, text, _, _ string) (string, error) {
	cleaned := whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(cleaned), nil
}
