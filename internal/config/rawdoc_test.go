package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
)

func TestApplySectionToRaw_ReplacesExistingSection(t *testing.T) {
	original := `# keep me
server:
  listen_addr: ":8080"
components:
  llm:
    enabled: true # also keep me
`
	updated, err := config.ApplySectionToRaw(original, "server", map[string]any{
		"listen_addr": ":9090",
	})
	require.NoError(t, err)

	assert.Contains(t, updated, "# keep me", "comment attached to an untouched key is preserved")
	assert.Contains(t, updated, "# also keep me", "comment in an unrelated section is preserved")
	assert.Contains(t, updated, "9090")
	assert.NotContains(t, updated, "8080")
	assert.Contains(t, updated, "components:")
}

func TestApplySectionToRaw_InsertsNewSection(t *testing.T) {
	original := "server:\n  listen_addr: \":8080\"\n"
	updated, err := config.ApplySectionToRaw(original, "trace", map[string]any{
		"max_stages": 50,
	})
	require.NoError(t, err)
	assert.Contains(t, updated, "trace:")
	assert.Contains(t, updated, "max_stages: 50")
}

func TestParseRawDocument_ApplySectionKeepsUnrelatedComments(t *testing.T) {
	original := `server:
  listen_addr: ":8080"
# a trailing comment on its own line
components:
  llm:
    enabled: true
    default_provider: openai
`
	doc, err := config.ParseRawDocument(original)
	require.NoError(t, err)

	require.NoError(t, doc.ApplySection("components", map[string]any{
		"llm": map[string]any{"enabled": true, "default_provider": "anthropic"},
	}))

	out, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, out, "# a trailing comment on its own line")
	assert.Contains(t, out, "anthropic")
	assert.NotContains(t, out, "openai")
}
