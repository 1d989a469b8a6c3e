package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
)

func TestResolve_FindsNestedValue(t *testing.T) {
	tree, err := config.LoadFromReader(strings.NewReader(`
server:
  temp_audio_dir: "` + t.TempDir() + `"
  listen_addr: ":9999"
components:
  llm:
    enabled: true
    default_provider: openai
`))
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Resolve(tree, "components.llm.default_provider", ""))
	assert.Equal(t, ":9999", config.Resolve(tree, "server.listen_addr", ""))
}

func TestResolve_MissingPathYieldsDefault(t *testing.T) {
	tree, err := config.LoadFromReader(strings.NewReader(`
server:
  temp_audio_dir: "` + t.TempDir() + `"
`))
	require.NoError(t, err)

	assert.Equal(t, "fallback", config.Resolve(tree, "components.llm.default_provider", "fallback"))
	assert.Equal(t, "fallback", config.Resolve(tree, "server.temp_audio_dir.nonsense", "fallback"))
}

func TestResolve_TypeMismatchYieldsDefault(t *testing.T) {
	tree, err := config.LoadFromReader(strings.NewReader(`
server:
  temp_audio_dir: "` + t.TempDir() + `"
  listen_addr: ":9999"
`))
	require.NoError(t, err)

	assert.Equal(t, 0, config.Resolve(tree, "server.listen_addr", 0))
}
