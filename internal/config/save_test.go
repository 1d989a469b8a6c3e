package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
)

func TestSave_CreatesBackupAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voiced.yaml")

	original := `
server:
  temp_audio_dir: "` + t.TempDir() + `"
components:
  llm:
    enabled: true
    default_provider: openai
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	tree, err := config.Load(path)
	require.NoError(t, err)

	raw := tree.Raw()
	components := raw["components"].(map[string]any)
	llmCfg := components["llm"].(map[string]any)
	llmCfg["default_provider"] = "anthropic"

	require.NoError(t, config.Save(tree, path))

	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err, "expected a backups directory to be created before save")
	var sawBackup bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".bak") {
			sawBackup = true
		}
	}
	assert.True(t, sawBackup, "expected a .bak backup to be written before save")

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", reloaded.Typed().Components[config.KindLLM].DefaultProvider)
}

func TestSave_NoBackupWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new-voiced.yaml")

	tree, err := config.LoadFromReader(strings.NewReader(`
server:
  temp_audio_dir: "` + t.TempDir() + `"
`))
	require.NoError(t, err)

	require.NoError(t, config.Save(tree, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the saved file itself, no backups dir")

	_, err = os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err), "no backups directory should be created when the source file is absent")
}

func TestSaveRaw_PreservesCommentsOutsideEditedSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voiced.yaml")

	original := `# top-level comment
server:
  temp_audio_dir: "` + t.TempDir() + `" # inline note
components:
  llm:
    enabled: true
    default_provider: openai
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	updated, err := config.ApplySectionToRaw(original, "components", map[string]any{
		"llm": map[string]any{
			"enabled":          true,
			"default_provider": "anthropic",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, updated, "# top-level comment")
	assert.Contains(t, updated, "# inline note")
	assert.Contains(t, updated, "anthropic")

	require.NoError(t, config.SaveRaw(updated, path))

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", reloaded.Typed().Components[config.KindLLM].DefaultProvider)

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
