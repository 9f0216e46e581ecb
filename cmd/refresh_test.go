package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshCommandImportsAndPersists(t *testing.T) {
	root := t.TempDir()
	libraryDir := filepath.Join(root, "library")
	require.NoError(t, os.MkdirAll(libraryDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(libraryDir, "brick.png"), []byte("fake-png"), 0o644))

	dbFile := filepath.Join(root, "catalog.json")
	input2uuid := filepath.Join(root, "input2uuid.txt")
	settings := map[string]any{
		"library_root":   libraryDir,
		"library_target": filepath.Join(root, "compiled"),
		"input2uuid":     input2uuid,
		"db_file":        dbFile,
		"auto_compile":   false,
		"watch":          false,
	}
	raw, err := json.Marshal(settings)
	require.NoError(t, err)

	settingsFile := filepath.Join(root, "settings.json")
	require.NoError(t, os.WriteFile(settingsFile, raw, 0o644))

	rootCmd.SetArgs([]string{"refresh", "--config", settingsFile})
	err = rootCmd.Execute()
	rootCmd.SetArgs([]string{})
	require.NoError(t, err)

	persisted, err := os.ReadFile(dbFile)
	require.NoError(t, err)
	assert.Contains(t, string(persisted), "brick.png")
}
