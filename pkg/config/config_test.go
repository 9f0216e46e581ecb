package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromParsesMinimalSettings(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{
		"library_root": "/srv/library",
		"library_target": "/srv/output",
		"input2uuid": "/srv/input2uuid.txt",
		"auto_compile": true,
		"watch": true,
		"allow_external_tools": false
	}`)

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/library", s.LibraryRoot)
	assert.True(t, s.AutoCompile)
	assert.Equal(t, filepath.Join("/srv/library", "assets.db"), s.EffectiveDBFile())
	assert.Greater(t, s.EffectiveMaxConcurrency(), 0)
}

func TestLoadFromMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFrom(filepath.Join(dir, "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettingsNotFound)
}

func TestLoadFromInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{not json`)
	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettingsParse)
}

func TestEffectiveDBFileHonorsOverride(t *testing.T) {
	override := "/tmp/custom.json"
	s := &Settings{LibraryRoot: "/srv/library", DBFile: &override}
	assert.Equal(t, override, s.EffectiveDBFile())
}

func TestEditProgramForConflictingExtensionErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeSettings(t, dir, `{
		"library_root": "/srv/library",
		"library_target": "/srv/output",
		"input2uuid": "/srv/input2uuid.txt",
		"auto_compile": false,
		"watch": false,
		"allow_external_tools": true,
		"external_tools": {
			"gimp": ["png"],
			"photoshop": ["png"]
		}
	}`)

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTool)
}

func TestEditProgramForResolvesExtension(t *testing.T) {
	s := &Settings{ExternalTools: map[string][]string{"gimp": {"png", "xcf"}}}
	program, ok := s.EditProgramFor("png")
	require.True(t, ok)
	assert.Equal(t, "gimp", program)

	_, ok = s.EditProgramFor("obj")
	assert.False(t, ok)
}
