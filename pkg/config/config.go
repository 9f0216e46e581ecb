// Package config loads server Settings from the JSON file named by
// ASSET_SERVER_SETTINGS, following pkg/obsidian/cli_config.go's
// read-then-unmarshal-with-sentinel-errors shape.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	settingsEnvVar     = "ASSET_SERVER_SETTINGS"
	defaultSettingsPath = "./asset_server_settings.json"
)

var (
	// ErrSettingsNotFound is returned when the settings file does not exist.
	ErrSettingsNotFound = errors.New("config: settings file not found")
	// ErrSettingsParse is returned when the settings file is not valid JSON.
	ErrSettingsParse = errors.New("config: cannot parse settings file")
	// ErrInvalidTool is returned when two tools claim the same file extension.
	ErrInvalidTool = errors.New("config: extension claimed by more than one external tool")
)

// Settings mirrors spec.md §6's configuration record.
type Settings struct {
	LibraryRoot        string              `json:"library_root"`
	LibraryTarget      string              `json:"library_target"`
	Input2UUID         string              `json:"input2uuid"`
	DBFile             *string             `json:"db_file,omitempty"`
	MaxConcurrency     *int                `json:"max_concurrency,omitempty"`
	AutoCompile        bool                `json:"auto_compile"`
	Watch              bool                `json:"watch"`
	AllowExternalTools bool                `json:"allow_external_tools"`
	ExternalTools      map[string][]string `json:"external_tools,omitempty"`
}

// EffectiveDBFile returns the catalog file path, defaulting to
// "<library_root>/assets.db" when unset.
func (s *Settings) EffectiveDBFile() string {
	if s.DBFile != nil && *s.DBFile != "" {
		return *s.DBFile
	}
	return filepath.Join(s.LibraryRoot, "assets.db")
}

// EffectiveMaxConcurrency returns the configured concurrency, defaulting to
// runtime.NumCPU() when unset or non-positive.
func (s *Settings) EffectiveMaxConcurrency() int {
	if s.MaxConcurrency != nil && *s.MaxConcurrency > 0 {
		return *s.MaxConcurrency
	}
	return runtime.NumCPU()
}

// EditProgramFor maps a file extension (without the leading dot) to the
// external tool configured to edit it, matching ext_tools.rs's
// convert_to_edit_programs. Returns ok=false when no tool claims extension.
func (s *Settings) EditProgramFor(extension string) (string, bool) {
	programs, err := s.editPrograms()
	if err != nil {
		return "", false
	}
	program, ok := programs[extension]
	return program, ok
}

func (s *Settings) editPrograms() (map[string]string, error) {
	result := make(map[string]string)
	for tool, extensions := range s.ExternalTools {
		for _, ext := range extensions {
			if existing, ok := result[ext]; ok {
				return nil, fmt.Errorf("%w: %q claimed by both %q and %q", ErrInvalidTool, ext, tool, existing)
			}
			result[ext] = tool
		}
	}
	return result, nil
}

// Load reads settings from the path named by ASSET_SERVER_SETTINGS,
// defaulting to "./asset_server_settings.json".
func Load() (*Settings, error) {
	return LoadFrom(settingsPath())
}

// LoadFrom reads settings from an explicit path — exposed so tests and the
// CLI's --config flag can bypass the environment variable.
func LoadFrom(path string) (*Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
		}
		return nil, err
	}

	var s Settings
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSettingsParse, path, err)
	}

	if _, err := s.editPrograms(); err != nil {
		return nil, err
	}

	return &s, nil
}

func settingsPath() string {
	if p := os.Getenv(settingsEnvVar); p != "" {
		return p
	}
	return defaultSettingsPath
}
