// Package exttools opens library files and the library root itself in
// the host's default or a per-extension-configured program, gated by
// config.Settings.AllowExternalTools.
package exttools

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/dobrakmato/asset-server/pkg/config"
	"github.com/skratchdot/open-golang/open"
)

// Tools wraps open-golang behind the library's allow/deny gate and the
// per-extension program map, matching ext_tools.rs's ExtTools.
type Tools struct {
	allowed     bool
	libraryRoot string
	programs    map[string]string
}

// New constructs Tools from settings.
func New(settings *config.Settings) *Tools {
	programs := map[string]string{}
	for tool, extensions := range settings.ExternalTools {
		for _, ext := range extensions {
			programs[ext] = tool
		}
	}
	return &Tools{
		allowed:     settings.AllowExternalTools,
		libraryRoot: settings.LibraryRoot,
		programs:    programs,
	}
}

func (t *Tools) checkAllowed() bool {
	if !t.allowed {
		log.Printf("exttools: opening disabled; set allow_external_tools in server config to enable it")
		return false
	}
	return true
}

// OpenLibraryRoot opens the library root directory in the OS file browser.
func (t *Tools) OpenLibraryRoot() {
	if !t.checkAllowed() {
		return
	}
	if err := open.Run(t.libraryRoot); err != nil {
		log.Printf("exttools: cannot open library root: %v", err)
	}
}

// EditFile opens path in the program configured for its extension, or the
// OS default handler when no extension-specific program is configured. A
// path without an extension is not opened.
func (t *Tools) EditFile(path string) {
	if !t.checkAllowed() {
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return
	}

	program, ok := t.programs[ext]
	if !ok {
		if err := open.Run(path); err != nil {
			log.Printf("exttools: cannot edit file %s: %v", path, err)
		}
		return
	}

	if err := open.RunWith(path, program); err != nil {
		log.Printf("exttools: cannot edit file %s with %s: %v", path, program, err)
	}
}
