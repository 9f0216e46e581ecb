package cmd

import (
	"log"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/catalog"
	"github.com/dobrakmato/asset-server/pkg/compiler"
	"github.com/dobrakmato/asset-server/pkg/config"
	"github.com/dobrakmato/asset-server/pkg/importer"
	"github.com/dobrakmato/asset-server/pkg/ops"
	"github.com/dobrakmato/asset-server/pkg/scanner"
)

// services bundles every long-lived component wired from a single
// config.Settings, mirroring main.rs's create_library/create_importer/
// create_scanner/create_compiler/create_ops chain.
type services struct {
	settings *config.Settings
	library  *assetlib.Library
	catalog  *catalog.Catalog
	events   *broadcaster.Broadcaster
	scanner  *scanner.Scanner
	compiler *compiler.Scheduler
	ops      *ops.Ops
}

func buildServices(settings *config.Settings) (*services, error) {
	library := assetlib.New(settings.LibraryRoot, settings.LibraryTarget)

	cat, err := catalog.Open(settings.EffectiveDBFile(), settings.Input2UUID)
	if err != nil {
		return nil, err
	}

	events := broadcaster.New()
	imp := importer.New(library, cat)
	scan := scanner.New(library, cat, imp, events)
	comp := compiler.New(library, cat, scan, events, settings.EffectiveMaxConcurrency())
	o := ops.New(library, cat, scan, imp, comp, events, settings.AutoCompile)

	return &services{
		settings: settings,
		library:  library,
		catalog:  cat,
		events:   events,
		scanner:  scan,
		compiler: comp,
		ops:      o,
	}, nil
}

func (s *services) Close() {
	if err := s.catalog.Close(); err != nil {
		log.Printf("asset-server: error closing catalog: %v", err)
	}
	s.events.Stop()
}

// mustLoadSettings loads settings from --config when set, otherwise from
// ASSET_SERVER_SETTINGS (or its default path).
func mustLoadSettings() *config.Settings {
	var (
		settings *config.Settings
		err      error
	)
	if configPath != "" {
		settings, err = config.LoadFrom(configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		log.Fatalf("asset-server: cannot load settings: %v", err)
	}
	return settings
}
