// Package ops is the thin façade every transport (HTTP API, MCP tools, the
// fsnotify watcher) drives the asset pipeline through, matching
// original_source/asset-server/src/ops.rs's method set.
package ops

import (
	"context"
	"log"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// Catalog is the subset of pkg/catalog.Catalog Ops depends on.
type Catalog interface {
	Get(id uuid.UUID) (models.Asset, bool)
	GetAll() []models.Asset
	FindByInputPath(relativePath string) (models.Asset, bool)
	Insert(a models.Asset)
	Delete(id uuid.UUID)
	GetCompilations(id uuid.UUID) []models.Compilation
}

// Scanner is the subset of pkg/scanner.Scanner Ops depends on.
type Scanner interface {
	DirtyAssets() []uuid.UUID
	IsDirty(id uuid.UUID) bool
	RefreshFile(diskPath string)
	FullRescan() broadcaster.ScanResults
}

// Importer is the subset of pkg/importer.Importer Ops depends on.
type Importer interface {
	Import(absPath string) (models.Asset, error)
}

// Scheduler is the subset of pkg/compiler.Scheduler Ops depends on.
type Scheduler interface {
	Enqueue(ctx context.Context, id uuid.UUID)
	EnqueueAll(ctx context.Context, ids []uuid.UUID)
}

// EventPublisher is the subset of pkg/broadcaster.Broadcaster Ops depends on.
type EventPublisher interface {
	Publish(event broadcaster.Event)
}

// Ops wires the catalog, scanner, compiler, and importer behind the single
// surface every caller into the pipeline uses.
type Ops struct {
	library    *assetlib.Library
	catalog    Catalog
	scanner    Scanner
	importer   Importer
	compiler   Scheduler
	events     EventPublisher
	autoCompile bool
}

// New constructs an Ops façade. autoCompile mirrors settings.auto_compile:
// when true, newly-dirtied assets are enqueued for compilation automatically.
func New(library *assetlib.Library, catalog Catalog, scanner Scanner, importer Importer, compiler Scheduler, events EventPublisher, autoCompile bool) *Ops {
	return &Ops{
		library:     library,
		catalog:     catalog,
		scanner:     scanner,
		importer:    importer,
		compiler:    compiler,
		events:      events,
		autoCompile: autoCompile,
	}
}

// GetAssetByPath resolves a disk path to a tracked asset.
func (o *Ops) GetAssetByPath(diskPath string) (models.Asset, bool) {
	rel, err := o.library.ToRelative(diskPath)
	if err != nil {
		return nil, false
	}
	return o.catalog.FindByInputPath(rel)
}

// GetAllAssets returns every tracked asset.
func (o *Ops) GetAllAssets() []models.Asset { return o.catalog.GetAll() }

// GetAsset looks up a single asset by identifier.
func (o *Ops) GetAsset(id uuid.UUID) (models.Asset, bool) { return o.catalog.Get(id) }

// GetCompilations returns the compilation history for id.
func (o *Ops) GetCompilations(id uuid.UUID) []models.Compilation {
	return o.catalog.GetCompilations(id)
}

// GetDirtyAssets returns every currently-dirty identifier.
func (o *Ops) GetDirtyAssets() []uuid.UUID { return o.scanner.DirtyAssets() }

// IsAssetDirty recomputes and returns id's dirtiness.
func (o *Ops) IsAssetDirty(id uuid.UUID) bool { return o.scanner.IsDirty(id) }

// UpdateAsset persists asset's new metadata, recomputes its dirtiness, and
// broadcasts the update.
func (o *Ops) UpdateAsset(asset models.Asset) {
	o.catalog.Insert(asset)
	o.scanner.IsDirty(asset.Identifier())
	o.events.Publish(broadcaster.AssetUpdate{Asset: asset})
}

// CompileAll enqueues every identifier in ids for compilation.
func (o *Ops) CompileAll(ctx context.Context, ids []uuid.UUID) {
	o.compiler.EnqueueAll(ctx, ids)
}

// CompileOne enqueues a single identifier for compilation.
func (o *Ops) CompileOne(ctx context.Context, id uuid.UUID) {
	o.compiler.Enqueue(ctx, id)
}

// TrackFile imports a new disk path, refreshes its dirtiness, and broadcasts
// the resulting asset — matching ops.rs's track_file.
func (o *Ops) TrackFile(ctx context.Context, diskPath string) {
	asset, err := o.importer.Import(diskPath)
	var imported uuid.UUID
	ok := err == nil
	if ok {
		o.catalog.Insert(asset)
		imported = asset.Identifier()
		log.Printf("ops: imported file %s as asset %s", diskPath, imported)
	}

	o.scanner.RefreshFile(diskPath)

	if ok {
		if a, found := o.catalog.Get(imported); found {
			o.events.Publish(broadcaster.AssetUpdate{Asset: a})
		}
	}
}

// CancelTracking removes id from the catalog and broadcasts its removal.
func (o *Ops) CancelTracking(id uuid.UUID) {
	o.catalog.Delete(id)
	o.events.Publish(broadcaster.AssetRemoved{ID: id})
}

// RefreshFile reconciles a single disk path with the catalog.
func (o *Ops) RefreshFile(diskPath string) {
	o.scanner.RefreshFile(diskPath)
}

// Refresh runs a full rescan and, when auto-compile is enabled, enqueues
// every dirty asset it finds. FullRescan already broadcasts its own
// ScanResultsEvent, so this does not publish a second one.
func (o *Ops) Refresh(ctx context.Context) broadcaster.ScanResults {
	results := o.scanner.FullRescan()
	log.Printf("ops: refresh results: %d scanned, %d imported, %d removed, %d dirty",
		results.Scanned, results.Imported, results.Removed, len(results.Dirty))

	if o.autoCompile {
		o.compiler.EnqueueAll(ctx, results.Dirty)
	}
	return results
}
