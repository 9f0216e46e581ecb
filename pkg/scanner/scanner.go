// Package scanner walks the library, invokes the Importer for new files,
// computes per-identifier dirtiness, and maintains a dirty set.
package scanner

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// Catalog is the subset of pkg/catalog.Catalog the Scanner depends on.
type Catalog interface {
	Get(id uuid.UUID) (models.Asset, bool)
	GetAll() []models.Asset
	Has(id uuid.UUID) bool
	Insert(a models.Asset)
	Delete(id uuid.UUID)
	FindByInputPath(relativePath string) (models.Asset, bool)
	LastCompilation(id uuid.UUID) (models.Compilation, bool)
}

// Importer is the subset of pkg/importer.Importer the Scanner depends on.
type Importer interface {
	Import(absPath string) (models.Asset, error)
}

// EventPublisher is the subset of pkg/broadcaster.Broadcaster the Scanner
// depends on, named locally so callers can pass a fake in tests.
type EventPublisher interface {
	Publish(event broadcaster.Event)
}

// ScanResults summarizes a full rescan (re-exported alias so callers don't
// need to import pkg/broadcaster just to read a field).
type ScanResults = broadcaster.ScanResults

// Scanner walks the library and tracks per-identifier dirtiness.
type Scanner struct {
	root     string
	library  *assetlib.Library
	catalog  Catalog
	importer Importer
	events   EventPublisher

	mu    sync.RWMutex
	dirty map[uuid.UUID]struct{}
}

// New constructs a Scanner rooted at the library's root.
func New(library *assetlib.Library, cat Catalog, imp Importer, events EventPublisher) *Scanner {
	return &Scanner{
		root:     library.Root(),
		library:  library,
		catalog:  cat,
		importer: imp,
		events:   events,
		dirty:    make(map[uuid.UUID]struct{}),
	}
}

// DirtyAssets returns every identifier currently considered dirty.
func (s *Scanner) DirtyAssets() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, id)
	}
	return out
}

// mtime returns the modification time of path, and ok=false if the path's
// metadata could not be read (per the REDESIGN FLAG fix for spec.md §9
// item 6: treated by the caller as "dirty" rather than panicking).
func mtime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// isDirtyInternal implements spec.md §4.4's dirtiness algorithm for an
// already-tracked identifier.
func (s *Scanner) isDirtyInternal(id uuid.UUID) bool {
	asset, ok := s.catalog.Get(id)
	if !ok {
		log.Printf("scanner: is_dirty called for untracked identifier %s", id)
		return true
	}

	if _, ok := s.catalog.LastCompilation(id); !ok {
		return true
	}

	outPath := s.library.OutputPath(id)
	outTime, ok := mtime(outPath)
	if !ok {
		// Output does not exist (or is unreadable): dirty either way.
		return true
	}

	if inputRel, hasInput := asset.InputPath(); hasInput {
		inTime, ok := mtime(s.library.ToAbsolute(inputRel))
		if !ok {
			// Transient stat failure on the source file: treat as dirty
			// rather than panicking (REDESIGN FLAG, spec.md §9 item 6).
			return true
		}
		if inTime.After(outTime) {
			return true
		}
	}

	if last, ok := s.catalog.LastCompilation(id); ok && last.Failed() {
		return true
	}

	if asset.LastModified().After(outTime) {
		return true
	}

	return false
}

// IsDirty recomputes dirtiness for id, updates the dirty set, and
// publishes an AssetDirtyStatus event.
func (s *Scanner) IsDirty(id uuid.UUID) bool {
	result := s.isDirtyInternal(id)

	s.mu.Lock()
	if result {
		s.dirty[id] = struct{}{}
	} else {
		delete(s.dirty, id)
	}
	s.mu.Unlock()

	s.events.Publish(broadcaster.AssetDirtyStatus{ID: id, Dirty: result})
	return result
}

// findAssetByPathHack resolves a disk path to a tracked asset, trying the
// material-folder ".mat" indirection when a direct lookup misses (spec.md
// §4.4's "Material-folder hack").
func (s *Scanner) findAssetByPathHack(diskPath string) (models.Asset, bool) {
	rel, err := s.library.ToRelative(diskPath)
	if err != nil {
		return nil, false
	}
	if a, ok := s.catalog.FindByInputPath(rel); ok {
		return a, true
	}
	matRel, err := s.library.ToRelative(filepath.Join(diskPath, ".mat"))
	if err != nil {
		return nil, false
	}
	return s.catalog.FindByInputPath(matRel)
}

func (s *Scanner) importFile(absPath string) (uuid.UUID, bool) {
	asset, err := s.importer.Import(absPath)
	if err != nil {
		return uuid.UUID{}, false
	}
	s.catalog.Insert(asset)

	s.mu.Lock()
	s.dirty[asset.Identifier()] = struct{}{}
	s.mu.Unlock()

	return asset.Identifier(), true
}

// RefreshFile refreshes a single disk path: if it resolves to a tracked
// asset, either deletes it (source gone) or recomputes dirtiness;
// otherwise attempts an import.
func (s *Scanner) RefreshFile(diskPath string) {
	asset, ok := s.findAssetByPathHack(diskPath)
	if !ok {
		s.importFile(diskPath)
		return
	}

	id := asset.Identifier()
	if _, err := os.Stat(diskPath); err != nil {
		s.mu.Lock()
		delete(s.dirty, id)
		s.mu.Unlock()
		s.catalog.Delete(id)
		s.events.Publish(broadcaster.AssetRemoved{ID: id})
		return
	}
	s.IsDirty(id)
}

// FullRescan clears the dirty set, walks the library root, imports new
// files, recomputes dirtiness for tracked ones, and removes catalog
// entries whose source file no longer exists.
func (s *Scanner) FullRescan() ScanResults {
	s.mu.Lock()
	s.dirty = make(map[uuid.UUID]struct{})
	s.mu.Unlock()

	assets := s.catalog.GetAll()
	var results ScanResults

	_ = filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("scanner: walk error at %s: %v", path, err)
			return nil
		}
		results.Scanned++

		if asset, ok := s.findAssetByPathHack(path); ok {
			id := asset.Identifier()
			if s.IsDirty(id) {
				results.Dirty = append(results.Dirty, id)
			}
			return nil
		}

		if id, ok := s.importFile(path); ok {
			results.Imported++
			results.Dirty = append(results.Dirty, id)
		}
		return nil
	})

	var toRemove []uuid.UUID
	for _, asset := range assets {
		if rel, hasInput := asset.InputPath(); hasInput {
			if _, err := os.Stat(s.library.ToAbsolute(rel)); err != nil {
				toRemove = append(toRemove, asset.Identifier())
			}
		}
	}
	for _, id := range toRemove {
		s.catalog.Delete(id)
		s.events.Publish(broadcaster.AssetRemoved{ID: id})
		results.Removed++
	}

	s.events.Publish(broadcaster.ScanResultsEvent{ScanResults: results})
	return results
}
