// Package watcher turns raw filesystem notifications into calls against
// pkg/ops.Ops, debounced the way original_source/asset-server/src/watch.rs's
// notify::watcher(tx, Duration::from_secs(1)) does. The Watcher abstraction
// and fsNotifyWatcher wrapper follow pkg/cache/service.go's pattern so the
// dispatch loop can be tested against a fake without touching a real
// filesystem.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// debounceWindow matches the original's 1-second coalescing window: events
// for the same path within this window collapse into the last one seen.
const debounceWindow = 1 * time.Second

// Watcher abstracts filesystem notifications so tests can inject a fake.
type Watcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsNotifyWatcher struct {
	*fsnotify.Watcher
}

func (f *fsNotifyWatcher) Events() <-chan fsnotify.Event { return f.Watcher.Events }
func (f *fsNotifyWatcher) Errors() <-chan error          { return f.Watcher.Errors }

// Ops is the subset of pkg/ops.Ops the watcher drives.
type Ops interface {
	GetAssetByPath(diskPath string) (models.Asset, bool)
	TrackFile(ctx context.Context, diskPath string)
	RefreshFile(diskPath string)
	CancelTracking(id uuid.UUID)
	UpdateAsset(asset models.Asset)
	CompileOne(ctx context.Context, id uuid.UUID)
}

// Service watches a library root recursively and dispatches debounced
// create/write/remove/rename notifications into Ops.
type Service struct {
	root        string
	library     *assetlib.Library
	ops         Ops
	autoCompile bool

	watcher        Watcher
	watcherFactory func() (Watcher, error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingEvent // debounce buffer, keyed by path
	// renameFrom holds a path most recently reported via fsnotify.Rename,
	// waiting to see whether a paired Create (the new name) arrives before
	// debounceWindow elapses. fsnotify, unlike the notify crate this was
	// ported from, never pairs old/new names itself — see the package doc.
	renameFrom string
}

type pendingEvent struct {
	op    fsnotify.Op
	timer *time.Timer
}

// New constructs a watcher Service rooted at root. autoCompile mirrors
// settings.auto_compile from the original: when true, newly-dirty assets
// are enqueued for compilation as soon as they're detected.
func New(library *assetlib.Library, ops Ops, autoCompile bool) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		root:        library.Root(),
		library:     library,
		ops:         ops,
		autoCompile: autoCompile,
		watcherFactory: func() (Watcher, error) {
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return nil, err
			}
			return &fsNotifyWatcher{Watcher: w}, nil
		},
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingEvent),
	}
}

// WithWatcher overrides the underlying Watcher — intended for tests.
func (s *Service) WithWatcher(w Watcher) *Service {
	s.watcher = w
	return s
}

// Start installs recursive watches under root and begins dispatching events
// in a background goroutine. It returns once the initial watch set is in
// place.
func (s *Service) Start() error {
	if s.watcher == nil {
		w, err := s.watcherFactory()
		if err != nil {
			return err
		}
		s.watcher = w
	}

	if err := s.addRecursive(s.root); err != nil {
		return err
	}

	log.Printf("watcher: watching directory %q for changes", s.root)
	go s.loop()
	return nil
}

// Stop releases the underlying watcher and stops the dispatch loop.
func (s *Service) Stop() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Service) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = s.watcher.Add(path)
		}
		return nil
	})
}

func (s *Service) loop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.debounce(evt)
		case err, ok := <-s.watcher.Errors():
			if !ok {
				return
			}
			log.Printf("watcher: error: %v", err)
		}
	}
}

// debounce coalesces rapid-fire events for the same path into a single
// dispatch after debounceWindow, matching the original's notify::watcher
// debounce period.
func (s *Service) debounce(evt fsnotify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[evt.Name]; ok {
		p.timer.Stop()
		p.op = evt.Op
	} else {
		s.pending[evt.Name] = &pendingEvent{op: evt.Op}
	}

	name := evt.Name
	s.pending[name].timer = time.AfterFunc(debounceWindow, func() {
		s.mu.Lock()
		p, ok := s.pending[name]
		if ok {
			delete(s.pending, name)
		}
		s.mu.Unlock()
		if ok {
			s.dispatch(name, p.op)
		}
	})
}

func (s *Service) dispatch(path string, op fsnotify.Op) {
	ctx := s.ctx

	switch {
	case op&fsnotify.Create == fsnotify.Create:
		s.handleCreate(ctx, path)
	case op&fsnotify.Write == fsnotify.Write:
		s.handleWrite(ctx, path)
	case op&fsnotify.Remove == fsnotify.Remove:
		s.handleRemove(path)
	case op&fsnotify.Rename == fsnotify.Rename:
		s.handleRename(path)
	}
}

func (s *Service) handleCreate(ctx context.Context, path string) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		_ = s.addRecursive(path)
		return
	}

	s.mu.Lock()
	oldPath := s.renameFrom
	s.renameFrom = ""
	s.mu.Unlock()

	if oldPath != "" {
		if asset, ok := s.ops.GetAssetByPath(oldPath); ok {
			s.applyRename(asset, path)
			return
		}
	}

	s.ops.TrackFile(ctx, path)
	if s.autoCompile {
		if asset, ok := s.ops.GetAssetByPath(path); ok {
			s.ops.CompileOne(ctx, asset.Identifier())
		}
	}
}

func (s *Service) handleWrite(ctx context.Context, path string) {
	asset, ok := s.ops.GetAssetByPath(path)
	if !ok {
		return
	}
	if s.autoCompile {
		s.ops.CompileOne(ctx, asset.Identifier())
	}
	s.ops.RefreshFile(path)
}

func (s *Service) handleRemove(path string) {
	asset, ok := s.ops.GetAssetByPath(path)
	if !ok {
		return
	}

	// A Remove immediately followed within the debounce window by a Create
	// for a different name is really a rename; stash the old path and wait
	// briefly rather than cancelling tracking outright.
	s.mu.Lock()
	s.renameFrom = path
	s.mu.Unlock()

	time.AfterFunc(debounceWindow, func() {
		s.mu.Lock()
		stillPending := s.renameFrom == path
		if stillPending {
			s.renameFrom = ""
		}
		s.mu.Unlock()
		if stillPending {
			s.ops.CancelTracking(asset.Identifier())
		}
	})
}

func (s *Service) handleRename(path string) {
	s.mu.Lock()
	s.renameFrom = path
	s.mu.Unlock()

	// Drop the stashed old name if no paired Create claims it in time.
	time.AfterFunc(debounceWindow, func() {
		s.mu.Lock()
		if s.renameFrom == path {
			s.renameFrom = ""
		}
		s.mu.Unlock()
	})
}

// applyRename updates asset's input path in place and persists it, keeping
// the identifier unchanged — spec.md §9 item 4 leaves rename-identifier
// recomputation undecided; this watcher, like the original, never
// recomputes it.
func (s *Service) applyRename(asset models.Asset, newDiskPath string) {
	rel, err := s.library.ToRelative(newDiskPath)
	if err != nil {
		log.Printf("watcher: rename target %q escapes the library: %v", newDiskPath, err)
		return
	}

	switch a := asset.(type) {
	case *models.ImageAsset:
		a.InputRelPath = rel
		s.ops.UpdateAsset(a)
	case *models.MeshAsset:
		a.InputRelPath = rel
		s.ops.UpdateAsset(a)
	default:
		log.Printf("watcher: rename of non-renameable asset kind %T ignored", asset)
	}
}
