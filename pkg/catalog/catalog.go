// Package catalog holds the persistent in-memory store of asset records and
// compilation history, with background auto-flush and a side-index dump.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is the catalog's not-found sentinel. No Catalog method
// returns it; lookups report absence through a boolean result.
var ErrNotFound = errors.New("catalog: not found")

const flushInterval = 15 * time.Second

// document is the on-disk persisted shape: a single structured document
// with two arrays, per spec.md §6.
type document struct {
	Assets       models.AssetList     `json:"assets"`
	Compilations []models.Compilation `json:"compilations"`
}

// Catalog is the persistent mapping from identifier to Asset and
// Compilation history. Safe for concurrent use.
type Catalog struct {
	file         string
	input2uuid   string
	assetsMu     sync.RWMutex
	assets       map[uuid.UUID]models.Asset
	compMu       sync.RWMutex
	compilations map[uuid.UUID][]models.Compilation
	dirty        atomic.Bool

	closeOnce sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// Open loads file if present (a missing file is equivalent to empty) and
// starts the background auto-flush loop. A read failure on an existing file
// is fatal, per spec.md §4.2/§7 — the caller should treat it as
// unrecoverable (the operator must correct or delete the file).
func Open(file, input2uuidFile string) (*Catalog, error) {
	c := &Catalog{
		file:         file,
		input2uuid:   input2uuidFile,
		assets:       make(map[uuid.UUID]models.Asset),
		compilations: make(map[uuid.UUID][]models.Compilation),
		stopCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
	}

	if data, err := os.ReadFile(file); err == nil {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("catalog: cannot deserialize database %s: %w", file, err)
		}
		for _, a := range doc.Assets {
			c.assets[a.Identifier()] = a
		}
		for _, comp := range doc.Compilations {
			c.compilations[comp.Identifier] = append(c.compilations[comp.Identifier], comp)
		}
		log.Printf("catalog: loaded %d tracked assets and %d compilations from %s", len(c.assets), len(doc.Compilations), file)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog: cannot read database %s: %w", file, err)
	}

	c.dirty.Store(true)

	go c.autoFlushLoop()

	return c, nil
}

// Close stops the auto-flush loop, flushing one last time if dirty.
func (c *Catalog) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.stoppedCh
		if c.dirty.Load() {
			err = c.flush()
		}
	})
	return err
}

func (c *Catalog) autoFlushLoop() {
	defer close(c.stoppedCh)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.dirty.CompareAndSwap(true, false) {
				if err := c.flush(); err != nil {
					log.Printf("catalog: flush failed, will retry next tick: %v", err)
					c.dirty.Store(true)
				}
			}
		}
	}
}

// flush serializes the current snapshot and writes it, then dumps the
// side file in full. Both writes use the atomic temp-file-then-rename
// discipline. Write failures are logged by the caller (autoFlushLoop),
// which also re-arms the dirty flag so the next tick retries.
func (c *Catalog) flush() error {
	doc := document{
		Assets:       c.GetAll(),
		Compilations: c.allCompilations(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("catalog: cannot serialize database: %w", err)
	}
	if err := writeFileAtomic(c.file, data, 0o644); err != nil {
		return fmt.Errorf("catalog: cannot write database file: %w", err)
	}
	if c.input2uuid != "" {
		if err := c.dumpInput2UUID(); err != nil {
			log.Printf("catalog: cannot write side file %s: %v", c.input2uuid, err)
		}
	}
	return nil
}

// dumpInput2UUID writes the "<display_name>=<identifier-hyphenated>\n"
// side file in full (not incrementally), one line per asset. Duplicates
// are not deduplicated at write time, matching spec.md §6.
func (c *Catalog) dumpInput2UUID() error {
	assets := c.GetAll()
	var buf []byte
	for _, a := range assets {
		buf = append(buf, []byte(fmt.Sprintf("%s=%s\n", a.DisplayName(), a.Identifier().String()))...)
	}
	return writeFileAtomic(c.input2uuid, buf, 0o644)
}

func (c *Catalog) allCompilations() []models.Compilation {
	c.compMu.RLock()
	defer c.compMu.RUnlock()
	var out []models.Compilation
	for _, list := range c.compilations {
		out = append(out, list...)
	}
	return out
}

// Has reports whether id is tracked.
func (c *Catalog) Has(id uuid.UUID) bool {
	c.assetsMu.RLock()
	defer c.assetsMu.RUnlock()
	_, ok := c.assets[id]
	return ok
}

// Get returns the asset for id, if tracked.
func (c *Catalog) Get(id uuid.UUID) (models.Asset, bool) {
	c.assetsMu.RLock()
	defer c.assetsMu.RUnlock()
	a, ok := c.assets[id]
	return a, ok
}

// GetAll returns every tracked asset in an unspecified but stable-sorted
// (by identifier) order, making test assertions deterministic.
func (c *Catalog) GetAll() []models.Asset {
	c.assetsMu.RLock()
	defer c.assetsMu.RUnlock()
	out := make([]models.Asset, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier().String() < out[j].Identifier().String()
	})
	return out
}

// FindByInputPath scans values for an asset whose input path matches.
func (c *Catalog) FindByInputPath(relativePath string) (models.Asset, bool) {
	c.assetsMu.RLock()
	defer c.assetsMu.RUnlock()
	for _, a := range c.assets {
		if p, ok := a.InputPath(); ok && p == relativePath {
			return a, true
		}
	}
	return nil, false
}

// Insert adds or replaces an asset and marks the catalog dirty.
func (c *Catalog) Insert(a models.Asset) {
	c.assetsMu.Lock()
	c.assets[a.Identifier()] = a
	c.assetsMu.Unlock()
	c.dirty.Store(true)
}

// Update stores a under its own identifier (a.Identifier()) and marks the
// catalog dirty. id is not used: an entry under a different id is left
// untouched.
func (c *Catalog) Update(id uuid.UUID, a models.Asset) {
	c.Insert(a)
	_ = id
}

// Delete removes an asset and marks the catalog dirty.
func (c *Catalog) Delete(id uuid.UUID) {
	c.assetsMu.Lock()
	delete(c.assets, id)
	c.assetsMu.Unlock()
	c.dirty.Store(true)
}

// InsertCompilation appends a Compilation record to id's chronological
// history and marks the catalog dirty.
func (c *Catalog) InsertCompilation(comp models.Compilation) {
	c.compMu.Lock()
	c.compilations[comp.Identifier] = append(c.compilations[comp.Identifier], comp)
	c.compMu.Unlock()
	c.dirty.Store(true)
}

// GetCompilations returns id's compilation history, oldest first.
func (c *Catalog) GetCompilations(id uuid.UUID) []models.Compilation {
	c.compMu.RLock()
	defer c.compMu.RUnlock()
	list := c.compilations[id]
	out := make([]models.Compilation, len(list))
	copy(out, list)
	return out
}

// LastCompilation returns the most recent (by timestamp) Compilation for
// id, if any.
func (c *Catalog) LastCompilation(id uuid.UUID) (models.Compilation, bool) {
	c.compMu.RLock()
	defer c.compMu.RUnlock()
	list := c.compilations[id]
	if len(list) == 0 {
		return models.Compilation{}, false
	}
	last := list[0]
	for _, comp := range list[1:] {
		if comp.Timestamp.After(last.Timestamp) {
			last = comp
		}
	}
	return last, true
}

// CompilationETA returns the duration of id's last compilation, if any.
func (c *Catalog) CompilationETA(id uuid.UUID) (time.Duration, bool) {
	last, ok := c.LastCompilation(id)
	if !ok {
		return 0, false
	}
	return last.Duration, true
}
