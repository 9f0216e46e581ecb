package ops

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]models.Asset
	comps map[uuid.UUID][]models.Compilation
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byID: map[uuid.UUID]models.Asset{}, comps: map[uuid.UUID][]models.Compilation{}}
}
func (f *fakeCatalog) Get(id uuid.UUID) (models.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	return a, ok
}
func (f *fakeCatalog) GetAll() []models.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out
}
func (f *fakeCatalog) FindByInputPath(rel string) (models.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if p, ok := a.InputPath(); ok && p == rel {
			return a, true
		}
	}
	return nil, false
}
func (f *fakeCatalog) Insert(a models.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.Identifier()] = a
}
func (f *fakeCatalog) Delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}
func (f *fakeCatalog) GetCompilations(id uuid.UUID) []models.Compilation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comps[id]
}

type fakeScanner struct {
	dirtyIDs   []uuid.UUID
	refreshed  []string
	rescanned  int
	isDirtyRet bool
}

func (f *fakeScanner) DirtyAssets() []uuid.UUID  { return f.dirtyIDs }
func (f *fakeScanner) IsDirty(id uuid.UUID) bool { return f.isDirtyRet }
func (f *fakeScanner) RefreshFile(diskPath string) {
	f.refreshed = append(f.refreshed, diskPath)
}
func (f *fakeScanner) FullRescan() broadcaster.ScanResults {
	f.rescanned++
	return broadcaster.ScanResults{Scanned: 1, Imported: 1, Dirty: f.dirtyIDs}
}

type fakeImporter struct {
	lib    *assetlib.Library
	fail   bool
}

func (f *fakeImporter) Import(absPath string) (models.Asset, error) {
	if f.fail {
		return nil, assetlib.ErrOutsideLibrary
	}
	id, err := f.lib.IdentifierOf(absPath)
	if err != nil {
		return nil, err
	}
	rel, _ := f.lib.ToRelative(absPath)
	return &models.ImageAsset{
		Common:       models.Common{ID: id, Name: rel, Tags: []string{}, UpdatedAt: time.Now().UTC()},
		InputRelPath: rel,
		Format:       models.FormatRgba8,
	}, nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (f *fakeScheduler) Enqueue(ctx context.Context, id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, id)
}
func (f *fakeScheduler) EnqueueAll(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		f.Enqueue(ctx, id)
	}
}

type collectingPublisher struct {
	mu     sync.Mutex
	events []broadcaster.Event
}

func (c *collectingPublisher) Publish(e broadcaster.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestTrackFilePublishesAssetUpdate(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	scanner := &fakeScanner{}
	imp := &fakeImporter{lib: lib}
	sched := &fakeScheduler{}
	pub := &collectingPublisher{}

	o := New(lib, cat, scanner, imp, sched, pub, false)
	o.TrackFile(context.Background(), "/srv/library/tex/a.png")

	assert.Len(t, cat.GetAll(), 1)
	assert.Equal(t, []string{"/srv/library/tex/a.png"}, scanner.refreshed)
	require.Len(t, pub.events, 1)
	_, ok := pub.events[0].(broadcaster.AssetUpdate)
	assert.True(t, ok)
}

func TestTrackFileImportFailureStillRefreshes(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	scanner := &fakeScanner{}
	imp := &fakeImporter{lib: lib, fail: true}
	sched := &fakeScheduler{}
	pub := &collectingPublisher{}

	o := New(lib, cat, scanner, imp, sched, pub, false)
	o.TrackFile(context.Background(), "/srv/library/tex/a.png")

	assert.Empty(t, cat.GetAll())
	assert.Len(t, scanner.refreshed, 1)
	assert.Empty(t, pub.events)
}

func TestCancelTrackingDeletesAndPublishes(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	id := uuid.New()
	cat.byID[id] = &models.ImageAsset{Common: models.Common{ID: id}}
	scanner := &fakeScanner{}
	imp := &fakeImporter{lib: lib}
	sched := &fakeScheduler{}
	pub := &collectingPublisher{}

	o := New(lib, cat, scanner, imp, sched, pub, false)
	o.CancelTracking(id)

	assert.False(t, cat.Has(id))
	require.Len(t, pub.events, 1)
	removed, ok := pub.events[0].(broadcaster.AssetRemoved)
	require.True(t, ok)
	assert.Equal(t, id, removed.ID)
}

func (f *fakeCatalog) Has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok
}

func TestRefreshEnqueuesDirtyWhenAutoCompile(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	id := uuid.New()
	scanner := &fakeScanner{dirtyIDs: []uuid.UUID{id}}
	imp := &fakeImporter{lib: lib}
	sched := &fakeScheduler{}
	pub := &collectingPublisher{}

	o := New(lib, cat, scanner, imp, sched, pub, true)
	results := o.Refresh(context.Background())

	assert.Equal(t, 1, scanner.rescanned)
	assert.Equal(t, []uuid.UUID{id}, results.Dirty)
	assert.Equal(t, []uuid.UUID{id}, sched.enqueued)
}

func TestRefreshDoesNotEnqueueWhenAutoCompileDisabled(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	id := uuid.New()
	scanner := &fakeScanner{dirtyIDs: []uuid.UUID{id}}
	imp := &fakeImporter{lib: lib}
	sched := &fakeScheduler{}
	pub := &collectingPublisher{}

	o := New(lib, cat, scanner, imp, sched, pub, false)
	o.Refresh(context.Background())

	assert.Empty(t, sched.enqueued)
}
