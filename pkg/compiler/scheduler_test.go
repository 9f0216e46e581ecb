package compiler

import (
	"context"
	"errors"
	"os/exec"
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
	comps []models.Compilation
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byID: map[uuid.UUID]models.Asset{}}
}

func (f *fakeCatalog) Get(id uuid.UUID) (models.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	return a, ok
}
func (f *fakeCatalog) CompilationETA(id uuid.UUID) (time.Duration, bool) { return 0, false }
func (f *fakeCatalog) InsertCompilation(c models.Compilation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comps = append(f.comps, c)
}
func (f *fakeCatalog) insert(a models.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.Identifier()] = a
}
func (f *fakeCatalog) compilations() []models.Compilation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Compilation, len(f.comps))
	copy(out, f.comps)
	return out
}

type fakeScanner struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeScanner) IsDirty(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return false
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
func (c *collectingPublisher) snapshot() []broadcaster.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broadcaster.Event, len(c.events))
	copy(out, c.events)
	return out
}

type scriptedRunner struct {
	mu      sync.Mutex
	delay   time.Duration
	active  int
	maxSeen int
	fail    map[uuid.UUID]bool
	cmds    []Command
}

func (r *scriptedRunner) Run(ctx context.Context, cmd Command) ([]byte, []byte, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	return nil, nil, nil
}

func newImageAsset(t *testing.T, lib *assetlib.Library, relPath string) *models.ImageAsset {
	t.Helper()
	id, err := lib.IdentifierOf(lib.ToAbsolute(relPath))
	require.NoError(t, err)
	return &models.ImageAsset{
		Common:       models.Common{ID: id, Name: relPath, Tags: []string{}, UpdatedAt: time.Now().UTC()},
		InputRelPath: relPath,
		Format:       models.FormatRgba8,
	}
}

func TestEnqueuePublishesTerminalCompiledStatus(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	asset := newImageAsset(t, lib, "tex/a.png")
	cat.insert(asset)

	scanner := &fakeScanner{}
	pub := &collectingPublisher{}
	runner := &scriptedRunner{}

	sched := New(lib, cat, scanner, pub, 2).WithProcessRunner(runner)
	sched.Enqueue(context.Background(), asset.ID)

	require.Eventually(t, func() bool {
		return len(cat.compilations()) == 1
	}, time.Second, 5*time.Millisecond)

	comp := cat.compilations()[0]
	assert.Nil(t, comp.Error)
	assert.Equal(t, asset.ID, comp.Identifier)
	assert.Contains(t, pub.snapshot(), broadcaster.Event(broadcaster.AssetCompilationStatus{ID: asset.ID, State: broadcaster.StateCompiled}))

	require.Eventually(t, func() bool {
		return sched.Queued() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBoundedConcurrency(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	scanner := &fakeScanner{}
	pub := &collectingPublisher{}
	runner := &scriptedRunner{delay: 50 * time.Millisecond}

	const n = 2
	sched := New(lib, cat, scanner, pub, n).WithProcessRunner(runner)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		a := newImageAsset(t, lib, assetPath(i))
		cat.insert(a)
		ids = append(ids, a.ID)
	}

	start := time.Now()
	sched.EnqueueAll(context.Background(), ids)

	require.Eventually(t, func() bool {
		return len(cat.compilations()) == 5
	}, 2*time.Second, 5*time.Millisecond)

	elapsed := time.Since(start)
	assert.LessOrEqual(t, runner.maxSeen, n)
	assert.GreaterOrEqual(t, elapsed, 3*runner.delay/2)
}

func assetPath(i int) string {
	return "tex/" + string(rune('a'+i)) + ".png"
}

func TestProcessLaunchFailureRecordsError(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	asset := newImageAsset(t, lib, "tex/broken.png")
	cat.insert(asset)

	scanner := &fakeScanner{}
	pub := &collectingPublisher{}
	runner := &launchFailRunner{err: errors.New("boom")}

	sched := New(lib, cat, scanner, pub, 1).WithProcessRunner(runner)
	sched.Enqueue(context.Background(), asset.ID)

	require.Eventually(t, func() bool {
		return len(cat.compilations()) == 1
	}, time.Second, 5*time.Millisecond)

	comp := cat.compilations()[0]
	require.NotNil(t, comp.Error)
	assert.Contains(t, *comp.Error, "Cannot run sub-process")
}

type launchFailRunner struct{ err error }

func (r *launchFailRunner) Run(ctx context.Context, cmd Command) ([]byte, []byte, error) {
	return nil, nil, r.err
}

func TestExitErrorProducesProcessFailedMessage(t *testing.T) {
	lib := assetlib.New("/srv/library", "/srv/output")
	cat := newFakeCatalog()
	asset := newImageAsset(t, lib, "tex/fails.png")
	cat.insert(asset)

	scanner := &fakeScanner{}
	pub := &collectingPublisher{}
	runner := &exitErrorRunner{}

	sched := New(lib, cat, scanner, pub, 1).WithProcessRunner(runner)
	sched.Enqueue(context.Background(), asset.ID)

	require.Eventually(t, func() bool {
		return len(cat.compilations()) == 1
	}, time.Second, 5*time.Millisecond)

	comp := cat.compilations()[0]
	require.NotNil(t, comp.Error)
	assert.Contains(t, *comp.Error, "Process execution failed with code")
}

type exitErrorRunner struct{}

func (r *exitErrorRunner) Run(ctx context.Context, cmd Command) ([]byte, []byte, error) {
	c := exec.Command("false-binary-does-not-matter")
	_ = c
	return nil, nil, &exec.ExitError{}
}
