// Package compiler implements the bounded-concurrency compile job
// dispatcher: the hardest subsystem per spec.md §4.5.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const defaultETA = 5 * time.Second

// Catalog is the subset of pkg/catalog.Catalog the Scheduler depends on.
type Catalog interface {
	Get(id uuid.UUID) (models.Asset, bool)
	CompilationETA(id uuid.UUID) (time.Duration, bool)
	InsertCompilation(c models.Compilation)
}

// DirtyRecomputer lets the Scheduler ask the Scanner to recompute
// dirtiness after a compile completes (spec.md §4.5 step 8).
type DirtyRecomputer interface {
	IsDirty(id uuid.UUID) bool
}

// EventPublisher is the subset of pkg/broadcaster.Broadcaster the
// Scheduler depends on.
type EventPublisher interface {
	Publish(event broadcaster.Event)
}

// ProcessRunner abstracts external-process execution so tests can avoid
// spawning real img2bf/obj2bf/matcomp binaries.
type ProcessRunner interface {
	// Run launches cmd.Program with cmd.Args and returns the captured
	// stdout/stderr and exit error. err is nil iff the process launched
	// and exited 0; a *exec.ExitError indicates a non-zero exit; any
	// other error indicates the process could not be launched at all.
	Run(ctx context.Context, cmd Command) (stdout, stderr []byte, err error)
}

// execRunner runs commands via os/exec — the production ProcessRunner.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmd Command) ([]byte, []byte, error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Scheduler accepts identifiers for compilation and runs at most N
// external processes concurrently.
type Scheduler struct {
	library *assetlib.Library
	catalog Catalog
	scanner DirtyRecomputer
	events  EventPublisher
	runner  ProcessRunner

	maxConcurrency int64
	sem            *semaphore.Weighted

	queued     atomic.Uint64
	etaMsTotal atomic.Uint64
	inFlight   atomic.Int64
}

// New constructs a Scheduler bounded to maxConcurrency simultaneous
// external processes.
func New(library *assetlib.Library, cat Catalog, scanner DirtyRecomputer, events EventPublisher, maxConcurrency int) *Scheduler {
	return &Scheduler{
		library:        library,
		catalog:        cat,
		scanner:        scanner,
		events:         events,
		runner:         execRunner{},
		maxConcurrency: int64(maxConcurrency),
		sem:            semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// WithProcessRunner overrides the ProcessRunner used to launch external
// tools — intended for tests.
func (s *Scheduler) WithProcessRunner(r ProcessRunner) *Scheduler {
	s.runner = r
	return s
}

// Queued returns the current value of the queued counter.
func (s *Scheduler) Queued() uint64 { return s.queued.Load() }

// Concurrency returns the current number of in-flight compiles.
func (s *Scheduler) Concurrency() int { return int(s.inFlight.Load()) }

// MaxConcurrency returns the configured permit count N.
func (s *Scheduler) MaxConcurrency() int { return int(s.maxConcurrency) }

// Enqueue submits id for compilation. It never blocks the caller: the
// compile job itself is scheduled as an independent goroutine that races
// for a semaphore permit, per spec.md §4.5's "Schedule the compile task
// as an independent cooperative job."
func (s *Scheduler) Enqueue(ctx context.Context, id uuid.UUID) {
	etaID := defaultETA
	if d, ok := s.catalog.CompilationETA(id); ok {
		etaID = d
	}

	s.queued.Add(1)
	s.etaMsTotal.Add(uint64(etaID.Milliseconds()))
	s.publishStatus()

	go s.compile(ctx, id, etaID)
}

// EnqueueAll submits every id in ids. A failure compiling one identifier
// does not stop or affect the others, per spec.md §9 item 3.
func (s *Scheduler) EnqueueAll(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		s.Enqueue(ctx, id)
	}
}

func (s *Scheduler) publishStatus() {
	s.events.Publish(broadcaster.CompilerStatus{
		Queued:      s.queued.Load(),
		Concurrency: s.Concurrency(),
		ETA:         time.Duration(s.etaMsTotal.Load()) * time.Millisecond,
	})
}

func (s *Scheduler) compile(ctx context.Context, id uuid.UUID, etaID time.Duration) {
	s.events.Publish(broadcaster.AssetCompilationStatus{ID: id, State: broadcaster.StateQueued})

	asset, ok := s.catalog.Get(id)
	if !ok {
		// Submit/delete race: the spec accepts a fatal condition here
		// ("acceptable to panic in this release"); a bounded-concurrency
		// server process instead logs and abandons this job rather than
		// taking the whole process down.
		log.Printf("compiler: asset %s vanished before compile started", id)
		s.finishAccounting(etaID)
		return
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Printf("compiler: could not acquire permit for %s: %v", id, err)
		s.finishAccounting(etaID)
		return
	}
	s.inFlight.Add(1)
	defer func() {
		// Release the permit and drop inFlight before finishAccounting
		// drops queued and publishes: §8 invariant 5 requires every
		// published CompilerStatus to satisfy concurrency <= queued, so
		// inFlight must never still count a job whose queued slot is
		// already gone.
		s.inFlight.Add(-1)
		s.sem.Release(1)
		s.finishAccounting(etaID)
	}()

	s.events.Publish(broadcaster.AssetCompilationStatus{ID: id, State: broadcaster.StateCompiling})

	cmd, err := MaterializeCommand(asset, s.library)
	if err != nil {
		log.Printf("compiler: cannot materialize command for %s: %v", id, err)
		return
	}

	start := time.Now().UTC()
	log.Printf("compiler: run: %s", cmd.String())

	var compileErr *string
	stdout, stderr, runErr := s.runner.Run(ctx, cmd)
	duration := time.Since(start)

	if runErr != nil {
		var exitErr *exec.ExitError
		var msg string
		if errors.As(runErr, &exitErr) {
			code := "None"
			if c := exitErr.ExitCode(); c >= 0 {
				code = fmt.Sprintf("Some(%d)", c)
			}
			msg = fmt.Sprintf("Process execution failed with code %s", code)
			log.Printf("compiler: %s", msg)
			log.Printf("compiler: stdout: %s", string(stdout))
			log.Printf("compiler: stderr: %s", string(stderr))
		} else {
			msg = fmt.Sprintf("Cannot run sub-process: %v", runErr)
			log.Printf("compiler: %s", msg)
		}
		compileErr = &msg
	}

	if compileErr == nil {
		s.events.Publish(broadcaster.AssetCompilationStatus{ID: id, State: broadcaster.StateCompiled})
	} else {
		s.events.Publish(broadcaster.AssetCompilationStatus{ID: id, State: broadcaster.StateError, Message: *compileErr})
	}

	s.catalog.InsertCompilation(models.Compilation{
		Identifier: id,
		Timestamp:  start,
		Duration:   duration,
		Command:    cmd.String(),
		Error:      compileErr,
	})

	s.scanner.IsDirty(id)
}

// finishAccounting undoes the queued/eta bookkeeping Enqueue performed for
// this job and publishes the updated status, per spec.md §4.5 steps 9-10.
func (s *Scheduler) finishAccounting(etaID time.Duration) {
	s.etaMsTotal.Add(-uint64(etaID.Milliseconds()))
	s.queued.Add(^uint64(0)) // atomic subtract 1
	s.publishStatus()
}
