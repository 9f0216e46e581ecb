package broadcaster

import (
	"time"

	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// CompilationState enumerates the phases of a single compile attempt
// published via AssetCompilationStatus.
type CompilationState string

const (
	StateQueued    CompilationState = "Queued"
	StateCompiling CompilationState = "Compiling"
	StateCompiled  CompilationState = "Compiled"
	StateError     CompilationState = "Error"
)

// ScanResults summarizes a full rescan, matching spec.md §4.4's return
// shape and §6's ScanResults event.
type ScanResults struct {
	Scanned  int         `json:"scanned"`
	Imported int         `json:"imported"`
	Removed  int         `json:"removed"`
	Dirty    []uuid.UUID `json:"dirty"`
}

// Event is the tagged union of lifecycle events published by the
// Catalog/Scanner/Compiler to every SSE subscriber. Each concrete type
// below serializes with a "type" discriminator matching its Go name
// (e.g. "AssetUpdate"), except ScanResultsEvent, which is tagged
// "ScanResults".
type Event interface {
	eventType() string
}

type AssetUpdate struct {
	Asset models.Asset `json:"asset"`
}

type AssetRemoved struct {
	ID uuid.UUID `json:"uuid"`
}

type AssetDirtyStatus struct {
	ID    uuid.UUID `json:"uuid"`
	Dirty bool      `json:"is_dirty"`
}

type AssetCompilationStatus struct {
	ID      uuid.UUID        `json:"uuid"`
	State   CompilationState `json:"status"`
	Message string           `json:"message,omitempty"`
}

type CompilerStatus struct {
	Queued      uint64        `json:"queued"`
	Concurrency int           `json:"concurrency"`
	ETA         time.Duration `json:"eta"`
}

type ScanResultsEvent struct {
	ScanResults
}

func (AssetUpdate) eventType() string             { return "AssetUpdate" }
func (AssetRemoved) eventType() string             { return "AssetRemoved" }
func (AssetDirtyStatus) eventType() string         { return "AssetDirtyStatus" }
func (AssetCompilationStatus) eventType() string   { return "AssetCompilationStatus" }
func (CompilerStatus) eventType() string           { return "CompilerStatus" }
func (ScanResultsEvent) eventType() string         { return "ScanResults" }
