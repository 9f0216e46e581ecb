// Package assetlib holds the pure path arithmetic over a content library:
// library-relative <-> absolute conversion and identifier derivation.
package assetlib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideLibrary is returned by ToRelative when a path does not live
// under the library root.
var ErrOutsideLibrary = errors.New("assetlib: path is outside the library root")

// projectNamespace is the fixed UUID namespace identifiers are hashed
// against. Recovered from the original source (input2uuid/library.rs);
// spec.md names no concrete value, so the original is authoritative here.
var projectNamespace = uuid.MustParse("2d1aeb08-db87-48f9-a967-cfb5f06746dc")

// Library is immutable after construction; every method is pure given its
// fields.
type Library struct {
	libraryRoot string
	outputRoot  string
}

// New constructs a Library rooted at libraryRoot with compiled outputs
// written under outputRoot. Both must be absolute paths.
func New(libraryRoot, outputRoot string) *Library {
	return &Library{
		libraryRoot: filepath.Clean(libraryRoot),
		outputRoot:  filepath.Clean(outputRoot),
	}
}

// Root returns the library's source root.
func (l *Library) Root() string { return l.libraryRoot }

// OutputRoot returns the library's compiled-output root.
func (l *Library) OutputRoot() string { return l.outputRoot }

// ToRelative converts an absolute path into a library-relative path,
// failing if absolutePath does not live under the library root. Uses the
// same containment-checked-join discipline as a vault-relative path
// resolver: compute the relative path, then reject any result that
// escapes the root (case of a shared path prefix that isn't a real
// ancestor, e.g. "/lib" vs "/libfoo").
func (l *Library) ToRelative(absolutePath string) (string, error) {
	abs := filepath.Clean(absolutePath)
	rel, err := filepath.Rel(l.libraryRoot, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, absolutePath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, absolutePath)
	}
	return filepath.ToSlash(rel), nil
}

// ToAbsolute joins a library-relative path onto the library root.
func (l *Library) ToAbsolute(relativePath string) string {
	return filepath.Join(l.libraryRoot, filepath.FromSlash(relativePath))
}

// OutputPath returns the absolute path of the compiled output for id:
// "<output_root>/<identifier-hyphenated>.bf".
func (l *Library) OutputPath(id uuid.UUID) string {
	return filepath.Join(l.outputRoot, id.String()+".bf")
}

// IdentifierOf derives the stable identifier for an absolute source path:
// a name-based (SHA-1, v5) hash of the library-relative path's bytes
// against the fixed project namespace.
func (l *Library) IdentifierOf(absolutePath string) (uuid.UUID, error) {
	rel, err := l.ToRelative(absolutePath)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.NewSHA1(projectNamespace, []byte(rel)), nil
}

// IdentifierOfRelative derives the identifier directly from an
// already-relative path, for callers who never had an absolute path
// (e.g. the scanner's synthesized ".mat" lookups).
func IdentifierOfRelative(relativePath string) uuid.UUID {
	return uuid.NewSHA1(projectNamespace, []byte(relativePath))
}
