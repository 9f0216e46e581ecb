// Package importer derives an initial asset record for a newly observed
// library file by extension and filename heuristics.
package importer

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// Sentinel errors surfaced by Import, matching spec.md §7's Importer row.
var (
	ErrAlreadyTracked      = errors.New("importer: already tracked")
	ErrUnsupportedExtension = errors.New("importer: unsupported extension")
	ErrMissingExtension    = errors.New("importer: missing extension")
	ErrBadPath             = errors.New("importer: bad path")
)

// Substring lists checked in order, first match wins. Case-sensitive, per
// spec.md §4.3 step 4 and importer.rs.
var (
	albedoStrings       = []string{"_col.", "_color.", "diffuse.", "_albedo.", "_basecolor."}
	displacementStrings = []string{"_disp.", "_displacement."}
	normalStrings       = []string{"_nrm.", "_normal.", "_normalmap."}
	roughnessStrings    = []string{"_rgh.", "_roughness."}
	glossinessStrings   = []string{"[gloss].", "_gloss."}
	occlusionStrings    = []string{"_ao.", "_ambientocclusion.", "_occlusion."}
	metallicStrings     = []string{"_met.", "_metallic.", "_metalness."}
	opacityStrings      = []string{"_opacity."}
)

// Tracker is the subset of Catalog the Importer needs: a tracked-identifier
// check, kept narrow so tests can fake it without a full catalog.
type Tracker interface {
	Has(id uuid.UUID) bool
}

// Importer derives default asset records for new files.
type Importer struct {
	library *assetlib.Library
	tracker Tracker
}

// New constructs an Importer over the given Library and Catalog-like
// tracker.
func New(library *assetlib.Library, tracker Tracker) *Importer {
	return &Importer{library: library, tracker: tracker}
}

// Import computes the identifier for absPath and, if not already tracked,
// derives a new Asset record by extension and filename heuristics. It
// performs no I/O beyond path string inspection and does not validate file
// contents. The caller is responsible for inserting the returned asset into
// the Catalog.
func (imp *Importer) Import(absPath string) (models.Asset, error) {
	id, err := imp.library.IdentifierOf(absPath)
	if err != nil {
		return nil, errors.Join(ErrBadPath, err)
	}
	if imp.tracker.Has(id) {
		return nil, ErrAlreadyTracked
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return nil, ErrMissingExtension
	}

	inputPath, err := imp.library.ToRelative(absPath)
	if err != nil {
		return nil, errors.Join(ErrBadPath, err)
	}

	switch ext {
	case "jpg", "png", "tiff", "tif":
		return importImage(id, inputPath, absPath)
	case "obj":
		return importMesh(id, inputPath), nil
	default:
		return nil, ErrUnsupportedExtension
	}
}

func importMesh(id uuid.UUID, inputPath string) *models.MeshAsset {
	return &models.MeshAsset{
		Common: models.Common{
			ID:        id,
			Name:      inputPath,
			Tags:      []string{},
			UpdatedAt: time.Now().UTC(),
		},
		InputRelPath: inputPath,
	}
}

func importImage(id uuid.UUID, inputPath, absPath string) (*models.ImageAsset, error) {
	fileName := filepath.Base(absPath)
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, ErrBadPath
	}

	format := models.FormatRgba8
	packNormalMap := false

	switch {
	case containsAny(fileName, albedoStrings):
		format = models.FormatSrgbDxt1
	case containsAny(fileName, displacementStrings):
		format = models.FormatR8
	case containsAny(fileName, normalStrings):
		format = models.FormatDxt5
		packNormalMap = true
	case containsAny(fileName, roughnessStrings):
		format = models.FormatR8
	case containsAny(fileName, glossinessStrings):
		format = models.FormatR8
	case containsAny(fileName, occlusionStrings):
		format = models.FormatR8
	case containsAny(fileName, metallicStrings):
		format = models.FormatR8
	case containsAny(fileName, opacityStrings):
		format = models.FormatR8
	}

	return &models.ImageAsset{
		Common: models.Common{
			ID:        id,
			Name:      inputPath,
			Tags:      []string{},
			UpdatedAt: time.Now().UTC(),
		},
		InputRelPath:  inputPath,
		Format:        format,
		PackNormalMap: packNormalMap,
	}, nil
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
