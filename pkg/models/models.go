// Package models defines the asset-pipeline data model: the Asset tagged
// union and the Compilation record.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the Asset variants.
type Kind string

const (
	KindImage    Kind = "Image"
	KindMesh     Kind = "Mesh"
	KindMaterial Kind = "Material"
)

// ImageFormat enumerates the supported compiled texture formats.
type ImageFormat string

const (
	FormatDxt1     ImageFormat = "Dxt1"
	FormatDxt3     ImageFormat = "Dxt3"
	FormatDxt5     ImageFormat = "Dxt5"
	FormatRgb8     ImageFormat = "Rgb8"
	FormatRgba8    ImageFormat = "Rgba8"
	FormatSrgbDxt1 ImageFormat = "SrgbDxt1"
	FormatSrgbDxt3 ImageFormat = "SrgbDxt3"
	FormatSrgbDxt5 ImageFormat = "SrgbDxt5"
	FormatSrgb8A8  ImageFormat = "Srgb8A8"
	FormatR8       ImageFormat = "R8"
	FormatBC6H     ImageFormat = "BC6H"
	FormatBC7      ImageFormat = "BC7"
	FormatSrgbBC7  ImageFormat = "SrgbBC7"
)

// IndexType enumerates mesh index buffer widths.
type IndexType string

const (
	IndexU16 IndexType = "U16"
	IndexU32 IndexType = "U32"
)

// VertexFormat enumerates mesh vertex layouts.
type VertexFormat string

const (
	VertexPosition               VertexFormat = "Position"
	VertexPositionNormalUv       VertexFormat = "PositionNormalUv"
	VertexPositionNormalUvTangent VertexFormat = "PositionNormalUvTangent"
)

// BlendMode enumerates material blend modes.
type BlendMode string

const (
	BlendOpaque      BlendMode = "Opaque"
	BlendMasked      BlendMode = "Masked"
	BlendTranslucent BlendMode = "Translucent"
)

// Common holds the fields shared by every Asset variant.
type Common struct {
	ID        uuid.UUID `json:"identifier"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset is implemented by every asset variant. Consumers needing only the
// shared fields go through these accessors rather than type-switching.
type Asset interface {
	Kind() Kind
	Identifier() uuid.UUID
	DisplayName() string
	TagList() []string
	LastModified() time.Time
	// InputPath returns the library-relative source path and whether this
	// variant has one at all (Material assets are synthesized and have none).
	InputPath() (string, bool)
}

func (c Common) Identifier() uuid.UUID    { return c.ID }
func (c Common) DisplayName() string      { return c.Name }
func (c Common) TagList() []string        { return c.Tags }
func (c Common) LastModified() time.Time  { return c.UpdatedAt }

// ImageAsset is a compiled-texture source record.
type ImageAsset struct {
	Common
	InputRelPath  string      `json:"input_path"`
	Format        ImageFormat `json:"format"`
	PackNormalMap bool        `json:"pack_normal_map,omitempty"`
	VFlip         bool        `json:"v_flip,omitempty"`
	HFlip         bool        `json:"h_flip,omitempty"`
}

func (a *ImageAsset) Kind() Kind { return KindImage }
func (a *ImageAsset) InputPath() (string, bool) { return a.InputRelPath, true }

// MarshalJSON tags the wire form with "type" so every encoding path —
// catalog persistence, HTTP responses, SSE payloads — round-trips through
// UnmarshalAsset.
func (a *ImageAsset) MarshalJSON() ([]byte, error) { return MarshalAsset(a) }

// MeshAsset is a compiled-geometry source record.
type MeshAsset struct {
	Common
	InputRelPath       string        `json:"input_path"`
	IndexType          *IndexType    `json:"index_type,omitempty"`
	VertexFormatField  *VertexFormat `json:"vertex_format,omitempty"`
	ObjectName         *string       `json:"object_name,omitempty"`
	GeometryIndex      *int          `json:"geometry_index,omitempty"`
	Lod                *int          `json:"lod,omitempty"`
	RecalculateNormals bool          `json:"recalculate_normals,omitempty"`
}

func (a *MeshAsset) Kind() Kind { return KindMesh }
func (a *MeshAsset) InputPath() (string, bool) { return a.InputRelPath, true }

// MarshalJSON tags the wire form with "type"; see ImageAsset.MarshalJSON.
func (a *MeshAsset) MarshalJSON() ([]byte, error) { return MarshalAsset(a) }

// MaterialAsset is a synthesized asset with no source file of its own.
type MaterialAsset struct {
	Common
	BlendModeField  *BlendMode `json:"blend_mode,omitempty"`
	AlbedoColor     *[3]float64 `json:"albedo_color,omitempty"`
	Roughness       *float64   `json:"roughness,omitempty"`
	Metallic        *float64   `json:"metallic,omitempty"`
	AlphaCutoff     *float64   `json:"alpha_cutoff,omitempty"`
	IOR             *float64   `json:"ior,omitempty"`
	Opacity         *float64   `json:"opacity,omitempty"`
	AlbedoMap       *uuid.UUID `json:"albedo_map,omitempty"`
	NormalMap       *uuid.UUID `json:"normal_map,omitempty"`
	DisplacementMap *uuid.UUID `json:"displacement_map,omitempty"`
	RoughnessMap    *uuid.UUID `json:"roughness_map,omitempty"`
	OpacityMap      *uuid.UUID `json:"opacity_map,omitempty"`
	AoMap           *uuid.UUID `json:"ao_map,omitempty"`
	MetallicMap     *uuid.UUID `json:"metallic_map,omitempty"`
}

func (a *MaterialAsset) Kind() Kind { return KindMaterial }
func (a *MaterialAsset) InputPath() (string, bool) { return "", false }

// MarshalJSON tags the wire form with "type"; see ImageAsset.MarshalJSON.
func (a *MaterialAsset) MarshalJSON() ([]byte, error) { return MarshalAsset(a) }

// Compilation records one attempt to run the external tool for an asset.
// Never mutated after creation; multiple per identifier are retained
// chronologically.
type Compilation struct {
	Identifier uuid.UUID     `json:"identifier"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Command    string        `json:"command_string"`
	Error      *string       `json:"error,omitempty"`
}

// Failed reports whether this compilation recorded a non-empty error.
func (c Compilation) Failed() bool {
	return c.Error != nil && *c.Error != ""
}
