package compiler

import (
	"fmt"
	"strings"

	"github.com/dobrakmato/asset-server/pkg/assetlib"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/google/uuid"
)

// External tool program names, matching commands.rs's constants.
const (
	img2bf  = "img2bf"
	obj2bf  = "obj2bf"
	matcomp = "matcomp"
)

// Command is a materialized external-tool invocation: a program name plus
// an ordered argument vector, using the "--name value" convention (bare
// flags for booleans).
type Command struct {
	Program string
	Args    []string
}

// String renders the command the way it will be logged, matching the
// teacher/original's "program arg1 arg2 ..." display.
func (c Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

func (c *Command) arg(a string) *Command {
	c.Args = append(c.Args, a)
	return c
}

func (c *Command) flag(name string, set bool) *Command {
	if set {
		c.arg(name)
	}
	return c
}

func (c *Command) optional(name string, value *string) *Command {
	if value != nil {
		c.arg(name).arg(*value)
	}
	return c
}

// MaterializeCommand builds the external-tool invocation for a, per
// spec.md §4.5.1.
func MaterializeCommand(a models.Asset, library *assetlib.Library) (Command, error) {
	switch v := a.(type) {
	case *models.ImageAsset:
		return imageCommand(v, library), nil
	case *models.MeshAsset:
		return meshCommand(v, library), nil
	case *models.MaterialAsset:
		return materialCommand(v, library), nil
	default:
		return Command{}, fmt.Errorf("compiler: unknown asset type %T", a)
	}
}

func imageCommand(a *models.ImageAsset, library *assetlib.Library) Command {
	cmd := Command{Program: img2bf}
	cmd.arg("--input").arg(library.ToAbsolute(a.InputRelPath))
	cmd.arg("--output").arg(library.OutputPath(a.ID))
	cmd.arg("--format").arg(imageFormatToken(a.Format))
	cmd.flag("--pack-normal-map", a.PackNormalMap)
	cmd.flag("--v-flip", a.VFlip)
	cmd.flag("--h-flip", a.HFlip)
	return cmd
}

// imageFormatToken maps a format to its CLI token. Srgb8A8 mapping to
// "dxt1" is a known bug in the source (commands.rs), preserved here
// bit-for-bit per spec.md §4.5.1 and §9 item 1 — do not "fix" it.
func imageFormatToken(f models.ImageFormat) string {
	switch f {
	case models.FormatDxt1:
		return "dxt1"
	case models.FormatDxt3:
		return "dxt3"
	case models.FormatDxt5:
		return "dxt5"
	case models.FormatRgb8:
		return "rgb"
	case models.FormatRgba8:
		return "rgba"
	case models.FormatSrgbDxt1:
		return "srgb_dxt1"
	case models.FormatSrgbDxt3:
		return "srgb_dxt3"
	case models.FormatSrgbDxt5:
		return "srgb_dxt5"
	case models.FormatSrgb8A8:
		return "dxt1" // preserved source bug, see comment above
	case models.FormatR8:
		return "r8"
	case models.FormatBC6H:
		return "bc6h"
	case models.FormatBC7:
		return "bc7"
	case models.FormatSrgbBC7:
		return "srgb_bc7"
	default:
		return "srgb"
	}
}

func meshCommand(a *models.MeshAsset, library *assetlib.Library) Command {
	cmd := Command{Program: obj2bf}
	cmd.arg("--input").arg(library.ToAbsolute(a.InputRelPath))
	cmd.arg("--output").arg(library.OutputPath(a.ID))

	if a.IndexType != nil {
		cmd.arg("--index-type")
		switch *a.IndexType {
		case models.IndexU16:
			cmd.arg("u16")
		case models.IndexU32:
			cmd.arg("u32")
		}
	}
	if a.VertexFormatField != nil {
		cmd.arg("--vertex-format")
		switch *a.VertexFormatField {
		case models.VertexPositionNormalUvTangent:
			cmd.arg("pnut")
		case models.VertexPositionNormalUv:
			cmd.arg("pnu")
		case models.VertexPosition:
			cmd.arg("p")
		}
	}
	cmd.optional("--object-name", a.ObjectName)
	if a.GeometryIndex != nil {
		s := fmt.Sprintf("%d", *a.GeometryIndex)
		cmd.optional("--geometry-index", &s)
	}
	if a.Lod != nil {
		s := fmt.Sprintf("%d", *a.Lod)
		cmd.optional("--lod", &s)
	}
	cmd.flag("--recalculate-normals", a.RecalculateNormals)
	return cmd
}

func materialCommand(a *models.MaterialAsset, library *assetlib.Library) Command {
	cmd := Command{Program: matcomp}
	cmd.arg("--output").arg(library.OutputPath(a.ID))

	if a.BlendModeField != nil {
		cmd.arg("--blend-mode")
		switch *a.BlendModeField {
		case models.BlendOpaque:
			cmd.arg("opaque")
		case models.BlendMasked:
			cmd.arg("masked")
		case models.BlendTranslucent:
			cmd.arg("translucent")
		}
	}
	if a.AlbedoColor != nil {
		c := *a.AlbedoColor
		cmd.arg("--albedo-color").arg(fmt.Sprintf("%v,%v,%v", c[0], c[1], c[2]))
	}
	optFloat(&cmd, "--roughness", a.Roughness)
	optFloat(&cmd, "--metallic", a.Metallic)
	optFloat(&cmd, "--alpha-cutoff", a.AlphaCutoff)
	optFloat(&cmd, "--ior", a.IOR)
	optFloat(&cmd, "--opacity", a.Opacity)

	optID(&cmd, "--albedo-map", a.AlbedoMap)
	optID(&cmd, "--normal-map", a.NormalMap)
	optID(&cmd, "--displacement-map", a.DisplacementMap)
	optID(&cmd, "--roughness-map", a.RoughnessMap)
	optID(&cmd, "--opacity-map", a.OpacityMap)
	optID(&cmd, "--ao-map", a.AoMap)
	optID(&cmd, "--metallic-map", a.MetallicMap)
	return cmd
}

func optFloat(cmd *Command, name string, v *float64) {
	if v != nil {
		s := fmt.Sprintf("%v", *v)
		cmd.optional(name, &s)
	}
}

func optID(cmd *Command, name string, id *uuid.UUID) {
	if id == nil {
		return
	}
	s := id.String()
	cmd.optional(name, &s)
}
