package models

import (
	"encoding/json"
	"fmt"
)

// MarshalAsset renders an Asset as its tagged JSON form, matching the
// persisted catalog layout's {"type": "Image"|"Mesh"|"Material", ...}
// convention.
func MarshalAsset(a Asset) ([]byte, error) {
	switch v := a.(type) {
	case *ImageAsset:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			ImageAsset
		}{KindImage, *v})
	case *MeshAsset:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			MeshAsset
		}{KindMesh, *v})
	case *MaterialAsset:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			MaterialAsset
		}{KindMaterial, *v})
	default:
		return nil, fmt.Errorf("models: unknown asset type %T", a)
	}
}

// UnmarshalAsset parses the tagged JSON form produced by MarshalAsset back
// into a concrete Asset.
func UnmarshalAsset(data []byte) (Asset, error) {
	var disc struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("models: decode discriminator: %w", err)
	}
	switch disc.Type {
	case KindImage:
		var v ImageAsset
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("models: decode image asset: %w", err)
		}
		return &v, nil
	case KindMesh:
		var v MeshAsset
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("models: decode mesh asset: %w", err)
		}
		return &v, nil
	case KindMaterial:
		var v MaterialAsset
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("models: decode material asset: %w", err)
		}
		return &v, nil
	default:
		return nil, fmt.Errorf("models: unknown asset type %q", disc.Type)
	}
}

// AssetList marshals/unmarshals heterogeneous Asset slices for the
// catalog's persisted "assets" array.
type AssetList []Asset

func (l AssetList) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(l))
	for i, a := range l {
		b, err := MarshalAsset(a)
		if err != nil {
			return nil, err
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

func (l *AssetList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]Asset, len(raw))
	for i, r := range raw {
		a, err := UnmarshalAsset(r)
		if err != nil {
			return err
		}
		out[i] = a
	}
	*l = out
	return nil
}
