package broadcaster

import (
	"encoding/json"
	"fmt"
)

// marshalEvent renders an Event as its tagged JSON form
// ({"type": "...", ...fields}), matching §4.6's tagged-union wire shape.
func marshalEvent(e Event) ([]byte, error) {
	switch v := e.(type) {
	case AssetUpdate:
		return tagged("AssetUpdate", v)
	case AssetRemoved:
		return tagged("AssetRemoved", v)
	case AssetDirtyStatus:
		return tagged("AssetDirtyStatus", v)
	case AssetCompilationStatus:
		return tagged("AssetCompilationStatus", v)
	case CompilerStatus:
		return tagged("CompilerStatus", v)
	case ScanResultsEvent:
		return tagged("ScanResults", v)
	default:
		return nil, fmt.Errorf("broadcaster: unknown event type %T", e)
	}
}

func tagged(kind string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", kind))
	return json.Marshal(fields)
}
