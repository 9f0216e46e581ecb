// Package mcpapi exposes the asset pipeline as four MCP tools over
// pkg/ops.Ops, following pkg/mcp/register.go's AddTool-per-tool shape
// trimmed from dozens of note tools down to the handful an agent needs
// to drive an asset library.
package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/dobrakmato/asset-server/pkg/ops"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterAll registers every asset-pipeline tool with s.
func RegisterAll(s *server.MCPServer, o *ops.Ops) {
	listAssetsTool := mcp.NewTool("list_assets",
		mcp.WithDescription("List every tracked asset as JSON: {assets:[{identifier,kind,name,tags,input_path?}]}."),
	)
	s.AddTool(listAssetsTool, ListAssetsTool(o))

	getAssetTool := mcp.NewTool("get_asset",
		mcp.WithDescription("Return a single tracked asset by identifier, plus its compilation history and current dirty status."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Asset identifier (UUID)")),
	)
	s.AddTool(getAssetTool, GetAssetTool(o))

	refreshLibraryTool := mcp.NewTool("refresh_library",
		mcp.WithDescription("Run a full rescan of the library: import new files, recompute dirtiness, remove stale entries. Returns {scanned,imported,removed,dirty}."),
	)
	s.AddTool(refreshLibraryTool, RefreshLibraryTool(o))

	compileAssetTool := mcp.NewTool("compile_asset",
		mcp.WithDescription("Enqueue a single asset for compilation by identifier. Compilation runs asynchronously; call get_asset afterwards to check its status."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Asset identifier (UUID)")),
	)
	s.AddTool(compileAssetTool, CompileAssetTool(o))
}

func parseIdentifier(args map[string]any) (uuid.UUID, error) {
	raw, ok := args["identifier"].(string)
	if !ok || raw == "" {
		return uuid.UUID{}, fmt.Errorf("identifier parameter is required and must be a string")
	}
	return uuid.Parse(raw)
}

type assetSummary struct {
	Identifier uuid.UUID `json:"identifier"`
	Kind       models.Kind `json:"kind"`
	Name       string    `json:"name"`
	Tags       []string  `json:"tags"`
	InputPath  string    `json:"input_path,omitempty"`
}

func summarize(a models.Asset) assetSummary {
	s := assetSummary{
		Identifier: a.Identifier(),
		Kind:       a.Kind(),
		Name:       a.DisplayName(),
		Tags:       a.TagList(),
	}
	if p, ok := a.InputPath(); ok {
		s.InputPath = p
	}
	return s
}

// ListAssetsTool implements the list_assets MCP tool.
func ListAssetsTool(o *ops.Ops) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		all := o.GetAllAssets()
		summaries := make([]assetSummary, 0, len(all))
		for _, a := range all {
			summaries = append(summaries, summarize(a))
		}

		encoded, err := json.Marshal(map[string]any{"assets": summaries})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("error marshaling response: %s", err)), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

// GetAssetTool implements the get_asset MCP tool.
func GetAssetTool(o *ops.Ops) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := parseIdentifier(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		asset, ok := o.GetAsset(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no asset with identifier %s", id)), nil
		}

		payload := map[string]any{
			"asset":        summarize(asset),
			"compilations": o.GetCompilations(id),
			"dirty":        o.IsAssetDirty(id),
		}

		encoded, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("error marshaling response: %s", err)), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

// RefreshLibraryTool implements the refresh_library MCP tool.
func RefreshLibraryTool(o *ops.Ops) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		results := o.Refresh(ctx)

		encoded, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("error marshaling response: %s", err)), nil
		}
		return mcp.NewToolResultText(string(encoded)), nil
	}
}

// CompileAssetTool implements the compile_asset MCP tool.
func CompileAssetTool(o *ops.Ops) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := parseIdentifier(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if _, ok := o.GetAsset(id); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no asset with identifier %s", id)), nil
		}

		o.CompileOne(ctx, id)
		return mcp.NewToolResultText(fmt.Sprintf(`{"queued":"%s"}`, id)), nil
	}
}
