// ABOUTME: MCP resources exposing the working collections and stored snapshots
// ABOUTME: crm://deals, crm://tasks, crm://snapshots, and crm://snapshots/{id}
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/snapshot"
)

const uriScheme = "crm://"

type ResourceHandlers struct {
	source *Source
}

func NewResourceHandlers(source *Source) *ResourceHandlers {
	return &ResourceHandlers{source: source}
}

// ReadResource serves every crm:// URI.
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")

	switch parts[0] {
	case "deals":
		recs, err := h.source.Load(ctx, SourceCache)
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, nonNil(recs.Deals))

	case "tasks":
		recs, err := h.source.Load(ctx, SourceCache)
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, nonNil(recs.Tasks))

	case "snapshots":
		if h.source.Snapshots == nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		if len(parts) == 1 || parts[1] == "" {
			return h.readSnapshotList(ctx, uri)
		}
		id, err := snapshot.ParseID(parts[1])
		if err != nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		snap, err := h.source.Snapshots.Get(ctx, id)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return jsonResource(uri, snap)

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readSnapshotList(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	list, err := h.source.Snapshots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	infos := make([]SnapshotInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, snapshotInfo(s))
	}
	return jsonResource(uri, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "application/json", Text: string(data)},
	}}, nil
}
