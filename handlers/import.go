// ABOUTME: import_csv MCP tool
// ABOUTME: Canonicalizes a delimited file into the working collection, optionally snapshotting it
package handlers

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmpulse/collection"
	"github.com/harperreed/crmpulse/ingest"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/snapshot"
)

type ImportHandlers struct {
	importer  *ingest.Importer
	cache     *collection.Cache
	snapshots *snapshot.Service
}

func NewImportHandlers(importer *ingest.Importer, cache *collection.Cache, snapshots *snapshot.Service) *ImportHandlers {
	return &ImportHandlers{importer: importer, cache: cache, snapshots: snapshots}
}

type ImportCSVInput struct {
	Path    string `json:"path,omitempty" jsonschema:"Path to a CSV or TSV export (either path or content is required)"`
	Content string `json:"content,omitempty" jsonschema:"Raw file content, used instead of path"`
	Kind    string `json:"kind,omitempty" jsonschema:"Record kind: deals (default) or tasks"`
	Merge   bool   `json:"merge,omitempty" jsonschema:"Merge into the current collection by id instead of replacing it"`
	Save    bool   `json:"save,omitempty" jsonschema:"Store a snapshot of the resulting collection"`
}

type ImportCSVOutput struct {
	Kind            string           `json:"kind"`
	Imported        int              `json:"imported"`
	Ignored         int              `json:"ignored"`
	CollectionSize  int              `json:"collection_size"`
	Delimiter       string           `json:"delimiter"`
	Meta            *models.FileMeta `json:"meta,omitempty"`
	SnapshotID      string           `json:"snapshot_id,omitempty"`
	SnapshotBackend string           `json:"snapshot_backend,omitempty"`
}

func (h *ImportHandlers) ImportCSV(ctx context.Context, _ *mcp.CallToolRequest, input ImportCSVInput) (*mcp.CallToolResult, ImportCSVOutput, error) {
	kind, err := validKind(input.Kind)
	if err != nil {
		return nil, ImportCSVOutput{}, err
	}

	data := []byte(input.Content)
	if input.Content == "" {
		if input.Path == "" {
			return nil, ImportCSVOutput{}, fmt.Errorf("path or content is required")
		}
		if data, err = ingest.ReadFile(input.Path); err != nil {
			return nil, ImportCSVOutput{}, err
		}
	}

	out := ImportCSVOutput{Kind: kind}
	var deals []models.Deal
	var tasks []models.Task

	switch kind {
	case models.KindDeals:
		res := h.importer.ImportDeals(data)
		out.Imported, out.Ignored, out.Delimiter = len(res.Deals), res.Ignored, string(res.Delimiter)
		out.Meta = &res.Meta
		deals = res.Deals
		if input.Merge {
			deals, err = h.cache.MergeDeals(res.Deals)
		} else {
			err = h.cache.SaveDeals(res.Deals)
		}
		out.CollectionSize = len(deals)
	case models.KindTasks:
		res := h.importer.ImportTasks(data)
		out.Imported, out.Ignored, out.Delimiter = len(res.Tasks), res.Ignored, string(res.Delimiter)
		tasks = res.Tasks
		if input.Merge {
			tasks, err = h.cache.MergeTasks(res.Tasks)
		} else {
			err = h.cache.SaveTasks(res.Tasks)
		}
		out.CollectionSize = len(tasks)
	}
	if err != nil {
		return nil, ImportCSVOutput{}, fmt.Errorf("failed to update %s collection: %w", kind, err)
	}

	if input.Save {
		if h.snapshots == nil {
			return nil, ImportCSVOutput{}, fmt.Errorf("no snapshot store configured")
		}
		// A snapshot captures both working collections.
		if kind == models.KindDeals {
			tasks, err = h.cache.Tasks()
		} else {
			deals, err = h.cache.Deals()
		}
		if err != nil {
			return nil, ImportCSVOutput{}, fmt.Errorf("failed to load working collection: %w", err)
		}
		snap, backend, err := h.snapshots.Create(ctx, deals, tasks, map[string]string{"source": "csv", "kind": kind})
		if err != nil {
			return nil, ImportCSVOutput{}, fmt.Errorf("failed to save snapshot: %w", err)
		}
		out.SnapshotID, out.SnapshotBackend = snap.ID.String(), backend
	}

	return nil, out, nil
}
