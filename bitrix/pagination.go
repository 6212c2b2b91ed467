// ABOUTME: Offset pagination over Bitrix list methods
// ABOUTME: Pages of 50 are requested until a short page or the reported total is reached
package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// PageSize is the fixed page length of list methods.
const PageSize = 50

// maxPages guards against a server that keeps returning full pages forever.
const maxPages = 10000

// Record is one raw API entity.
type Record map[string]any

// ListAll pages through a list method from start 0. It stops after a short
// page or when the response carries no next offset. Any failure aborts.
func (c *Client) ListAll(ctx context.Context, method string, params map[string]any) ([]Record, error) {
	var all []Record
	start := 0

	for page := 0; page < maxPages; page++ {
		p := maps.Clone(params)
		if p == nil {
			p = make(map[string]any)
		}
		p["start"] = start

		resp, err := c.Call(ctx, method, p)
		if err != nil {
			return nil, err
		}

		items, err := decodeItems(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingResult, method, err)
		}
		all = append(all, items...)

		if len(items) < PageSize || resp.Next == nil {
			return all, nil
		}
		start = *resp.Next
	}
	return all, nil
}

// decodeItems reads a page that is either an array of records or an
// object wrapping one (tasks.task.list returns {"tasks": [...]}).
func decodeItems(raw json.RawMessage) ([]Record, error) {
	var items []Record
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected result shape")
	}
	for _, key := range []string{"tasks", "items"} {
		if inner, ok := wrapped[key]; ok {
			if err := json.Unmarshal(inner, &items); err != nil {
				return nil, fmt.Errorf("unexpected %s shape: %w", key, err)
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("unexpected result shape")
}
