// ABOUTME: JSON codec for open-map records
// ABOUTME: Keeps unknown source fields next to the canonical ones on the wire
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DealFields lists canonical deal fields in display order.
var DealFields = []string{
	"dealId", "title", "responsible", "stage", "createdAt", "modifiedAt",
	"department", "amount", "currency", "company", "contact", "comments",
}

// TaskFields lists canonical task fields in display order.
var TaskFields = []string{
	"id", "title", "creator", "assignee", "status", "priority",
	"createdAt", "closedAt", "description",
}

var (
	dealFields = fieldSet(DealFields)
	taskFields = fieldSet(TaskFields)
)

func fieldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// SourcePrefix marks a source field whose name collides with a canonical one.
const SourcePrefix = "source."

// extraKey returns name, prefixed until it no longer collides with a
// canonical field or with a key already taken.
func extraKey(name string, known map[string]bool, taken func(string) bool) string {
	for known[name] || (taken != nil && taken(name)) {
		name = SourcePrefix + name
	}
	return name
}

// DealExtraKey returns the key a source field is kept under in Deal.Extra.
func DealExtraKey(name string) string { return extraKey(name, dealFields, nil) }

// TaskExtraKey returns the key a source field is kept under in Task.Extra.
func TaskExtraKey(name string) string { return extraKey(name, taskFields, nil) }

// extraNames maps each extra key to its collision-free name, visiting keys
// in sorted order so the mapping is stable.
func extraNames(extra map[string]any, known map[string]bool) map[string]string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !known[k] {
			used[k] = true
		}
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if !known[k] {
			out[k] = k
			continue
		}
		name := extraKey(k, known, func(n string) bool { return used[n] })
		used[name] = true
		out[k] = name
	}
	return out
}

func marshalOpen(canonical any, extra map[string]any, known map[string]bool) ([]byte, error) {
	base, err := json.Marshal(canonical)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, name := range extraNames(extra, known) {
		raw, err := json.Marshal(extra[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", k, err)
		}
		merged[name] = raw
	}
	return json.Marshal(merged)
}

func unmarshalOpen(data []byte, canonical any, known map[string]bool) (map[string]any, error) {
	if err := json.Unmarshal(data, canonical); err != nil {
		return nil, err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// ExtraKeys returns the sorted union of extra field names across records,
// named the way Fields names them. Canonical names are never returned.
func ExtraKeys[T any](records []T, extra func(T) map[string]any, canonical []string) []string {
	known := fieldSet(canonical)
	seen := make(map[string]bool)
	for _, r := range records {
		for _, name := range extraNames(extra(r), known) {
			seen[name] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns the record as a flat map keyed by canonical and extra names.
func (d Deal) Fields() map[string]any {
	out := map[string]any{
		"dealId":      d.DealID,
		"title":       d.Title,
		"responsible": d.Responsible,
		"stage":       d.Stage,
		"createdAt":   derefOrNil(d.CreatedAt),
		"modifiedAt":  derefOrNil(d.ModifiedAt),
		"department":  d.Department,
		"amount":      d.Amount,
		"currency":    d.Currency,
		"company":     d.Company,
		"contact":     d.Contact,
		"comments":    d.Comments,
	}
	for k, name := range extraNames(d.Extra, dealFields) {
		out[name] = d.Extra[k]
	}
	return out
}

// Fields returns the record as a flat map keyed by canonical and extra names.
func (t Task) Fields() map[string]any {
	out := map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"creator":     t.Creator,
		"assignee":    t.Assignee,
		"status":      t.Status,
		"priority":    t.Priority,
		"createdAt":   derefOrNil(t.CreatedAt),
		"closedAt":    derefOrNil(t.ClosedAt),
		"description": t.Description,
	}
	for k, name := range extraNames(t.Extra, taskFields) {
		out[name] = t.Extra[k]
	}
	return out
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
