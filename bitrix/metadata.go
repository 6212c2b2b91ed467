// ABOUTME: Deal funnel, field, and stage metadata lookups
// ABOUTME: Lookup failures fall back to defaults instead of aborting the import
package bitrix

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/harperreed/crmpulse/logging"
)

// Category is a deal funnel.
type Category struct {
	ID   string
	Name string
}

// ResolveSalesCategory finds the funnel whose name contains nameSubstr,
// case-insensitively. Any failure or no match yields fallback.
func (c *Client) ResolveSalesCategory(ctx context.Context, nameSubstr, fallback string) string {
	log := logging.Component("bitrix")

	resp, err := c.Call(ctx, "crm.dealcategory.list", map[string]any{})
	if err != nil {
		log.Warn("category lookup failed, using fallback", "fallback", fallback, "err", err)
		return fallback
	}

	var raw []Record
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		log.Warn("category list has unexpected shape, using fallback", "fallback", fallback, "err", err)
		return fallback
	}

	needle := strings.ToLower(nameSubstr)
	for _, r := range raw {
		cat := Category{ID: str(r["ID"]), Name: str(r["NAME"])}
		if needle != "" && strings.Contains(strings.ToLower(cat.Name), needle) {
			log.Info("sales category resolved", "id", cat.ID, "name", cat.Name)
			return cat.ID
		}
	}
	log.Info("no matching sales category, using fallback", "fallback", fallback)
	return fallback
}

// FieldMeta describes one entity field.
type FieldMeta struct {
	Type     string
	Title    string
	Multiple bool
	// Enum maps option ids to labels for enumeration fields.
	Enum map[string]string
	// CRMTargets lists linked entity kinds for crm-type fields, e.g. CONTACT, COMPANY.
	CRMTargets []string
}

// FieldMetadata fetches field descriptions for deals. A failure yields an
// empty map so enumerated values stay as raw ids.
func (c *Client) FieldMetadata(ctx context.Context) map[string]FieldMeta {
	resp, err := c.Call(ctx, "crm.deal.fields", map[string]any{})
	if err != nil {
		logging.Component("bitrix").Warn("field metadata unavailable", "err", err)
		return map[string]FieldMeta{}
	}
	return ParseFieldMetadata(resp.Result)
}

// ParseFieldMetadata reads the crm.deal.fields result.
func ParseFieldMetadata(raw json.RawMessage) map[string]FieldMeta {
	var fields map[string]struct {
		Type       string          `json:"type"`
		Title      string          `json:"title"`
		ListLabel  string          `json:"listLabel"`
		IsMultiple bool            `json:"isMultiple"`
		Items      json.RawMessage `json:"items"`
		Settings   json.RawMessage `json:"settings"`
	}
	out := make(map[string]FieldMeta)
	if err := json.Unmarshal(raw, &fields); err != nil {
		logging.Component("bitrix").Warn("field metadata has unexpected shape", "err", err)
		return out
	}

	for name, f := range fields {
		meta := FieldMeta{Type: f.Type, Title: f.Title, Multiple: f.IsMultiple}
		if f.ListLabel != "" {
			meta.Title = f.ListLabel
		}
		if len(f.Items) > 0 {
			meta.Enum = ParseEnumItems(f.Items)
		}
		if f.Type == "crm" {
			meta.CRMTargets = crmTargets(f.Settings)
		}
		out[name] = meta
	}
	return out
}

// ParseEnumItems builds an id to label map from any of the shapes the API
// uses: an array of {ID, VALUE} objects, an array of [id, label] pairs, or
// a plain {id: label} object. Unrecognized shapes give an empty map.
func ParseEnumItems(raw json.RawMessage) map[string]string {
	out := make(map[string]string)

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			var obj map[string]any
			if err := json.Unmarshal(item, &obj); err == nil {
				id := firstOf(obj, "ID", "id", "VALUE_ID")
				label := firstOf(obj, "VALUE", "value", "NAME", "name")
				if id != "" {
					out[id] = label
				}
				continue
			}
			var pair []any
			if err := json.Unmarshal(item, &pair); err == nil && len(pair) >= 2 {
				out[str(pair[0])] = str(pair[1])
			}
		}
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for id, label := range obj {
			out[id] = str(label)
		}
	}
	return out
}

func crmTargets(raw json.RawMessage) []string {
	var settings map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &settings) != nil {
		return nil
	}
	var targets []string
	for kind, v := range settings {
		if str(v) == "Y" {
			targets = append(targets, kind)
		}
	}
	sort.Strings(targets)
	return targets
}

// StageNames fetches stage id to name for a funnel. A failure yields an
// empty map so stages fall back to their raw ids.
func (c *Client) StageNames(ctx context.Context, categoryID string) map[string]string {
	out := make(map[string]string)
	resp, err := c.Call(ctx, "crm.dealcategory.stage.list", map[string]any{"id": categoryID})
	if err != nil {
		logging.Component("bitrix").Warn("stage lookup failed", "category", categoryID, "err", err)
		return out
	}

	var raw []Record
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		logging.Component("bitrix").Warn("stage list has unexpected shape", "category", categoryID, "err", err)
		return out
	}
	for _, r := range raw {
		if id := str(r["STATUS_ID"]); id != "" {
			out[id] = str(r["NAME"])
		}
	}
	return out
}

func firstOf(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := str(v); s != "" {
				return s
			}
		}
	}
	return ""
}
