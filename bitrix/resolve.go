// ABOUTME: Batched id to display-name resolution for users, contacts, and companies
// ABOUTME: Chunk failures are recorded and skipped; unresolved ids keep their raw value
package bitrix

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/harperreed/crmpulse/logging"
)

// ChunkSize is how many ids one lookup call resolves.
const ChunkSize = 50

// Entity kinds resolved by lookup calls.
const (
	EntityUsers     = "users"
	EntityContacts  = "contacts"
	EntityCompanies = "companies"
)

// ChunkResult is the outcome of resolving one chunk of ids.
type ChunkResult struct {
	Index int
	IDs   []string
	Names map[string]string
	Err   error
}

// ResolveReport aggregates the chunks of one entity kind.
type ResolveReport struct {
	Entity string
	Names  map[string]string
	Chunks []ChunkResult
}

// Failed returns the chunks that could not be fetched.
func (r ResolveReport) Failed() []ChunkResult {
	var out []ChunkResult
	for _, c := range r.Chunks {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Unresolved returns requested ids that have no name, sorted.
func (r ResolveReport) Unresolved() []string {
	var out []string
	for _, c := range r.Chunks {
		for _, id := range c.IDs {
			if _, ok := r.Names[id]; !ok {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Name returns the resolved name of id, or id itself.
func (r ResolveReport) Name(id string) string {
	if name, ok := r.Names[id]; ok && name != "" {
		return name
	}
	return id
}

type fetchFunc func(ctx context.Context, ids []string) (map[string]string, error)

// resolve fetches names chunk by chunk, sequentially.
func resolve(ctx context.Context, entity string, ids []string, fetch fetchFunc) ResolveReport {
	report := ResolveReport{Entity: entity, Names: make(map[string]string)}
	log := logging.Component("bitrix")

	for i, start := 0, 0; start < len(ids); i, start = i+1, start+ChunkSize {
		end := min(start+ChunkSize, len(ids))
		chunk := ChunkResult{Index: i, IDs: ids[start:end]}

		names, err := fetch(ctx, chunk.IDs)
		if err != nil {
			chunk.Err = err
			log.Warn("chunk resolution failed", "entity", entity, "chunk", i, "ids", len(chunk.IDs), "err", err)
		} else {
			chunk.Names = names
			for id, name := range names {
				report.Names[id] = name
			}
		}
		report.Chunks = append(report.Chunks, chunk)
	}
	return report
}

// ResolveUsers maps user ids to "First Last".
func (c *Client) ResolveUsers(ctx context.Context, ids []string) ResolveReport {
	return resolve(ctx, EntityUsers, ids, func(ctx context.Context, chunk []string) (map[string]string, error) {
		return c.lookup(ctx, "user.get", map[string]any{"filter": map[string]any{"ID": chunk}}, personName)
	})
}

// ResolveContacts maps contact ids to "First Last".
func (c *Client) ResolveContacts(ctx context.Context, ids []string) ResolveReport {
	return resolve(ctx, EntityContacts, ids, func(ctx context.Context, chunk []string) (map[string]string, error) {
		return c.lookup(ctx, "crm.contact.list", map[string]any{
			"filter": map[string]any{"@ID": chunk},
			"select": []string{"ID", "NAME", "LAST_NAME"},
		}, personName)
	})
}

// ResolveCompanies maps company ids to titles.
func (c *Client) ResolveCompanies(ctx context.Context, ids []string) ResolveReport {
	return resolve(ctx, EntityCompanies, ids, func(ctx context.Context, chunk []string) (map[string]string, error) {
		return c.lookup(ctx, "crm.company.list", map[string]any{
			"filter": map[string]any{"@ID": chunk},
			"select": []string{"ID", "TITLE"},
		}, func(r Record) string { return strings.TrimSpace(str(r["TITLE"])) })
	})
}

func (c *Client) lookup(ctx context.Context, method string, params map[string]any, name func(Record) string) (map[string]string, error) {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var rows []Record
	if err := json.Unmarshal(resp.Result, &rows); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if id := str(r["ID"]); id != "" {
			out[id] = name(r)
		}
	}
	return out, nil
}

func personName(r Record) string {
	return strings.TrimSpace(strings.Join(strings.Fields(str(r["NAME"])+" "+str(r["LAST_NAME"])), " "))
}

// idSet collects distinct non-empty ids in first-seen order.
type idSet struct {
	seen  map[string]bool
	order []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]bool)}
}

func (s *idSet) add(ids ...string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if isEmptyID(id) || s.seen[id] {
			continue
		}
		s.seen[id] = true
		s.order = append(s.order, id)
	}
}

func (s *idSet) list() []string {
	return s.order
}
