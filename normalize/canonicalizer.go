// ABOUTME: Turns parsed tabular rows into canonical deals and tasks
// ABOUTME: Rows are never dropped; rows missing stage or responsible are only counted
package normalize

import (
	"strings"

	"github.com/harperreed/crmpulse/models"
)

// Canonicalizer applies column aliasing and vocabulary normalization.
type Canonicalizer struct {
	vocab *Vocabulary
}

// NewCanonicalizer creates a canonicalizer over a vocabulary.
func NewCanonicalizer(vocab *Vocabulary) *Canonicalizer {
	if vocab == nil {
		vocab = NewVocabulary(DefaultVocabularyFile())
	}
	return &Canonicalizer{vocab: vocab}
}

// Vocabulary returns the tables the canonicalizer works with.
func (c *Canonicalizer) Vocabulary() *Vocabulary {
	return c.vocab
}

// DealResult is the outcome of canonicalizing a deal table.
type DealResult struct {
	Deals   []models.Deal
	Ignored int
	Columns ColumnMap
}

// TaskResult is the outcome of canonicalizing a task table.
type TaskResult struct {
	Tasks   []models.Task
	Ignored int
	Columns ColumnMap
}

// CanonicalizeDeals maps rows keyed by source headers into canonical deals.
// Source columns that feed no canonical field are kept in Extra.
func (c *Canonicalizer) CanonicalizeDeals(headers []string, rows []map[string]string) DealResult {
	cols := DealTargets.Resolve(headers)
	used := cols.Consumed()
	res := DealResult{Deals: make([]models.Deal, 0, len(rows)), Columns: cols}

	for _, row := range rows {
		get := func(field string) string {
			return strings.TrimSpace(DealTargets.Lookup(cols, row, field))
		}

		deal := models.Deal{
			DealID:      get("dealId"),
			Title:       get("title"),
			Responsible: c.vocab.NormalizeName(get("responsible")),
			Stage:       c.vocab.NormalizeStage(get("stage")),
			CreatedAt:   NormalizeDate(get("createdAt")),
			ModifiedAt:  NormalizeDate(get("modifiedAt")),
			Currency:    get("currency"),
			Company:     get("company"),
			Contact:     get("contact"),
			Comments:    get("comments"),
		}
		deal.Department = c.vocab.Department(deal.Responsible)
		if deal.Currency == "" {
			deal.Currency = "RUB"
		}

		deal.Extra = extraColumns(headers, row, used, models.DealExtraKey)
		if raw := get("amount"); raw != "" {
			if amount, ok := ParseAmount(raw); ok {
				deal.Amount = amount
			} else if col := cols["amount"]; col != "" {
				if deal.Extra == nil {
					deal.Extra = make(map[string]any)
				}
				deal.Extra[models.DealExtraKey(col)] = raw
			}
		}

		if deal.Stage == "" || deal.Responsible == "" {
			res.Ignored++
		}
		res.Deals = append(res.Deals, deal)
	}
	return res
}

// CanonicalizeTasks maps rows keyed by source headers into canonical tasks.
// Descriptions from tabular input are never truncated.
func (c *Canonicalizer) CanonicalizeTasks(headers []string, rows []map[string]string) TaskResult {
	cols := TaskTargets.Resolve(headers)
	used := cols.Consumed()
	res := TaskResult{Tasks: make([]models.Task, 0, len(rows)), Columns: cols}

	for _, row := range rows {
		get := func(field string) string {
			return strings.TrimSpace(TaskTargets.Lookup(cols, row, field))
		}

		task := models.Task{
			ID:          get("id"),
			Title:       get("title"),
			Creator:     c.vocab.NormalizeName(get("creator")),
			Assignee:    c.vocab.NormalizeName(get("assignee")),
			Status:      c.vocab.NormalizeStatus(get("status")),
			Priority:    c.vocab.NormalizePriority(get("priority")),
			CreatedAt:   NormalizeDate(get("createdAt")),
			ClosedAt:    NormalizeDate(get("closedAt")),
			Description: get("description"),
			Extra:       extraColumns(headers, row, used, models.TaskExtraKey),
		}

		if task.Status == "" || task.Assignee == "" {
			res.Ignored++
		}
		res.Tasks = append(res.Tasks, task)
	}
	return res
}

// extraColumns keeps unmapped source columns. Names that collide with a
// canonical field go through key.
func extraColumns(headers []string, row map[string]string, used map[string]bool, key func(string) string) map[string]any {
	var extra map[string]any
	for _, h := range headers {
		if h == "" || used[h] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key(h)] = row[h]
	}
	return extra
}
