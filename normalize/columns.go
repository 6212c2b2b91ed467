// ABOUTME: Column alias resolution from arbitrary source headers to canonical fields
// ABOUTME: First source column containing any alias wins, by header order
package normalize

import "strings"

// Target describes one canonical field and how to find it in a source table.
type Target struct {
	Field   string
	Display string
	Aliases []string
	Default string
}

// AliasTable is an ordered list of targets.
type AliasTable []Target

// ColumnMap records which source column feeds each canonical field.
// An empty value means no column matched.
type ColumnMap map[string]string

// DealTargets maps deal CSV columns to canonical deal fields.
var DealTargets = AliasTable{
	{Field: "dealId", Display: "ID", Aliases: []string{"id сделки", "ид сделки", "идентификатор", "deal id", "id"}},
	{Field: "title", Display: "Название", Aliases: []string{"название", "наименование", "title", "name"}},
	{Field: "responsible", Display: "Ответственный", Aliases: []string{"ответственный", "сотрудник", "менеджер", "responsible", "assigned"}},
	{Field: "stage", Display: "Стадия сделки", Aliases: []string{"стадия", "этап", "статус", "stage", "status"}},
	{Field: "createdAt", Display: "Дата создания", Aliases: []string{"дата создания", "создана", "created", "дата"}},
	{Field: "modifiedAt", Display: "Дата изменения", Aliases: []string{"дата изменения", "изменена", "modified", "updated"}},
	{Field: "amount", Display: "Сумма", Aliases: []string{"сумма", "amount", "opportunity"}},
	{Field: "currency", Display: "Валюта", Aliases: []string{"валюта", "currency"}, Default: "RUB"},
	{Field: "company", Display: "Компания", Aliases: []string{"компания", "клиент", "company"}},
	{Field: "contact", Display: "Контакт", Aliases: []string{"контакт", "contact"}},
	{Field: "comments", Display: "Комментарий", Aliases: []string{"комментари", "comment", "примечание"}},
}

// TaskTargets maps task CSV columns to canonical task fields.
var TaskTargets = AliasTable{
	{Field: "id", Display: "ID", Aliases: []string{"id задачи", "ид задачи", "идентификатор", "task id", "id"}},
	{Field: "title", Display: "Название", Aliases: []string{"название", "задача", "title", "name"}},
	{Field: "creator", Display: "Постановщик", Aliases: []string{"постановщик", "создатель", "автор", "creator", "author"}},
	{Field: "assignee", Display: "Исполнитель", Aliases: []string{"исполнитель", "ответственный", "assignee", "responsible"}},
	{Field: "status", Display: "Статус", Aliases: []string{"статус", "состояние", "status"}},
	{Field: "priority", Display: "Приоритет", Aliases: []string{"приоритет", "важность", "priority"}},
	{Field: "createdAt", Display: "Дата создания", Aliases: []string{"дата создания", "создана", "created"}},
	{Field: "closedAt", Display: "Дата закрытия", Aliases: []string{"дата закрытия", "закрыта", "завершена", "closed"}},
	{Field: "description", Display: "Описание", Aliases: []string{"описание", "description"}},
}

// NormalizeHeader lowercases a header and collapses its whitespace.
func NormalizeHeader(h string) string {
	return strings.ToLower(collapseSpaces(h))
}

// Resolve maps each target to the first header containing one of its aliases.
func (t AliasTable) Resolve(headers []string) ColumnMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	out := make(ColumnMap, len(t))
	for _, target := range t {
		out[target.Field] = ""
	columns:
		for i, h := range normalized {
			for _, alias := range target.Aliases {
				if strings.Contains(h, alias) {
					out[target.Field] = headers[i]
					break columns
				}
			}
		}
	}
	return out
}

// Lookup reads a canonical field from a row: the resolved column first, then
// the target's display name as a literal key, then the default.
func (t AliasTable) Lookup(cols ColumnMap, row map[string]string, field string) string {
	target, ok := t.target(field)
	if !ok {
		return ""
	}

	if col := cols[field]; col != "" {
		return row[col]
	}
	if v, ok := row[target.Display]; ok {
		return v
	}
	return target.Default
}

// Consumed returns the set of source columns that feed some canonical field.
func (cols ColumnMap) Consumed() map[string]bool {
	used := make(map[string]bool, len(cols))
	for _, col := range cols {
		if col != "" {
			used[col] = true
		}
	}
	return used
}

func (t AliasTable) target(field string) (Target, bool) {
	for _, target := range t {
		if target.Field == field {
			return target, true
		}
	}
	return Target{}, false
}
