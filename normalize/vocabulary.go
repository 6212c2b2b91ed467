// ABOUTME: Static vocabularies for people, departments, stages, and task statuses
// ABOUTME: Tables are built once and read-only afterwards; a JSON file may replace the defaults
package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DepartmentGroup lists the people that belong to one department.
type DepartmentGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// VocabularyFile is the on-disk shape of a vocabulary override.
type VocabularyFile struct {
	People             []string          `json:"people"`
	Departments        []DepartmentGroup `json:"departments"`
	Stages             []string          `json:"stages"`
	StageVariants      map[string]string `json:"stage_variants"`
	StageDepartments   map[string]string `json:"stage_departments"`
	TaskStatuses       []string          `json:"task_statuses"`
	TaskStatusVariants map[string]string `json:"task_status_variants"`
	PriorityVariants   map[string]string `json:"priority_variants"`
}

// Vocabulary holds the lookup tables used by the canonicalizer.
type Vocabulary struct {
	people       map[string]bool
	personTokens [][2]string
	peopleOrder  []string
	department   map[string]string
	stages       []string
	stageIndex   map[string]string
	stageOwner   map[string]string
	statusIndex  map[string]string
	priority     map[string]string
}

// NewVocabulary builds the lookup tables from a vocabulary description.
// When a person appears in several department groups the last group wins.
func NewVocabulary(f VocabularyFile) *Vocabulary {
	v := &Vocabulary{
		people:      make(map[string]bool),
		department:  make(map[string]string),
		stageIndex:  make(map[string]string),
		stageOwner:  make(map[string]string),
		statusIndex: make(map[string]string),
		priority:    make(map[string]string),
	}

	for _, p := range f.People {
		name := collapseSpaces(p)
		if name == "" || v.people[name] {
			continue
		}
		v.people[name] = true
		v.peopleOrder = append(v.peopleOrder, name)
		if tokens := strings.Fields(name); len(tokens) == 2 {
			v.personTokens = append(v.personTokens, [2]string{tokens[0], tokens[1]})
		}
	}

	for _, group := range f.Departments {
		for _, member := range group.Members {
			v.department[collapseSpaces(member)] = group.Name
		}
	}

	for _, variant := range sortedKeys(f.StageVariants) {
		v.stageIndex[stageKey(variant)] = f.StageVariants[variant]
	}
	// Canonical labels always map to themselves so that normalization is idempotent.
	for _, stage := range f.Stages {
		v.stages = append(v.stages, stage)
		v.stageIndex[stageKey(stage)] = stage
	}
	for stage, dept := range f.StageDepartments {
		v.stageOwner[stage] = dept
	}

	for _, variant := range sortedKeys(f.TaskStatusVariants) {
		v.statusIndex[stageKey(variant)] = f.TaskStatusVariants[variant]
	}
	for _, status := range f.TaskStatuses {
		v.statusIndex[stageKey(status)] = status
	}
	for _, variant := range sortedKeys(f.PriorityVariants) {
		v.priority[stageKey(variant)] = f.PriorityVariants[variant]
	}

	return v
}

// LoadVocabulary reads a vocabulary override from a JSON file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var f VocabularyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return NewVocabulary(f), nil
}

// Validate rejects variants that normalize to the same key but name
// different canonical labels.
func (f VocabularyFile) Validate() error {
	for _, table := range []struct {
		name     string
		variants map[string]string
	}{
		{"stage_variants", f.StageVariants},
		{"task_status_variants", f.TaskStatusVariants},
		{"priority_variants", f.PriorityVariants},
	} {
		seen := make(map[string]string)
		for _, variant := range sortedKeys(table.variants) {
			key := stageKey(variant)
			if prev, ok := seen[key]; ok && table.variants[prev] != table.variants[variant] {
				return fmt.Errorf("vocabulary %s: %q and %q map to %q and %q",
					table.name, prev, variant, table.variants[prev], table.variants[variant])
			}
			seen[key] = variant
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// People returns the known people in declaration order.
func (v *Vocabulary) People() []string {
	return append([]string(nil), v.peopleOrder...)
}

// Stages returns the canonical stage labels in funnel order.
func (v *Vocabulary) Stages() []string {
	return append([]string(nil), v.stages...)
}

// StageDepartment returns the department that owns a canonical stage.
func (v *Vocabulary) StageDepartment(stage string) (string, bool) {
	dept, ok := v.stageOwner[stage]
	return dept, ok
}

// DefaultVocabularyFile is the vocabulary shipped with the binary.
func DefaultVocabularyFile() VocabularyFile {
	return VocabularyFile{
		People: []string{
			"Иван Петров",
			"Мария Смирнова",
			"Алексей Кузнецов",
			"Ольга Васильева",
			"Дмитрий Соколов",
			"Екатерина Морозова",
			"Сергей Новиков",
		},
		Departments: []DepartmentGroup{
			{Name: "Отдел продаж", Members: []string{"Иван Петров", "Мария Смирнова", "Алексей Кузнецов", "Сергей Новиков"}},
			{Name: "Производство", Members: []string{"Дмитрий Соколов", "Ольга Васильева"}},
			{Name: "Бухгалтерия", Members: []string{"Екатерина Морозова"}},
			{Name: "Руководство", Members: []string{"Сергей Новиков"}},
		},
		Stages: []string{
			StageNew,
			StagePreparation,
			StagePrepayment,
			StageExecuting,
			StageFinalInvoice,
			StageWon,
			StageLost,
		},
		StageVariants: map[string]string{
			"new":                   StageNew,
			"Новый":                 StageNew,
			"Новая сделка":          StageNew,
			"preparation":           StagePreparation,
			"Подготовка":            StagePreparation,
			"Подготовка документов": StagePreparation,
			"prepayment_invoice":    StagePrepayment,
			"Счет на предоплату":    StagePrepayment,
			"Предоплата":            StagePrepayment,
			"executing":             StageExecuting,
			"in work":               StageExecuting,
			"В работе":              StageExecuting,
			"final_invoice":         StageFinalInvoice,
			"Финальный счет":        StageFinalInvoice,
			"won":                   StageWon,
			"closed won":            StageWon,
			"Успешна":               StageWon,
			"Выиграна":              StageWon,
			"Сделка заключена":      StageWon,
			"lose":                  StageLost,
			"lost":                  StageLost,
			"closed lost":           StageLost,
			"Провалена":             StageLost,
			"Проиграна":             StageLost,
		},
		StageDepartments: map[string]string{
			StageNew:          "Отдел продаж",
			StagePreparation:  "Отдел продаж",
			StagePrepayment:   "Отдел продаж",
			StageExecuting:    "Производство",
			StageFinalInvoice: "Бухгалтерия",
		},
		TaskStatuses: []string{
			StatusNew, StatusPending, StatusInProgress, StatusAwaitingControl,
			StatusCompleted, StatusDeferred, StatusDeclined,
		},
		TaskStatusVariants: map[string]string{
			"1": StatusNew, "new": StatusNew,
			"2": StatusPending, "pending": StatusPending, "Ждет выполнения": StatusPending,
			"3": StatusInProgress, "in progress": StatusInProgress, "В работе": StatusInProgress,
			"4": StatusAwaitingControl, "supposedly completed": StatusAwaitingControl,
			"5": StatusCompleted, "completed": StatusCompleted, "done": StatusCompleted, "Выполнена": StatusCompleted,
			"6": StatusDeferred, "deferred": StatusDeferred,
			"7": StatusDeclined, "declined": StatusDeclined,
		},
		PriorityVariants: map[string]string{
			"0": PriorityLow, "low": PriorityLow, "Низкий": PriorityLow,
			"1": PriorityNormal, "normal": PriorityNormal, "Средний": PriorityNormal, "Обычный": PriorityNormal,
			"2": PriorityHigh, "high": PriorityHigh, "Высокий": PriorityHigh,
		},
	}
}

// Canonical deal stages.
const (
	StageNew          = "Новая"
	StagePreparation  = "Подготовка документов"
	StagePrepayment   = "Счёт на предоплату"
	StageExecuting    = "В работе"
	StageFinalInvoice = "Финальный счёт"
	StageWon          = "Сделка успешна"
	StageLost         = "Сделка провалена"
)

// Canonical task statuses.
const (
	StatusNew             = "Новая"
	StatusPending         = "Ждёт выполнения"
	StatusInProgress      = "Выполняется"
	StatusAwaitingControl = "Ожидает контроля"
	StatusCompleted       = "Завершена"
	StatusDeferred        = "Отложена"
	StatusDeclined        = "Отклонена"
)

// Canonical task priorities.
const (
	PriorityLow    = "Низкий"
	PriorityNormal = "Средний"
	PriorityHigh   = "Высокий"
)
