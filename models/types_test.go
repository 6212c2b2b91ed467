// ABOUTME: Tests for canonical record models
// ABOUTME: Validates open-map JSON round trips and snapshot summaries
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDealJSONKeepsExtraFields(t *testing.T) {
	deal := Deal{
		DealID:      "100",
		Title:       "Поставка",
		Responsible: "Иван Петров",
		Stage:       "Новая",
		CreatedAt:   StringPtr("2024-03-01"),
		Extra:       map[string]any{"UF_CRM_SOURCE": "сайт"},
	}

	data, err := json.Marshal(deal)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal into map failed: %v", err)
	}
	if flat["UF_CRM_SOURCE"] != "сайт" {
		t.Errorf("expected extra field on the top level, got %v", flat["UF_CRM_SOURCE"])
	}
	if flat["modifiedAt"] != nil {
		t.Errorf("expected null modifiedAt, got %v", flat["modifiedAt"])
	}

	var back Deal
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.DealID != "100" || back.Stage != "Новая" {
		t.Errorf("canonical fields lost: %+v", back)
	}
	if back.Extra["UF_CRM_SOURCE"] != "сайт" {
		t.Errorf("extra field lost: %+v", back.Extra)
	}
	if _, ok := back.Extra["title"]; ok {
		t.Error("canonical field leaked into Extra")
	}
}

func TestExtraDoesNotOverrideCanonical(t *testing.T) {
	task := Task{ID: "7", Title: "real", Extra: map[string]any{"title": "shadow"}}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back Task
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Title != "real" {
		t.Errorf("expected canonical title to win, got %q", back.Title)
	}
	if back.Extra["source.title"] != "shadow" {
		t.Errorf("expected colliding source field under source.title, got %+v", back.Extra)
	}
}

func TestCollidingExtraSurvivesRoundTrip(t *testing.T) {
	deal := Deal{
		DealID: "1",
		Stage:  "Сделка успешна",
		Extra: map[string]any{
			DealExtraKey("amount"):     "по договорённости",
			DealExtraKey("department"): "Sales EMEA",
			"department":               "raw",
		},
	}
	if DealExtraKey("amount") != "source.amount" {
		t.Fatalf("unexpected key %q", DealExtraKey("amount"))
	}

	data, err := json.Marshal(deal)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Deal
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if back.Extra["source.amount"] != "по договорённости" {
		t.Errorf("amount text lost: %+v", back.Extra)
	}
	if back.Extra["source.department"] != "Sales EMEA" {
		t.Errorf("department text lost: %+v", back.Extra)
	}
	if back.Extra["source.source.department"] != "raw" {
		t.Errorf("second colliding key lost: %+v", back.Extra)
	}
	if len(back.Extra) != 3 {
		t.Errorf("expected 3 extra fields, got %+v", back.Extra)
	}
}

func TestExtraKeysNeverRepeatCanonicalFields(t *testing.T) {
	tasks := []Task{{
		ID:    "5",
		Title: "Позвонить",
		Extra: map[string]any{"id": "5", "title": "Позвонить", "createdBy": "1"},
	}}

	keys := ExtraKeys(tasks, func(t Task) map[string]any { return t.Extra }, TaskFields)
	want := []string{"createdBy", "source.id", "source.title"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	fields := tasks[0].Fields()
	if fields["source.id"] != "5" || fields["id"] != "5" {
		t.Errorf("unexpected fields: %+v", fields)
	}
}

func TestSnapshotSummary(t *testing.T) {
	snap := &Snapshot{
		ID:         uuid.New(),
		CreatedAt:  time.Now(),
		WeekStart:  "2024-03-04",
		WeekEnd:    "2024-03-10",
		DealsCount: 2,
		DealsData:  []Deal{{DealID: "1"}, {DealID: "2"}},
	}

	sum := snap.Summary()
	if sum.ID != snap.ID || sum.DealsCount != 2 || sum.WeekStart != "2024-03-04" {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestExtraKeysSortedUnion(t *testing.T) {
	deals := []Deal{
		{Extra: map[string]any{"b": 1, "a": 2}},
		{Extra: map[string]any{"c": 3, "a": 4}},
		{},
	}

	keys := ExtraKeys(deals, func(d Deal) map[string]any { return d.Extra }, DealFields)
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}
