// ABOUTME: Tests for schema drift analysis and type inference
// ABOUTME: Checks fill-rate gating, exclusions, and additive DDL output
package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmpulse/models"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"integers", []string{"1", "-20", "300"}, TypeInteger},
		{"large integers", []string{"1", "9999999999"}, TypeNumeric},
		{"decimals", []string{"1.5", "2", "3,75"}, TypeDecimal},
		{"dates", []string{"2024-03-01", "05.03.2024"}, TypeDate},
		{"timestamps", []string{"2024-03-01 10:00:00", "2024-03-01T10:00:00+03:00", "2024-03-02"}, TypeTimestamp},
		{"booleans", []string{"Y", "N", "да"}, TypeBoolean},
		{"short text", []string{"сайт", "звонок"}, TypeShortText},
		{"long text", []string{strings.Repeat("я", 256)}, TypeLongText},
		{"empty", nil, TypeLongText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.values))
		})
	}
}

func TestNumericBeforeBoolean(t *testing.T) {
	assert.Equal(t, TypeInteger, InferType([]string{"0", "1", "1"}))
}

func TestAnalyzeFillRates(t *testing.T) {
	var deals []models.Deal
	for i := 0; i < 10; i++ {
		extra := map[string]any{"_internal": "x", "raw_data": "{}"}
		if i < 5 {
			extra["UF_CRM_SOURCE"] = "сайт"
		}
		if i < 2 {
			extra["UF_CRM_BUDGET"] = 1000.0
		}
		if i < 1 {
			extra["UF_CRM_RARE"] = "редко"
		}
		deals = append(deals, models.Deal{DealID: "1", Extra: extra})
	}

	report := AnalyzeDeals(deals)
	assert.Equal(t, 10, report.Total)
	require.Len(t, report.Fields, 3)

	source := report.Fields[0]
	assert.Equal(t, "UF_CRM_SOURCE", source.Name)
	assert.Equal(t, "uf_crm_source", source.Column)
	assert.InDelta(t, 0.5, source.FillRate, 1e-9)
	assert.Equal(t, PriorityImportant, source.Priority)
	assert.Equal(t, TypeShortText, source.Type)

	budget := report.Fields[1]
	assert.Equal(t, PriorityPossible, budget.Priority)
	assert.Equal(t, TypeInteger, budget.Type)

	rare := report.Fields[2]
	assert.Empty(t, rare.Priority)
	assert.Empty(t, rare.Suggestion)

	assert.Len(t, report.Suggested(), 2)
}

func TestAnalyzeUnknownTable(t *testing.T) {
	_, err := Analyze("contacts", nil)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestStatements(t *testing.T) {
	report := Report{
		Table: models.KindTasks,
		Fields: []FieldReport{
			{Name: "Теги", Column: "теги", Type: TypeShortText, Priority: PriorityImportant},
			{Name: "x", Column: "x", Type: TypeLongText},
		},
	}

	stmts := report.Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, `ALTER TABLE "crm_tasks" ADD COLUMN IF NOT EXISTS "теги" varchar(255);`, stmts[0])
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "uf_crm_1700000", ColumnName("UF_CRM_1700000"))
	assert.Equal(t, "дата_оплаты", ColumnName("Дата  оплаты"))
	assert.Equal(t, "f_1c_id", ColumnName("1C id"))
	assert.Equal(t, "field", ColumnName("!!!"))
}
