// ABOUTME: Additive DDL suggestions for fields missing from the hosted tables
// ABOUTME: Only ADD COLUMN IF NOT EXISTS is ever emitted
package schema

import (
	"fmt"

	"github.com/lib/pq"
)

// TableName maps a record kind to its remote table.
func TableName(kind string) string {
	return "crm_" + kind
}

// Statements emits additive DDL for every suggested field. The statements
// are advisory and safe to re-run.
func (r Report) Statements() []string {
	var out []string
	for _, f := range r.Suggested() {
		out = append(out, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;",
			pq.QuoteIdentifier(TableName(r.Table)), pq.QuoteIdentifier(f.Column), f.Type))
	}
	return out
}
