// ABOUTME: CSV import pipeline from raw bytes to canonical records
// ABOUTME: Chains decoding, parsing, and canonicalization and reports the ignored count
package ingest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
)

// DealImport is the outcome of a deal CSV import.
type DealImport struct {
	Deals     []models.Deal
	Ignored   int
	Meta      models.FileMeta
	Headers   []string
	Delimiter rune
}

// TaskImport is the outcome of a task CSV import.
type TaskImport struct {
	Tasks     []models.Task
	Ignored   int
	Headers   []string
	Delimiter rune
}

// Importer turns delimited text files into canonical records.
type Importer struct {
	canon *normalize.Canonicalizer
	now   func() time.Time
}

// NewImporter creates an importer over a canonicalizer.
func NewImporter(canon *normalize.Canonicalizer) *Importer {
	if canon == nil {
		canon = normalize.NewCanonicalizer(nil)
	}
	return &Importer{canon: canon, now: time.Now}
}

// ImportDeals decodes, parses, and canonicalizes a deal table.
func (i *Importer) ImportDeals(data []byte) DealImport {
	table := ParseTable(DecodeText(data))
	res := i.canon.CanonicalizeDeals(table.Headers, table.Rows)

	if res.Ignored > 0 {
		logging.Component("ingest").Warn("rows without stage or responsible",
			"kind", models.KindDeals, "ignored", res.Ignored, "rows", len(res.Deals))
	}

	return DealImport{
		Deals:     res.Deals,
		Ignored:   res.Ignored,
		Meta:      normalize.ComputeFileMeta(res.Deals, i.now()),
		Headers:   table.Headers,
		Delimiter: table.Delimiter,
	}
}

// ImportTasks decodes, parses, and canonicalizes a task table.
func (i *Importer) ImportTasks(data []byte) TaskImport {
	table := ParseTable(DecodeText(data))
	res := i.canon.CanonicalizeTasks(table.Headers, table.Rows)

	if res.Ignored > 0 {
		logging.Component("ingest").Warn("rows without status or assignee",
			"kind", models.KindTasks, "ignored", res.Ignored, "rows", len(res.Tasks))
	}

	return TaskImport{
		Tasks:     res.Tasks,
		Ignored:   res.Ignored,
		Headers:   table.Headers,
		Delimiter: table.Delimiter,
	}
}

// ReadFile reads an import source, with "-" meaning standard input.
func ReadFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
