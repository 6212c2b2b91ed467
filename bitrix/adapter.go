// ABOUTME: Bitrix import state machine: funnel, metadata, stages, listing, resolution, reshaping, snapshot
// ABOUTME: Listing failures abort the import; lookup and snapshot failures only degrade it
package bitrix

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
)

// Import kinds.
const (
	KindDeals = models.KindDeals
	KindTasks = models.KindTasks
	KindAll   = "all"
)

// DefaultDescriptionLimit caps task descriptions in runes.
const DefaultDescriptionLimit = 500

// Options tunes an import.
type Options struct {
	SalesCategory      string
	FallbackCategoryID string
	DescriptionLimit   int
}

// SnapshotCreator persists the imported batch.
type SnapshotCreator interface {
	Create(ctx context.Context, deals []models.Deal, tasks []models.Task, metadata map[string]string) (*models.Snapshot, string, error)
}

// Adapter imports deals and tasks from one webhook.
type Adapter struct {
	client    *Client
	vocab     *normalize.Vocabulary
	opts      Options
	snapshots SnapshotCreator
}

// NewAdapter creates an adapter. snapshots may be nil to skip persistence.
func NewAdapter(client *Client, vocab *normalize.Vocabulary, opts Options, snapshots SnapshotCreator) *Adapter {
	if vocab == nil {
		vocab = normalize.NewVocabulary(normalize.DefaultVocabularyFile())
	}
	if opts.FallbackCategoryID == "" {
		opts.FallbackCategoryID = "0"
	}
	if opts.DescriptionLimit == 0 {
		opts.DescriptionLimit = DefaultDescriptionLimit
	}
	return &Adapter{client: client, vocab: vocab, opts: opts, snapshots: snapshots}
}

// DealBatch is the outcome of fetching deals.
type DealBatch struct {
	Deals      []models.Deal
	CategoryID string
	Reports    []ResolveReport
}

// TaskBatch is the outcome of fetching tasks.
type TaskBatch struct {
	Tasks   []models.Task
	Reports []ResolveReport
}

// Result is the outcome of one import call.
type Result struct {
	Deals           *DealBatch
	Tasks           *TaskBatch
	Snapshot        *models.Snapshot
	SnapshotBackend string
	SnapshotErr     error
}

// DealsCount is the number of imported deals.
func (r *Result) DealsCount() int {
	if r == nil || r.Deals == nil {
		return 0
	}
	return len(r.Deals.Deals)
}

// TasksCount is the number of imported tasks.
func (r *Result) TasksCount() int {
	if r == nil || r.Tasks == nil {
		return 0
	}
	return len(r.Tasks.Tasks)
}

// PartialFailures lists every lookup chunk that failed.
func (r *Result) PartialFailures() []ChunkResult {
	var out []ChunkResult
	var reports []ResolveReport
	if r.Deals != nil {
		reports = append(reports, r.Deals.Reports...)
	}
	if r.Tasks != nil {
		reports = append(reports, r.Tasks.Reports...)
	}
	for _, rep := range reports {
		out = append(out, rep.Failed()...)
	}
	return out
}

// FetchDeals runs the deal phases up to reshaping.
func (a *Adapter) FetchDeals(ctx context.Context) (*DealBatch, error) {
	log := logging.Component("bitrix")

	categoryID := a.client.ResolveSalesCategory(ctx, a.opts.SalesCategory, a.opts.FallbackCategoryID)
	meta := a.client.FieldMetadata(ctx)
	stages := a.client.StageNames(ctx, categoryID)
	log.Info("deal metadata loaded", "category", categoryID, "fields", len(meta), "stages", len(stages))

	records, err := a.client.ListAll(ctx, "crm.deal.list", map[string]any{
		"filter": map[string]any{"CATEGORY_ID": categoryID},
		"select": []string{"*", "UF_*"},
		"order":  map[string]string{"ID": "ASC"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	log.Info("deals listed", "count", len(records))

	refs := collectDealRefs(records, meta)
	shaper := &dealShaper{
		vocab:     a.vocab,
		meta:      meta,
		stages:    stages,
		users:     a.client.ResolveUsers(ctx, refs.users.list()),
		contacts:  a.client.ResolveContacts(ctx, refs.contacts.list()),
		companies: a.client.ResolveCompanies(ctx, refs.companies.list()),
	}

	batch := &DealBatch{
		CategoryID: categoryID,
		Deals:      make([]models.Deal, 0, len(records)),
		Reports:    []ResolveReport{shaper.users, shaper.contacts, shaper.companies},
	}
	for _, rec := range records {
		batch.Deals = append(batch.Deals, shaper.shape(rec))
	}
	return batch, nil
}

// FetchTasks runs the task phases up to reshaping.
func (a *Adapter) FetchTasks(ctx context.Context) (*TaskBatch, error) {
	records, err := a.client.ListAll(ctx, "tasks.task.list", map[string]any{
		"select": []string{"ID", "TITLE", "DESCRIPTION", "STATUS", "PRIORITY", "CREATED_BY", "RESPONSIBLE_ID", "CREATED_DATE", "CLOSED_DATE"},
		"order":  map[string]string{"ID": "ASC"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	logging.Component("bitrix").Info("tasks listed", "count", len(records))

	refs := collectTaskRefs(records)
	shaper := &taskShaper{
		vocab: a.vocab,
		users: a.client.ResolveUsers(ctx, refs.users.list()),
		limit: a.opts.DescriptionLimit,
	}

	batch := &TaskBatch{
		Tasks:   make([]models.Task, 0, len(records)),
		Reports: []ResolveReport{shaper.users},
	}
	for _, rec := range records {
		batch.Tasks = append(batch.Tasks, shaper.shape(rec))
	}
	return batch, nil
}

// Import fetches the requested kind and snapshots the result. Deals and
// tasks are fetched concurrently for KindAll.
func (a *Adapter) Import(ctx context.Context, kind string) (*Result, error) {
	res := &Result{}

	switch kind {
	case KindDeals:
		deals, err := a.FetchDeals(ctx)
		if err != nil {
			return nil, err
		}
		res.Deals = deals
	case KindTasks:
		tasks, err := a.FetchTasks(ctx)
		if err != nil {
			return nil, err
		}
		res.Tasks = tasks
	case KindAll:
		var wg sync.WaitGroup
		var dealErr, taskErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			res.Deals, dealErr = a.FetchDeals(ctx)
		}()
		go func() {
			defer wg.Done()
			res.Tasks, taskErr = a.FetchTasks(ctx)
		}()
		wg.Wait()
		if err := errors.Join(dealErr, taskErr); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown import kind %q", kind)
	}

	a.snapshot(ctx, res, kind)
	return res, nil
}

func (a *Adapter) snapshot(ctx context.Context, res *Result, kind string) {
	if a.snapshots == nil {
		return
	}

	var deals []models.Deal
	var tasks []models.Task
	if res.Deals != nil {
		deals = res.Deals.Deals
	}
	if res.Tasks != nil {
		tasks = res.Tasks.Tasks
	}

	snap, backend, err := a.snapshots.Create(ctx, deals, tasks, map[string]string{"source": "bitrix", "kind": kind})
	if err != nil {
		res.SnapshotErr = err
		logging.Component("bitrix").Warn("snapshot not saved", "err", err)
		return
	}
	res.Snapshot = snap
	res.SnapshotBackend = backend
}
