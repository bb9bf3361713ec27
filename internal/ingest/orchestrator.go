// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/faculty-sync/internal/far"
	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// Orchestrator runs one full sync: three section jobs fetch pages
// concurrently, a shared worker pool normalizes and writes records,
// and the outcome is reported as a Summary.
type Orchestrator struct {
	client *far.Client
	store  *store.Store
	cfg    types.SyncConfig
	w      io.Writer

	stats   *statsAccumulator
	tracker *seenTracker
}

// New returns an Orchestrator that writes progress to w.
func New(client *far.Client, st *store.Store, cfg types.SyncConfig, w io.Writer) *Orchestrator {
	return &Orchestrator{
		client:  client,
		store:   st,
		cfg:     cfg,
		w:       w,
		stats:   newStatsAccumulator(),
		tracker: newSeenTracker(),
	}
}

// Run executes the sync until every section drains or ctx is
// cancelled. The returned Summary is always non-nil; the error is
// non-nil only when the run was cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now().UTC()

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pageSize := o.cfg.PageSize
	if pageSize <= 0 {
		pageSize = far.DefaultPageSize
	}

	jobs := []*job{
		newJob(types.EntityUsers, far.EndpointUsers, func(raw json.RawMessage) (any, error) {
			u, err := NormalizeUser(raw)
			if err != nil {
				return nil, err
			}
			return u, nil
		}),
		newJob(types.EntityPublications, far.EndpointPublications, func(raw json.RawMessage) (any, error) {
			p, err := NormalizePublication(raw)
			if err != nil {
				return nil, err
			}
			return p, nil
		}),
		newJob(types.EntityGrants, far.EndpointGrants, func(raw json.RawMessage) (any, error) {
			g, err := NormalizeGrant(raw)
			if err != nil {
				return nil, err
			}
			return g, nil
		}),
	}

	items := make(chan workItem, workers*2)

	var fetchWg sync.WaitGroup
	for _, j := range jobs {
		fetchWg.Add(1)
		go func(j *job) {
			defer fetchWg.Done()
			o.runJob(ctx, j, pageSize, items)
		}(j)
	}

	go func() {
		fetchWg.Wait()
		close(items)
	}()

	var workerWg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for item := range items {
				o.process(ctx, item)
			}
		}()
	}
	workerWg.Wait()

	for _, j := range jobs {
		j.pending.Wait()
		o.reconcile(ctx, j)
	}

	cancelled := ctx.Err() != nil

	if o.cfg.Prune && !cancelled {
		o.prune(ctx, jobs)
	}

	for _, j := range jobs {
		j.finish()
	}

	failed := 0
	for _, j := range jobs {
		if j.failed() {
			failed++
		}
	}
	var status RunStatus
	switch {
	case cancelled:
		status = RunCancelled
	case failed == 0:
		status = RunSuccess
	case failed == len(jobs):
		status = RunFailed
	default:
		status = RunPartial
	}

	summary := &Summary{
		RunID:      newRunID(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Status:     status,
		PerType:    o.stats.snapshot(),
	}
	for _, j := range jobs {
		summary.Jobs = append(summary.Jobs, j.result())
	}

	o.recordRun(summary)
	summary.Print(o.w)

	if cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// runJob walks one section's pages and feeds its records to the pool.
func (o *Orchestrator) runJob(ctx context.Context, j *job, pageSize int, items chan<- workItem) {
	j.setState(JobFetching)

	pager := o.client.Pages(j.endpoint, pageSize)
	for pager.Next(ctx) {
		records := pager.Page().Records
		o.stats.addFetched(j.entity, len(records))
		fmt.Fprintf(o.w, "%s: page %d (%d records)\n", j.entity, pager.PageCount(), len(records))

		for i, raw := range records {
			j.enqueue()
			select {
			case items <- workItem{job: j, raw: raw}:
			case <-ctx.Done():
				// The pool is shutting down; account for this record
				// and the rest of the page without processing them.
				o.dropRecord(j)
				for range records[i+1:] {
					o.stats.recordFailure(j.entity, "cancelled")
				}
				j.fail(ctx.Err())
				j.finishFetch()
				return
			}
		}
	}

	if err := pager.Err(); err != nil {
		j.fail(err)
		o.stats.recordJobError(j.entity, errKind(err))
		fmt.Fprintf(o.w, "%s: fetch failed: %v\n", j.entity, err)
	}
	j.finishFetch()
}

// process normalizes and writes a single record.
func (o *Orchestrator) process(ctx context.Context, item workItem) {
	j := item.job
	defer j.pending.Done()

	if ctx.Err() != nil {
		o.stats.recordFailure(j.entity, "cancelled")
		j.markNormalized()
		j.fail(ctx.Err())
		return
	}

	record, err := j.normalize(item.raw)
	j.markNormalized()
	if err != nil {
		if errors.Is(err, errSkipRecord) {
			o.stats.recordSkip(j.entity)
		} else {
			o.stats.recordFailure(j.entity, errKind(err))
			fmt.Fprintf(o.w, "%s: %v\n", j.entity, err)
		}
		return
	}

	o.stats.recordNormalized(j.entity)
	o.track(record)
	o.write(ctx, j, record)
}

// write upserts one normalized record. Writes run detached from
// cancellation so a record already fetched is not lost mid-statement
// when the run is interrupted.
func (o *Orchestrator) write(ctx context.Context, j *job, record any) {
	op, err := o.writeRecord(context.WithoutCancel(ctx), record)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrMissingOwner):
			// The owning user may simply not be written yet; retry
			// once the queues drain.
			j.addDeferred(record)
		case errors.Is(err, types.ErrStoreUnavailable):
			o.stats.recordFailure(j.entity, errKind(err))
			j.fail(err)
		default:
			o.stats.recordFailure(j.entity, errKind(err))
			fmt.Fprintf(o.w, "%s: %v\n", j.entity, err)
		}
		return
	}
	o.stats.recordWrite(j.entity, op)
}

func (o *Orchestrator) writeRecord(ctx context.Context, record any) (store.WriteOp, error) {
	switch r := record.(type) {
	case types.User:
		return o.store.UpsertUser(ctx, r)
	case types.Publication:
		return o.store.UpsertPublication(ctx, r)
	case types.Grant:
		return o.store.UpsertGrant(ctx, r)
	default:
		return 0, fmt.Errorf("%w: unsupported record type %T", types.ErrPersistence, record)
	}
}

// reconcile retries activities parked while their owner was missing.
// By the time it runs every user that will be written has been, so a
// second miss is final.
func (o *Orchestrator) reconcile(ctx context.Context, j *job) {
	deferred := j.takeDeferred()
	if len(deferred) == 0 {
		return
	}

	wctx := context.WithoutCancel(ctx)
	for _, record := range deferred {
		op, err := o.writeRecord(wctx, record)
		if err != nil {
			o.stats.recordFailure(j.entity, errKind(err))
			fmt.Fprintf(o.w, "%s: %v\n", j.entity, err)
			continue
		}
		o.stats.recordWrite(j.entity, op)
	}
}

// prune deletes activities the run did not observe. A section is only
// pruned when its job drained cleanly and fetched at least one record,
// so a failed or empty fetch can never empty a table.
func (o *Orchestrator) prune(ctx context.Context, jobs []*job) {
	for _, j := range jobs {
		var (
			seen    map[int64]struct{}
			pruneFn func(context.Context, map[int64]struct{}) (int, error)
		)
		switch j.entity {
		case types.EntityPublications:
			seen = o.tracker.snapshotPublications()
			pruneFn = o.store.PrunePublications
		case types.EntityGrants:
			seen = o.tracker.snapshotGrants()
			pruneFn = o.store.PruneGrants
		default:
			continue
		}

		if j.failed() {
			fmt.Fprintf(o.w, "%s: skipping prune, job did not complete cleanly\n", j.entity)
			continue
		}
		if len(seen) == 0 {
			fmt.Fprintf(o.w, "%s: skipping prune, nothing was fetched\n", j.entity)
			continue
		}

		deleted, err := pruneFn(context.WithoutCancel(ctx), seen)
		if err != nil {
			o.stats.recordJobError(j.entity, errKind(err))
			fmt.Fprintf(o.w, "%s: prune failed: %v\n", j.entity, err)
			continue
		}
		if deleted > 0 {
			o.stats.recordDeleted(j.entity, deleted)
			fmt.Fprintf(o.w, "%s: pruned %d stale records\n", j.entity, deleted)
		}
	}
}

// track marks an activity id as observed upstream. Tracking happens at
// normalization rather than after the write, so a record that fails to
// persist still counts as present and is never pruned.
func (o *Orchestrator) track(record any) {
	switch r := record.(type) {
	case types.Publication:
		o.tracker.trackPublication(r.ActivityID)
	case types.Grant:
		o.tracker.trackGrant(r.ActivityID)
	}
}

func (o *Orchestrator) dropRecord(j *job) {
	o.stats.recordFailure(j.entity, "cancelled")
	j.markNormalized()
	j.pending.Done()
}

// recordRun appends the audit row; failing to record is reported but
// never fails the sync itself.
func (o *Orchestrator) recordRun(summary *Summary) {
	payload, err := summary.JSON()
	if err != nil {
		fmt.Fprintf(o.w, "warning: could not encode run summary: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = o.store.RecordRun(ctx, store.RunRecord{
		ID:         summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Status:     string(summary.Status),
		Summary:    payload,
	})
	if err != nil {
		fmt.Fprintf(o.w, "warning: could not record sync run: %v\n", err)
	}
}

// newRunID returns a time-ordered id for the audit trail, falling back
// to a random one if V7 generation fails.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// workItem carries one raw record and its owning job through the pool.
type workItem struct {
	job *job
	raw json.RawMessage
}

// job is one section's pipeline state. The fetch goroutine owns the
// pager; pending tracks records handed to the pool and not yet
// settled; deferred collects activities whose owner was missing.
type job struct {
	entity    types.EntityType
	endpoint  string
	normalize func(json.RawMessage) (any, error)

	mu          sync.Mutex
	state       JobState
	err         error
	toNormalize int
	fetchDone   bool
	deferred    []any

	pending sync.WaitGroup
}

func newJob(entity types.EntityType, endpoint string, normalize func(json.RawMessage) (any, error)) *job {
	return &job{
		entity:    entity,
		endpoint:  endpoint,
		normalize: normalize,
		state:     JobPending,
	}
}

func (j *job) setState(s JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobFailed {
		j.state = s
	}
}

// fail records the job's first error and pins the state to failed.
// Already-written records stay in the store.
func (j *job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err == nil {
		j.err = err
	}
	j.state = JobFailed
}

func (j *job) enqueue() {
	j.mu.Lock()
	j.toNormalize++
	j.mu.Unlock()
	j.pending.Add(1)
}

// markNormalized settles one normalization slot and advances the state
// machine once the fetch is done and the last slot settles.
func (j *job) markNormalized() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.toNormalize--
	if j.fetchDone && j.toNormalize == 0 && j.state == JobNormalizing {
		j.state = JobWriting
	}
}

func (j *job) finishFetch() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fetchDone = true
	if j.state == JobFetching {
		if j.toNormalize == 0 {
			j.state = JobWriting
		} else {
			j.state = JobNormalizing
		}
	}
}

func (j *job) addDeferred(record any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deferred = append(j.deferred, record)
}

func (j *job) takeDeferred() []any {
	j.mu.Lock()
	defer j.mu.Unlock()
	d := j.deferred
	j.deferred = nil
	return d
}

func (j *job) failed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == JobFailed
}

func (j *job) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobFailed {
		j.state = JobCompleted
	}
}

func (j *job) result() JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	res := JobResult{Entity: j.entity, State: j.state}
	if j.err != nil {
		res.Err = j.err.Error()
	}
	return res
}

// seenTracker records which activity ids the current run observed so
// stale rows can be pruned afterwards.
type seenTracker struct {
	mu           sync.Mutex
	publications map[int64]struct{}
	grants       map[int64]struct{}
}

func newSeenTracker() *seenTracker {
	return &seenTracker{
		publications: make(map[int64]struct{}),
		grants:       make(map[int64]struct{}),
	}
}

func (t *seenTracker) trackPublication(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publications[id] = struct{}{}
}

func (t *seenTracker) trackGrant(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants[id] = struct{}{}
}

func (t *seenTracker) snapshotPublications() map[int64]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]struct{}, len(t.publications))
	for id := range t.publications {
		out[id] = struct{}{}
	}
	return out
}

func (t *seenTracker) snapshotGrants() map[int64]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]struct{}, len(t.grants))
	for id := range t.grants {
		out[id] = struct{}{}
	}
	return out
}
