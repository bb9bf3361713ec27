// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// RunStatus summarizes how a sync run ended.
type RunStatus string

const (
	// RunSuccess means every section job completed.
	RunSuccess RunStatus = "success"
	// RunPartial means some section jobs completed and some failed.
	RunPartial RunStatus = "partial"
	// RunFailed means every section job failed.
	RunFailed RunStatus = "failed"
	// RunCancelled means the run was interrupted before the jobs could
	// finish on their own.
	RunCancelled RunStatus = "cancelled"
)

// JobState tracks one section job's progress through the pipeline.
type JobState string

const (
	JobPending     JobState = "pending"
	JobFetching    JobState = "fetching"
	JobNormalizing JobState = "normalizing"
	JobWriting     JobState = "writing"
	JobCompleted   JobState = "completed"
	JobFailed      JobState = "failed"
)

// TypeStats counts record outcomes for one section during a run.
// Every fetched record lands in exactly one of inserted, updated,
// skipped, or failed.
type TypeStats struct {
	Fetched    int            `json:"fetched"`
	Normalized int            `json:"normalized"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Deleted    int            `json:"deleted,omitempty"`
	ErrorKinds map[string]int `json:"error_kinds,omitempty"`
}

// Total returns the number of fetched records accounted for.
func (ts TypeStats) Total() int {
	return ts.Inserted + ts.Updated + ts.Skipped + ts.Failed
}

// JobResult reports one section job's final state.
type JobResult struct {
	Entity types.EntityType `json:"entity"`
	State  JobState         `json:"state"`
	Err    string           `json:"error,omitempty"`
}

// Summary is the final report of a sync run.
type Summary struct {
	RunID      string                          `json:"run_id"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
	Status     RunStatus                       `json:"status"`
	PerType    map[types.EntityType]*TypeStats `json:"per_type"`
	Jobs       []JobResult                     `json:"jobs"`
}

// JSON renders the summary for the sync_runs audit table.
func (s *Summary) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}
	return string(b), nil
}

// Print writes a human-readable account of the run to w.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\nsync run %s finished in %s: %s\n",
		s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond), s.Status)

	for _, entity := range []types.EntityType{types.EntityUsers, types.EntityPublications, types.EntityGrants} {
		ts, ok := s.PerType[entity]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-14s %d fetched, %d inserted, %d updated, %d skipped, %d failed",
			string(entity)+":", ts.Fetched, ts.Inserted, ts.Updated, ts.Skipped, ts.Failed)
		if ts.Deleted > 0 {
			fmt.Fprintf(w, ", %d deleted", ts.Deleted)
		}
		fmt.Fprintln(w)
	}

	for _, job := range s.Jobs {
		if job.Err != "" {
			fmt.Fprintf(w, "  %s job %s: %s\n", job.Entity, job.State, job.Err)
		}
	}
}

// statsAccumulator is the lock-guarded mutable form of the per-section
// counters while workers are running.
type statsAccumulator struct {
	mu  sync.Mutex
	per map[types.EntityType]*TypeStats
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{per: map[types.EntityType]*TypeStats{
		types.EntityUsers:        {},
		types.EntityPublications: {},
		types.EntityGrants:       {},
	}}
}

func (a *statsAccumulator) addFetched(entity types.EntityType, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.per[entity].Fetched += n
}

func (a *statsAccumulator) recordNormalized(entity types.EntityType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.per[entity].Normalized++
}

func (a *statsAccumulator) recordWrite(entity types.EntityType, op store.WriteOp) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if op == store.OpInserted {
		a.per[entity].Inserted++
	} else {
		a.per[entity].Updated++
	}
}

func (a *statsAccumulator) recordSkip(entity types.EntityType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.per[entity].Skipped++
}

func (a *statsAccumulator) recordFailure(entity types.EntityType, kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := a.per[entity]
	ts.Failed++
	if ts.ErrorKinds == nil {
		ts.ErrorKinds = make(map[string]int)
	}
	ts.ErrorKinds[kind]++
}

// recordJobError notes a section-level error, like an exhausted fetch,
// in the error breakdown without attributing it to a single record.
func (a *statsAccumulator) recordJobError(entity types.EntityType, kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := a.per[entity]
	if ts.ErrorKinds == nil {
		ts.ErrorKinds = make(map[string]int)
	}
	ts.ErrorKinds[kind]++
}

func (a *statsAccumulator) recordDeleted(entity types.EntityType, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.per[entity].Deleted += n
}

// snapshot deep-copies the counters for the immutable Summary.
func (a *statsAccumulator) snapshot() map[types.EntityType]*TypeStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[types.EntityType]*TypeStats, len(a.per))
	for entity, ts := range a.per {
		copied := *ts
		if ts.ErrorKinds != nil {
			copied.ErrorKinds = make(map[string]int, len(ts.ErrorKinds))
			for k, v := range ts.ErrorKinds {
				copied.ErrorKinds[k] = v
			}
		}
		out[entity] = &copied
	}
	return out
}

// errKind buckets an error for the per-section error breakdown.
func errKind(err error) string {
	switch {
	case errors.Is(err, types.ErrAuthConfig):
		return "auth_config"
	case errors.Is(err, types.ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, types.ErrFetch):
		return "fetch"
	case errors.Is(err, types.ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, types.ErrMissingOwner):
		return "missing_owner"
	case errors.Is(err, types.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, types.ErrPersistence):
		return "persistence"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
