// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/faculty-sync/internal/far"
	"github.com/mesh-intelligence/faculty-sync/internal/httputil"
	"github.com/mesh-intelligence/faculty-sync/internal/store"
	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

var testCredentials = types.Credentials{
	PublicKey:  "pk-test",
	PrivateKey: "sk-test",
	DatabaseID: "9001",
}

// syncBuffer collects the orchestrator's concurrent progress output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "faculty.db"), types.StoreConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// pagedHandler serves each endpoint's records through the standard
// pagination envelope.
func pagedHandler(records map[string][]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs := records[r.URL.Path]
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 {
			limit = len(recs) + 1
		}
		if offset > len(recs) {
			offset = len(recs)
		}
		end := offset + limit
		if end > len(recs) {
			end = len(recs)
		}
		page := recs[offset:end]
		if page == nil {
			page = []any{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"meta": map[string]any{
				"total":       len(recs),
				"limit":       limit,
				"offset":      offset,
				"next_offset": end,
				"has_more":    end < len(recs),
			},
			"records": page,
		})
	}
}

func newTestOrchestrator(t *testing.T, ts *httptest.Server, st *store.Store, cfg types.SyncConfig, w io.Writer) *Orchestrator {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = ts.URL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := far.NewClient(testCredentials, cfg)
	require.NoError(t, err)
	client.HTTPClient = ts.Client()
	return New(client, st, cfg, w)
}

func userRec(id, first, last string) map[string]any {
	return map[string]any{
		"userid":    id,
		"firstname": first,
		"lastname":  last,
		"email":     id + "@example.edu",
		"position":  "Professor",
	}
}

func pubRec(activityID int, userID, typ, title string) map[string]any {
	return map[string]any{
		"activityid": activityID,
		"userid":     userID,
		"fields":     map[string]any{"Type": typ, "Title": title},
	}
}

func grantRec(activityID int, userID, title, number string) map[string]any {
	return map[string]any{
		"activityid": activityID,
		"userid":     userID,
		"fields": map[string]any{
			"Title":                  title,
			"Grant ID / Contract ID": number,
			"Total Funding":          "$100,000",
		},
	}
}

func TestRun_HappyPath(t *testing.T) {
	records := map[string][]any{
		far.EndpointUsers: {
			userRec("u-1", "Ada", "Lovelace"),
			userRec("u-2", "Alan", "Turing"),
			userRec("u-3", "Grace", "Hopper"),
		},
		far.EndpointPublications: {
			pubRec(101, "u-1", "Journal Article", "Heat Stress in Urban Cohorts"),
			pubRec(102, "u-2", "Book", "Planetary Health"),
			pubRec(103, "u-3", "Journal Article", "Air Pollution and Asthma"),
			pubRec(104, "u-1", "Conference Paper", "Not Collected"),
		},
		far.EndpointGrants: {
			grantRec(201, "u-1", "Climate Resilience Study", "NSF-0042"),
			grantRec(202, "u-2", "Vector-Borne Disease Atlas", "NIH-0099"),
			map[string]any{"activityid": 203, "userid": "u-3", "fields": map[string]any{"Title": "Gift Account"}},
		},
	}
	ts := httptest.NewServer(pagedHandler(records))
	defer ts.Close()

	st := testStore(t)
	out := &syncBuffer{}
	o := newTestOrchestrator(t, ts, st, types.SyncConfig{PageSize: 2, Workers: 4}, out)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, RunSuccess, summary.Status)
	assert.NotEmpty(t, summary.RunID)

	users := summary.PerType[types.EntityUsers]
	assert.Equal(t, 3, users.Fetched)
	assert.Equal(t, 3, users.Inserted)
	assert.Zero(t, users.Updated)
	assert.Zero(t, users.Failed)

	pubs := summary.PerType[types.EntityPublications]
	assert.Equal(t, 4, pubs.Fetched)
	assert.Equal(t, 3, pubs.Normalized)
	assert.Equal(t, 3, pubs.Inserted)
	assert.Equal(t, 1, pubs.Skipped)
	assert.Zero(t, pubs.Failed)

	grants := summary.PerType[types.EntityGrants]
	assert.Equal(t, 3, grants.Fetched)
	assert.Equal(t, 2, grants.Inserted)
	assert.Equal(t, 1, grants.Skipped)

	// Every fetched record is accounted for exactly once.
	for entity, stats := range summary.PerType {
		assert.Equal(t, stats.Fetched, stats.Total(), "accounting for %s", entity)
	}

	for _, job := range summary.Jobs {
		assert.Equal(t, JobCompleted, job.State, "job %s", job.Entity)
		assert.Empty(t, job.Err)
	}

	assert.Contains(t, out.String(), "users: page 1 (2 records)")
	assert.Contains(t, out.String(), "finished in")

	// The run lands in the audit trail with the same summary.
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, "success", runs[0].Status)

	var stored Summary
	require.NoError(t, json.Unmarshal([]byte(runs[0].Summary), &stored))
	assert.Equal(t, 3, stored.PerType[types.EntityUsers].Inserted)
}

func TestRun_SecondRunUpdates(t *testing.T) {
	records := map[string][]any{
		far.EndpointUsers: {
			userRec("u-1", "Ada", "Lovelace"),
		},
		far.EndpointPublications: {
			pubRec(101, "u-1", "Book", "Planetary Health"),
		},
		far.EndpointGrants: {
			grantRec(201, "u-1", "Climate Resilience Study", "NSF-0042"),
		},
	}
	ts := httptest.NewServer(pagedHandler(records))
	defer ts.Close()

	st := testStore(t)

	first, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.PerType[types.EntityUsers].Inserted)

	second, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)

	for _, entity := range []types.EntityType{types.EntityUsers, types.EntityPublications, types.EntityGrants} {
		stats := second.PerType[entity]
		assert.Zero(t, stats.Inserted, "%s inserted on second run", entity)
		assert.Equal(t, 1, stats.Updated, "%s updated on second run", entity)
	}

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRun_SectionFailureIsPartial(t *testing.T) {
	records := map[string][]any{
		far.EndpointUsers:        {userRec("u-1", "Ada", "Lovelace")},
		far.EndpointPublications: {pubRec(101, "u-1", "Book", "Planetary Health")},
	}
	paged := pagedHandler(records)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == far.EndpointGrants {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		paged(w, r)
	}))
	defer ts.Close()

	st := testStore(t)
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunPartial, summary.Status)
	assert.Equal(t, 1, summary.PerType[types.EntityUsers].Inserted)
	assert.Equal(t, 1, summary.PerType[types.EntityPublications].Inserted)
	assert.Zero(t, summary.PerType[types.EntityGrants].Fetched)
	assert.Equal(t, 1, summary.PerType[types.EntityGrants].ErrorKinds["fetch"])

	for _, job := range summary.Jobs {
		if job.Entity == types.EntityGrants {
			assert.Equal(t, JobFailed, job.State)
			assert.NotEmpty(t, job.Err)
		} else {
			assert.Equal(t, JobCompleted, job.State)
		}
	}
}

func TestRun_AllSectionsFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad signature", http.StatusUnauthorized)
	}))
	defer ts.Close()

	st := testStore(t)
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, summary.Status)
	for _, job := range summary.Jobs {
		assert.Equal(t, JobFailed, job.State)
	}
	for entity, stats := range summary.PerType {
		assert.Equal(t, 1, stats.ErrorKinds["auth_rejected"], "entity %s", entity)
	}
}

func TestRun_MalformedRecordsCounted(t *testing.T) {
	records := map[string][]any{
		far.EndpointUsers: {userRec("u-1", "Ada", "Lovelace")},
		far.EndpointPublications: {
			pubRec(101, "u-1", "Book", "Planetary Health"),
			map[string]any{"userid": "u-1", "fields": map[string]any{"Type": "Book", "Title": "No Activity ID"}},
		},
	}
	ts := httptest.NewServer(pagedHandler(records))
	defer ts.Close()

	st := testStore(t)
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, summary.Status)
	pubs := summary.PerType[types.EntityPublications]
	assert.Equal(t, 2, pubs.Fetched)
	assert.Equal(t, 1, pubs.Inserted)
	assert.Equal(t, 1, pubs.Failed)
	assert.Equal(t, 1, pubs.ErrorKinds["malformed_record"])
}

func TestRun_OrphanedActivitiesFail(t *testing.T) {
	records := map[string][]any{
		far.EndpointPublications: {
			pubRec(101, "ghost", "Book", "Orphaned Book"),
			pubRec(102, "ghost", "Journal Article", "Orphaned Article"),
		},
	}
	ts := httptest.NewServer(pagedHandler(records))
	defer ts.Close()

	st := testStore(t)
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(context.Background())
	require.NoError(t, err)

	// Jobs complete; the two orphans fail at the record level after
	// the post-drain retry also misses their owner.
	assert.Equal(t, RunSuccess, summary.Status)
	pubs := summary.PerType[types.EntityPublications]
	assert.Equal(t, 2, pubs.Fetched)
	assert.Zero(t, pubs.Inserted)
	assert.Equal(t, 2, pubs.Failed)
	assert.Equal(t, 2, pubs.ErrorKinds["missing_owner"])

	titles, err := st.PublicationTitles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestRun_Prune(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	_, err := st.UpsertUser(ctx, types.User{ID: "u-1", FirstName: "Ada"})
	require.NoError(t, err)
	for _, p := range []types.Publication{
		{ActivityID: 1, UserID: "u-1", Type: "Book", Title: "Kept Pub"},
		{ActivityID: 2, UserID: "u-1", Type: "Book", Title: "Stale Pub"},
	} {
		_, err := st.UpsertPublication(ctx, p)
		require.NoError(t, err)
	}
	for _, g := range []types.Grant{
		{ActivityID: 11, UserID: "u-1", Title: "Kept Grant", GrantNumber: "G-11"},
		{ActivityID: 12, UserID: "u-1", Title: "Stale Grant", GrantNumber: "G-12"},
	} {
		_, err := st.UpsertGrant(ctx, g)
		require.NoError(t, err)
	}

	records := map[string][]any{
		far.EndpointUsers:        {userRec("u-1", "Ada", "Lovelace")},
		far.EndpointPublications: {pubRec(1, "u-1", "Book", "Kept Pub")},
		far.EndpointGrants:       {grantRec(11, "u-1", "Kept Grant", "G-11")},
	}
	ts := httptest.NewServer(pagedHandler(records))
	defer ts.Close()

	out := &syncBuffer{}
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{Prune: true}, out).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, summary.Status)
	assert.Equal(t, 1, summary.PerType[types.EntityPublications].Deleted)
	assert.Equal(t, 1, summary.PerType[types.EntityGrants].Deleted)
	assert.Contains(t, out.String(), "pruned 1 stale records")

	pubTitles, err := st.PublicationTitles(ctx)
	require.NoError(t, err)
	require.Len(t, pubTitles, 1)
	assert.Equal(t, "Kept Pub", pubTitles[0].Title)

	grantTitles, err := st.GrantTitles(ctx)
	require.NoError(t, err)
	require.Len(t, grantTitles, 1)
	assert.Equal(t, "Kept Grant", grantTitles[0].Title)
}

func TestRun_PruneSkipsFailedSection(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	_, err := st.UpsertUser(ctx, types.User{ID: "u-1"})
	require.NoError(t, err)
	_, err = st.UpsertGrant(ctx, types.Grant{ActivityID: 12, UserID: "u-1", Title: "Stale Grant", GrantNumber: "G-12"})
	require.NoError(t, err)

	records := map[string][]any{
		far.EndpointUsers:        {userRec("u-1", "Ada", "Lovelace")},
		far.EndpointPublications: {pubRec(1, "u-1", "Book", "Kept Pub")},
	}
	paged := pagedHandler(records)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == far.EndpointGrants {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		paged(w, r)
	}))
	defer ts.Close()

	out := &syncBuffer{}
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{Prune: true}, out).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, RunPartial, summary.Status)
	assert.Zero(t, summary.PerType[types.EntityGrants].Deleted)
	assert.Contains(t, out.String(), "grants: skipping prune")

	// The stale grant survives because its section never drained.
	grantTitles, err := st.GrantTitles(ctx)
	require.NoError(t, err)
	assert.Len(t, grantTitles, 1)
}

func TestRun_EmptyFetchSkipsPrune(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	_, err := st.UpsertUser(ctx, types.User{ID: "u-1"})
	require.NoError(t, err)
	_, err = st.UpsertPublication(ctx, types.Publication{ActivityID: 1, UserID: "u-1", Type: "Book", Title: "Survivor"})
	require.NoError(t, err)

	ts := httptest.NewServer(pagedHandler(map[string][]any{}))
	defer ts.Close()

	out := &syncBuffer{}
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{Prune: true}, out).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, summary.Status)
	assert.Zero(t, summary.PerType[types.EntityPublications].Deleted)
	assert.Contains(t, out.String(), "skipping prune, nothing was fetched")

	titles, err := st.PublicationTitles(ctx)
	require.NoError(t, err)
	assert.Len(t, titles, 1)
}

func TestRun_Cancelled(t *testing.T) {
	usersHit := make(chan struct{})
	var once sync.Once
	empty := pagedHandler(map[string][]any{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == far.EndpointUsers {
			once.Do(func() { close(usersHit) })
			<-r.Context().Done()
			return
		}
		empty(w, r)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-usersHit
		cancel()
	}()

	st := testStore(t)
	summary, err := newTestOrchestrator(t, ts, st, types.SyncConfig{}, io.Discard).Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, RunCancelled, summary.Status)

	for _, job := range summary.Jobs {
		if job.Entity == types.EntityUsers {
			assert.Equal(t, JobFailed, job.State)
		}
	}

	// The audit row is written even for interrupted runs.
	runs, listErr := st.ListRuns(context.Background(), 0)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, "cancelled", runs[0].Status)
}

func TestWrite_DefersMissingOwner(t *testing.T) {
	st := testStore(t)
	o := New(nil, st, types.SyncConfig{}, io.Discard)
	j := newJob(types.EntityPublications, far.EndpointPublications, nil)

	o.write(context.Background(), j, types.Publication{
		ActivityID: 1, UserID: "ghost", Type: "Book", Title: "Waiting",
	})

	assert.Len(t, j.takeDeferred(), 1)
	snap := o.stats.snapshot()
	assert.Zero(t, snap[types.EntityPublications].Inserted)
	assert.Zero(t, snap[types.EntityPublications].Failed)
}

func TestReconcile_RetriesAfterOwnerArrives(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	o := New(nil, st, types.SyncConfig{}, io.Discard)
	j := newJob(types.EntityPublications, far.EndpointPublications, nil)

	pub := types.Publication{ActivityID: 1, UserID: "u-1", Type: "Book", Title: "Deferred"}
	o.write(ctx, j, pub)
	snap := o.stats.snapshot()
	require.Zero(t, snap[types.EntityPublications].Inserted)

	// The owner lands after the first attempt.
	_, err := st.UpsertUser(ctx, types.User{ID: "u-1"})
	require.NoError(t, err)

	o.reconcile(ctx, j)

	snap = o.stats.snapshot()
	assert.Equal(t, 1, snap[types.EntityPublications].Inserted)
	assert.Zero(t, snap[types.EntityPublications].Failed)

	titles, err := st.PublicationTitles(ctx)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Equal(t, "Deferred", titles[0].Title)
}
