package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/metricscalc"
	"github.com/blustreamin/corpus-engine/internal/provider"
	"github.com/blustreamin/corpus-engine/internal/ratelimit"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// fakeProvider answers volume tasks from a fixed table, after a configurable
// number of in-progress polls.
type fakeProvider struct {
	volumes      map[string]int64
	pendingPolls int
	submits      int
	polls        int
	lastKeywords []string
}

func (p *fakeProvider) SubmitVolumeTask(ctx context.Context, keywords []string) provider.CallResult {
	p.submits++
	p.lastKeywords = keywords
	return provider.CallResult{OK: true, HTTPStatus: 200, LogicalStatus: provider.StatusTaskCreated, TaskID: "task_1"}
}

func (p *fakeProvider) PollTask(ctx context.Context, taskID string) provider.CallResult {
	p.polls++
	if p.polls <= p.pendingPolls {
		return provider.CallResult{OK: true, HTTPStatus: 200, LogicalStatus: provider.StatusTaskInQueue}
	}
	rows := make([]provider.VolumeRow, 0, len(p.lastKeywords))
	for _, k := range p.lastKeywords {
		rows = append(rows, provider.VolumeRow{Keyword: k, Volume: p.volumes[k]})
	}
	return provider.CallResult{OK: true, HTTPStatus: 200, LogicalStatus: provider.StatusOK, Rows: rows}
}

func (p *fakeProvider) Ping(ctx context.Context) error { return nil }

func newTestRebuildService(s store.Store, p provider.Client) *RebuildService {
	// a huge rpm budget keeps the pacing delay negligible in tests
	executor := ratelimit.NewExecutor(ratelimit.Config{MaxRPM: 60000, MaxRetries: 2})
	svc := NewRebuildService(s, p, executor, metricscalc.NewDeterministic())
	svc.pollInterval = time.Millisecond
	svc.maxPolls = 5
	return svc
}

func TestRebuildCategory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &fakeProvider{
		volumes:      map[string]int64{"razor": 5000, "shaving cream": 20, "after shave": 0},
		pendingPolls: 1,
	}
	svc := newTestRebuildService(s, p)

	category := corpus.Category{ID: "shaving", Name: "Shaving", Seeds: []string{"razor", "shaving cream", "after shave"}}
	result, err := svc.RebuildCategory(ctx, category)
	require.NoError(t, err)
	require.Equal(t, 3, result.Keywords)
	require.Equal(t, 2, result.Valid)
	require.Greater(t, result.Metrics.DemandIndexMn, 0.0, "category metrics are computed from the written rows")

	snapshot, err := s.Snapshot().Get(ctx, result.SnapshotID)
	require.NoError(t, err)
	require.Equal(t, model.LifecycleValidated, snapshot.Lifecycle)
	require.Equal(t, 3, snapshot.Stats.Data.KeywordsTotal)
	require.Equal(t, 2, snapshot.Stats.Data.ValidTotal)
	require.Equal(t, 1, snapshot.Stats.Data.Zero)

	rows, err := s.KeywordRow().ListBySnapshot(ctx, result.SnapshotID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	statuses := map[string]string{}
	for _, row := range rows {
		statuses[row.Keyword] = row.Status
	}
	require.Equal(t, model.RowStatusValid, statuses["razor"])
	require.Equal(t, model.RowStatusLow, statuses["shaving cream"])
	require.Equal(t, model.RowStatusZero, statuses["after shave"])

	pointer, err := s.IndexPointer().Get(ctx, model.PointerKey("shaving", "IN", "en"))
	require.NoError(t, err)
	require.Equal(t, result.SnapshotID, pointer.ActiveSnapshotID)
	require.Equal(t, "REBUILD", pointer.Source)

	// volumes were cached for the next rebuild
	entry, err := s.VolumeCache().Get(ctx, "razor")
	require.NoError(t, err)
	require.EqualValues(t, 5000, entry.Volume)
}

func TestRebuildCategoryUsesVolumeCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.VolumeCache().Put(ctx, &model.VolumeCacheEntry{
		ID: "vc_razor", Keyword: "razor", Volume: 9000, FetchedAt: time.Now(),
	}))

	p := &fakeProvider{volumes: map[string]int64{}}
	svc := newTestRebuildService(s, p)

	result, err := svc.RebuildCategory(ctx, corpus.Category{ID: "shaving", Seeds: []string{"razor"}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Valid)
	require.Zero(t, p.submits, "a full cache hit must not spend provider budget")
}

func TestRebuildCategoryMatchesVolumesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// the provider echoes the submitted casing; the rows must still get
	// their volumes
	p := &fakeProvider{volumes: map[string]int64{"Beard Oil": 900}}
	svc := newTestRebuildService(s, p)

	result, err := svc.RebuildCategory(ctx, corpus.Category{ID: "beard", Seeds: []string{"Beard Oil"}})
	require.NoError(t, err)
	require.Equal(t, 1, result.Valid)

	rows, err := s.KeywordRow().ListBySnapshot(ctx, result.SnapshotID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 900, rows[0].Volume)
	require.Equal(t, model.RowStatusValid, rows[0].Status)

	entry, err := s.VolumeCache().Get(ctx, "beard oil")
	require.NoError(t, err)
	require.EqualValues(t, 900, entry.Volume)
}

func TestEnsureDraft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := newTestRebuildService(s, &fakeProvider{})

	draft, err := svc.EnsureDraft(ctx, "shaving")
	require.NoError(t, err)
	require.Equal(t, model.LifecycleDraft, draft.Lifecycle)
	require.True(t, model.IsWellFormedSnapshotID(draft.ID))

	again, err := svc.EnsureDraft(ctx, "shaving")
	require.NoError(t, err)
	require.Equal(t, draft.ID, again.ID, "an anchored category never gets a second draft")
}

func TestBackfillMinimumValidation(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s store.Store) *model.Snapshot {
		snapshot := testSnapshot("shaving", model.LifecycleDraft, 0, time.Now())
		require.NoError(t, s.Snapshot().Create(ctx, snapshot))
		require.NoError(t, s.KeywordRow().CreateBatch(ctx, []model.KeywordRow{
			{ID: "kw_1", SnapshotID: snapshot.ID, CategoryID: "shaving", Keyword: "razor", Volume: 0, Status: model.RowStatusZero, Active: true, CreatedAt: time.Now()},
			{ID: "kw_2", SnapshotID: snapshot.ID, CategoryID: "shaving", Keyword: "after shave", Volume: 0, Status: model.RowStatusZero, Active: true, CreatedAt: time.Now()},
		}))
		return snapshot
	}

	t.Run("repairs rows the provider now knows", func(t *testing.T) {
		s := newTestStore(t)
		snapshot := seed(t, s)

		p := &fakeProvider{volumes: map[string]int64{"razor": 1200, "after shave": 0}}
		svc := newTestRebuildService(s, p)

		result, err := svc.BackfillMinimumValidation(ctx, snapshot)
		require.NoError(t, err)
		require.Equal(t, 1, result.Fixed)
		require.Equal(t, 1, result.Valid)

		rows, err := s.KeywordRow().ListBySnapshot(ctx, snapshot.ID)
		require.NoError(t, err)
		for _, row := range rows {
			if row.Keyword == "razor" {
				require.EqualValues(t, 1200, row.Volume)
				require.Equal(t, model.RowStatusValid, row.Status)
			} else {
				require.EqualValues(t, 0, row.Volume, "rows the provider still reports as zero stay untouched")
			}
		}
	})

	t.Run("fixes nothing when the provider agrees everything is zero", func(t *testing.T) {
		s := newTestStore(t)
		snapshot := seed(t, s)

		p := &fakeProvider{volumes: map[string]int64{"razor": 0, "after shave": 0}}
		svc := newTestRebuildService(s, p)

		result, err := svc.BackfillMinimumValidation(ctx, snapshot)
		require.NoError(t, err)
		require.Zero(t, result.Fixed)
		require.Zero(t, result.Valid)
	})

	t.Run("valid rows need no provider call", func(t *testing.T) {
		s := newTestStore(t)
		snapshot := testSnapshot("shaving", model.LifecycleValidated, 1, time.Now())
		require.NoError(t, s.Snapshot().Create(ctx, snapshot))
		require.NoError(t, s.KeywordRow().CreateBatch(ctx, []model.KeywordRow{
			{ID: "kw_1", SnapshotID: snapshot.ID, CategoryID: "shaving", Keyword: "razor", Volume: 800, Status: model.RowStatusValid, Active: true, CreatedAt: time.Now()},
		}))

		p := &fakeProvider{}
		svc := newTestRebuildService(s, p)

		result, err := svc.BackfillMinimumValidation(ctx, snapshot)
		require.NoError(t, err)
		require.Zero(t, result.Fixed)
		require.Equal(t, 1, result.Valid)
		require.Zero(t, p.submits)
	})
}
