package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/metricscalc"
	"github.com/blustreamin/corpus-engine/internal/provider"
	"github.com/blustreamin/corpus-engine/internal/ratelimit"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

const lowVolumeThreshold = 50

// CategoryRebuildResult summarizes one successful category rebuild.
type CategoryRebuildResult struct {
	SnapshotID string
	Keywords   int
	Valid      int
	Metrics    metricscalc.Metrics
}

// BackfillResult reports what a minimum-validation backfill changed. Fixed is
// the number of rows whose volume was repaired; Valid is the category's valid
// row count after the backfill.
type BackfillResult struct {
	Fixed int
	Valid int
}

type RebuildService struct {
	store    store.Store
	provider provider.Client
	executor *ratelimit.Executor
	calc     metricscalc.Calculator
	logger   *zap.SugaredLogger

	// poll pacing, shrunk by tests
	pollInterval time.Duration
	maxPolls     int
}

func NewRebuildService(s store.Store, p provider.Client, e *ratelimit.Executor, calc metricscalc.Calculator) *RebuildService {
	return &RebuildService{
		store:        s,
		provider:     p,
		executor:     e,
		calc:         calc,
		logger:       zap.S().Named("rebuild"),
		pollInterval: 10 * time.Second,
		maxPolls:     30,
	}
}

// RebuildCategory builds a fresh snapshot for one category from its seed
// keywords: volumes come from the cache when possible and from the provider
// otherwise, rows are written under a new draft snapshot, and the snapshot is
// promoted to VALIDATED once its stats are in place.
func (s *RebuildService) RebuildCategory(ctx context.Context, category corpus.Category) (*CategoryRebuildResult, error) {
	volumes, err := s.fetchVolumes(ctx, category.ID, category.Seeds)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snapshot := &model.Snapshot{
		ID:         fmt.Sprintf("snap_%s_%d", category.ID, now.UnixMilli()),
		CategoryID: category.ID,
		Country:    corpus.DefaultCountry,
		Language:   corpus.DefaultLanguage,
		Lifecycle:  model.LifecycleDraft,
		Stats:      model.MakeJSONField(model.SnapshotStats{}),
		CreatedAt:  now,
	}
	if err := s.store.Snapshot().Create(ctx, snapshot); err != nil {
		return nil, errors.Wrapf(err, "creating snapshot for %s", category.ID)
	}

	rows := make([]model.KeywordRow, 0, len(category.Seeds))
	for _, keyword := range category.Seeds {
		volume := volumes[normalizeKeyword(keyword)]
		rows = append(rows, model.KeywordRow{
			ID:           fmt.Sprintf("kw_%s", uuid.NewString()),
			SnapshotID:   snapshot.ID,
			CategoryID:   category.ID,
			Keyword:      keyword,
			Volume:       volume,
			Status:       statusForVolume(volume),
			Active:       true,
			IntentBucket: intentBucketFor(keyword),
			CreatedAt:    now,
		})
	}
	if err := s.store.KeywordRow().CreateBatch(ctx, rows); err != nil {
		return nil, errors.Wrapf(err, "writing keyword rows for %s", category.ID)
	}

	stats := statsFromRows(rows)
	snapshot.Stats = model.MakeJSONField(stats)
	snapshot.Lifecycle = model.LifecycleValidated
	if err := s.store.Snapshot().Update(ctx, snapshot); err != nil {
		return nil, errors.Wrapf(err, "promoting snapshot %s", snapshot.ID)
	}

	if err := s.writePointer(ctx, snapshot, stats, "REBUILD"); err != nil {
		return nil, err
	}

	metrics := s.calc.CalculateCategoryMetrics(rowInputs(rows))
	s.logger.Infow("category rebuilt",
		"category", category.ID,
		"snapshot", snapshot.ID,
		"keywords", len(rows),
		"valid", stats.ValidTotal,
		"demand_index_mn", metrics.DemandIndexMn,
	)

	return &CategoryRebuildResult{
		SnapshotID: snapshot.ID,
		Keywords:   len(rows),
		Valid:      stats.ValidTotal,
		Metrics:    metrics,
	}, nil
}

// EnsureDraft guarantees the category has at least one snapshot, creating an
// empty draft when none exists. It returns the snapshot that now anchors the
// category.
func (s *RebuildService) EnsureDraft(ctx context.Context, categoryID string) (*model.Snapshot, error) {
	existing, err := s.store.Snapshot().List(ctx,
		store.NewSnapshotQueryFilter().ByCategory(categoryID).NewestFirst().WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	now := time.Now()
	draft := &model.Snapshot{
		ID:         fmt.Sprintf("snap_draft_%s_%d", categoryID, now.UnixMilli()),
		CategoryID: categoryID,
		Country:    corpus.DefaultCountry,
		Language:   corpus.DefaultLanguage,
		Lifecycle:  model.LifecycleDraft,
		Stats:      model.MakeJSONField(model.SnapshotStats{}),
		CreatedAt:  now,
	}
	if err := s.store.Snapshot().Create(ctx, draft); err != nil {
		return nil, errors.Wrapf(err, "creating draft snapshot for %s", categoryID)
	}
	s.logger.Infow("draft snapshot created", "category", categoryID, "snapshot", draft.ID)
	return draft, nil
}

// BackfillMinimumValidation re-fetches volumes for the snapshot's unverified
// and zero rows and repairs the ones the provider now knows about. Rows the
// provider still reports as zero are left untouched.
func (s *RebuildService) BackfillMinimumValidation(ctx context.Context, snapshot *model.Snapshot) (BackfillResult, error) {
	rows, err := s.store.KeywordRow().ListBySnapshot(ctx, snapshot.ID)
	if err != nil {
		return BackfillResult{}, err
	}

	var stale []string
	for _, row := range rows {
		if row.Active && !row.IsValid() {
			stale = append(stale, row.Keyword)
		}
	}
	if len(stale) == 0 {
		return BackfillResult{Valid: countValid(rows)}, nil
	}

	volumes, err := s.fetchVolumes(ctx, snapshot.CategoryID+"/backfill", stale)
	if err != nil {
		return BackfillResult{}, err
	}

	var fixed int
	for i := range rows {
		row := &rows[i]
		volume, ok := volumes[normalizeKeyword(row.Keyword)]
		if !ok || volume <= 0 || row.IsValid() {
			continue
		}
		row.Volume = volume
		row.Status = statusForVolume(volume)
		if err := s.store.KeywordRow().Update(ctx, row); err != nil {
			return BackfillResult{Fixed: fixed}, errors.Wrapf(err, "updating row %s", row.ID)
		}
		fixed++
	}

	return BackfillResult{Fixed: fixed, Valid: countValid(rows)}, nil
}

// fetchVolumes resolves volumes for the given keywords, consulting the cache
// first and spending provider budget only on misses. Fresh results are cached
// for the next rebuild. The returned map is keyed by normalized keyword.
func (s *RebuildService) fetchVolumes(ctx context.Context, label string, keywords []string) (map[string]int64, error) {
	volumes := make(map[string]int64, len(keywords))
	var misses []string
	for _, keyword := range keywords {
		key := normalizeKeyword(keyword)
		entry, err := s.store.VolumeCache().Get(ctx, key)
		if err != nil {
			if !errors.Is(err, store.ErrRecordNotFound) {
				return nil, err
			}
			misses = append(misses, keyword)
			continue
		}
		volumes[key] = entry.Volume
	}
	if len(misses) == 0 {
		return volumes, nil
	}

	fetched, err := s.fetchFromProvider(ctx, label, misses)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for keyword, volume := range fetched {
		volumes[keyword] = volume
		entry := &model.VolumeCacheEntry{
			ID:        fmt.Sprintf("vc_%s", uuid.NewString()),
			Keyword:   keyword,
			Volume:    volume,
			FetchedAt: now,
		}
		if err := s.store.VolumeCache().Put(ctx, entry); err != nil {
			s.logger.Warnw("volume cache write failed", "keyword", keyword, "error", err)
		}
	}
	return volumes, nil
}

func (s *RebuildService) fetchFromProvider(ctx context.Context, label string, keywords []string) (map[string]int64, error) {
	var submit provider.CallResult
	_, err := s.executor.Execute(ctx, ratelimit.KindGoogle, label+"/submit", func(ctx context.Context) ratelimit.Outcome {
		submit = s.provider.SubmitVolumeTask(ctx, keywords)
		return outcomeOf(submit)
	})
	if err != nil {
		return nil, err
	}
	if !submit.OK {
		return nil, errors.Errorf("volume task rejected for %s: status=%d %s", label, submit.LogicalStatus, submit.Message)
	}

	var poll provider.CallResult
	for i := 0; i < s.maxPolls; i++ {
		_, err := s.executor.Execute(ctx, ratelimit.KindGoogle, label+"/poll", func(ctx context.Context) ratelimit.Outcome {
			poll = s.provider.PollTask(ctx, submit.TaskID)
			return outcomeOf(poll)
		})
		if err != nil {
			return nil, err
		}
		if poll.InProgress() {
			select {
			case <-time.After(s.pollInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if !poll.OK {
			return nil, errors.Errorf("volume task failed for %s: status=%d %s", label, poll.LogicalStatus, poll.Message)
		}
		result := make(map[string]int64, len(poll.Rows))
		for _, row := range poll.Rows {
			result[normalizeKeyword(row.Keyword)] = row.Volume
		}
		return result, nil
	}
	return nil, errors.Errorf("volume task %s for %s never completed", submit.TaskID, label)
}

func (s *RebuildService) writePointer(ctx context.Context, snapshot *model.Snapshot, stats model.SnapshotStats, source string) error {
	pointer := &model.IndexPointer{
		ID:               model.PointerKey(snapshot.CategoryID, snapshot.Country, snapshot.Language),
		CategoryID:       snapshot.CategoryID,
		Country:          snapshot.Country,
		Language:         snapshot.Language,
		ActiveSnapshotID: snapshot.ID,
		SnapshotStatus:   snapshot.Lifecycle,
		Totals: model.MakeJSONField(model.KeywordTotals{
			Valid:     stats.ValidTotal,
			Total:     stats.KeywordsTotal,
			Validated: stats.Validated,
			Zero:      stats.Zero,
		}),
		Source:    source,
		UpdatedAt: time.Now(),
	}
	if err := s.store.IndexPointer().Upsert(ctx, pointer); err != nil {
		return errors.Wrapf(err, "updating index pointer for %s", snapshot.CategoryID)
	}
	return nil
}

func outcomeOf(res provider.CallResult) ratelimit.Outcome {
	return ratelimit.Outcome{
		OK:          res.OK,
		Status:      res.HTTPStatus,
		RateLimited: res.RateLimited,
		Rows:        len(res.Rows),
		Err:         res.Err,
	}
}

func statusForVolume(volume int64) string {
	switch {
	case volume <= 0:
		return model.RowStatusZero
	case volume < lowVolumeThreshold:
		return model.RowStatusLow
	default:
		return model.RowStatusValid
	}
}

func intentBucketFor(keyword string) string {
	k := strings.ToLower(keyword)
	switch {
	case strings.Contains(k, "buy") || strings.Contains(k, "price") || strings.Contains(k, "online"):
		return "transactional"
	case strings.Contains(k, "best") || strings.Contains(k, "vs") || strings.Contains(k, "review"):
		return "comparative"
	case strings.Contains(k, "how") || strings.Contains(k, "what") || strings.Contains(k, "why"):
		return "informational"
	default:
		return "generic"
	}
}

// normalizeKeyword is applied to every keyword used as a lookup or cache key,
// so provider responses match seeds regardless of casing or stray whitespace.
func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

func rowInputs(rows []model.KeywordRow) []metricscalc.Input {
	inputs := make([]metricscalc.Input, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, metricscalc.Input{
			Volume:       row.Volume,
			Status:       row.Status,
			IntentBucket: row.IntentBucket,
		})
	}
	return inputs
}

func statsFromRows(rows []model.KeywordRow) model.SnapshotStats {
	stats := model.SnapshotStats{KeywordsTotal: len(rows)}
	for _, row := range rows {
		if row.IsValid() {
			stats.ValidTotal++
		}
		switch row.Status {
		case model.RowStatusValid:
			stats.Validated++
		case model.RowStatusZero:
			stats.Zero++
		}
	}
	return stats
}

func countValid(rows []model.KeywordRow) int {
	var valid int
	for _, row := range rows {
		if row.IsValid() {
			valid++
		}
	}
	return valid
}
