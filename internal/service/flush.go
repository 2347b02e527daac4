package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/cache"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
	"github.com/blustreamin/corpus-engine/pkg/metrics"
)

const (
	// flushBatchSize bounds one delete round trip.
	flushBatchSize = 200
	// flushWarningThreshold flags corpora big enough that an operator
	// probably wants a maintenance window.
	flushWarningThreshold = 500000
	// sandboxProject may always be flushed without a confirmation token.
	sandboxProject = "corpus-sandbox-dev"
)

// ProgressFunc receives human-readable progress lines during a flush. It may
// be nil.
type ProgressFunc func(line string)

type FlushService struct {
	store     store.Store
	cache     *cache.Runtime
	projectID string
	operator  string
	logger    *zap.SugaredLogger

	// pageDelay yields between pages so a flush cannot monopolize the
	// database. Tests shrink it to zero.
	pageDelay time.Duration
}

func NewFlushService(s store.Store, c *cache.Runtime, projectID, operator string) *FlushService {
	return &FlushService{
		store:     s,
		cache:     c,
		projectID: projectID,
		operator:  operator,
		logger:    zap.S().Named("flush"),
		pageDelay: 25 * time.Millisecond,
	}
}

// FlushAll deletes every record group and flat collection, in that order, and
// returns the total number of records removed. The confirmation token must be
// "FLUSH <projectID>" unless the target is the sandbox project. excludeJobID
// spares the currently running job's own record so a flush performed inside a
// job does not erase its audit trail mid-run.
func (s *FlushService) FlushAll(ctx context.Context, token string, onProgress ProgressFunc, excludeJobID string) (int64, error) {
	if s.projectID != sandboxProject && token != "FLUSH "+s.projectID {
		return 0, NewErrSafetyLock(s.projectID)
	}

	emit := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		s.logger.Info(line)
		if onProgress != nil {
			onProgress(line)
		}
	}

	audit := model.FlushAudit{
		ID:        fmt.Sprintf("flush_%s", uuid.NewString()),
		ProjectID: s.projectID,
		Operator:  s.operator,
		Status:    model.FlushStatusAborted,
		StartedAt: time.Now(),
	}

	emit("[FLUSH] starting full wipe for project %s", s.projectID)

	var total int64
	// Record groups go first so their rows are gone before the snapshots
	// and pointers that index them.
	for _, group := range append(s.store.RecordGroups(), s.store.FlatCollections()...) {
		deleted, err := s.flushCollection(ctx, group, excludeJobID, emit)
		total += deleted
		if err != nil {
			emit("[FLUSH] aborted in %s after %d deletions: %v", group.Name(), total, err)
			s.writeAudit(ctx, audit, total)
			return total, err
		}
	}

	s.cache.ResetAll("FLUSH_OP")

	audit.Status = model.FlushStatusComplete
	s.writeAudit(ctx, audit, total)

	emit("[FLUSH] complete, %d records deleted", total)
	return total, nil
}

func (s *FlushService) flushCollection(ctx context.Context, c store.Collection, excludeJobID string, emit func(string, ...any)) (int64, error) {
	count, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > flushWarningThreshold {
		emit("[FLUSH] WARNING: %s holds %d records, this will take a while", c.Name(), count)
	}

	var deleted int64
	cursor := ""
	for {
		ids, err := c.PageIDs(ctx, cursor, flushBatchSize)
		if err != nil {
			return deleted, err
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]
		shortPage := len(ids) < flushBatchSize

		if excludeJobID != "" && c.Name() == "jobs" {
			kept := ids[:0]
			for _, id := range ids {
				if id != excludeJobID {
					kept = append(kept, id)
				}
			}
			ids = kept
		}

		n, err := s.commitBatchSafe(ctx, c, ids)
		deleted += n
		if err != nil {
			return deleted, err
		}
		metrics.AddRecordsDeleted(c.Name(), int(n))
		emit("[FLUSH] %s: %d deleted", c.Name(), deleted)

		if shortPage {
			break
		}
		if s.pageDelay > 0 {
			select {
			case <-time.After(s.pageDelay):
			case <-ctx.Done():
				return deleted, ctx.Err()
			}
		}
	}
	return deleted, nil
}

// commitBatchSafe deletes a page in one statement and falls back to
// one-by-one deletion when the batch fails, so a single bad row cannot wedge
// the whole flush.
func (s *FlushService) commitBatchSafe(ctx context.Context, c store.Collection, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.DeleteIDs(ctx, ids); err == nil {
		return int64(len(ids)), nil
	}

	s.logger.Warnw("batch delete failed, retrying serially", "collection", c.Name(), "batch", len(ids))
	var deleted int64
	for _, id := range ids {
		if err := c.DeleteID(ctx, id); err != nil {
			s.logger.Warnw("record delete failed", "collection", c.Name(), "id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *FlushService) writeAudit(ctx context.Context, audit model.FlushAudit, total int64) {
	audit.TotalDeleted = total
	now := time.Now()
	audit.CompletedAt = &now
	if err := s.store.FlushAudit().Create(ctx, &audit); err != nil {
		s.logger.Warnw("failed to record flush audit", "error", err)
	}
}
