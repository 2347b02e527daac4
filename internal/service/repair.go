package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/ratelimit"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// pointerRepairSource marks pointer writes made by the repair pass, so a later
// audit can tell a repaired pointer from one written by a rebuild.
const pointerRepairSource = "INDEX_REPAIR_SAFE"

// Backfiller covers the rebuild operations the repair pass leans on.
type Backfiller interface {
	EnsureDraft(ctx context.Context, categoryID string) (*model.Snapshot, error)
	BackfillMinimumValidation(ctx context.Context, snapshot *model.Snapshot) (BackfillResult, error)
}

type RepairService struct {
	store      store.Store
	backfiller Backfiller
	logger     *zap.SugaredLogger
}

func NewRepairService(s store.Store, b Backfiller) *RepairService {
	return &RepairService{
		store:      s,
		backfiller: b,
		logger:     zap.S().Named("repair"),
	}
}

// Repair walks an audit report category by category and patches what it can:
// categories with no snapshot get a draft, snapshots with zero valid rows get
// a backfill attempt, and only a snapshot proven to hold valid rows earns an
// index pointer. Categories are repaired sequentially so one category's rate
// budget spend is visible to the next. A spent provider budget aborts the
// remainder of the run; any other failure skips just its category.
func (s *RepairService) Repair(ctx context.Context, report *AuditReport) []string {
	var lines []string
	emit := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		s.logger.Info(line)
		lines = append(lines, line)
	}

	for _, result := range report.Categories {
		if err := s.repairCategory(ctx, result, emit); err != nil {
			if ratelimit.IsRateLimitExhausted(err) || ratelimit.IsUnavailable(err) {
				emit("[REPAIR] %s: provider budget spent (%v), aborting remaining categories", result.CategoryID, err)
				break
			}
			emit("[REPAIR] %s: FAILED (%v), continuing", result.CategoryID, err)
		}
	}
	return lines
}

func (s *RepairService) repairCategory(ctx context.Context, result CategoryAuditResult, emit func(string, ...any)) error {
	if result.SnapshotID != "" && model.IsDiagnosticSnapshotID(result.SnapshotID) {
		emit("[REPAIR] %s: SKIP diagnostic snapshot %s", result.CategoryID, result.SnapshotID)
		return nil
	}

	var snapshot *model.Snapshot
	var err error
	if result.Source == SourceNone {
		snapshot, err = s.backfiller.EnsureDraft(ctx, result.CategoryID)
		if err != nil {
			return err
		}
		emit("[REPAIR] %s: anchored on %s", result.CategoryID, snapshot.ID)
	} else {
		snapshot, err = s.store.Snapshot().Get(ctx, result.SnapshotID)
		if err != nil {
			return err
		}
	}

	rows, err := s.store.KeywordRow().ListBySnapshot(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	validTotal := countValid(rows)

	if validTotal == 0 {
		backfill, err := s.backfiller.BackfillMinimumValidation(ctx, snapshot)
		if err != nil {
			return err
		}
		if backfill.Fixed == 0 {
			emit("[REPAIR] %s: SKIP, backfill fixed nothing, leaving unrepaired", result.CategoryID)
			return nil
		}
		validTotal = backfill.Valid
		emit("[REPAIR] %s: backfill fixed %d rows, %d valid", result.CategoryID, backfill.Fixed, validTotal)

		rows, err = s.store.KeywordRow().ListBySnapshot(ctx, snapshot.ID)
		if err != nil {
			return err
		}
	}

	if err := s.normalizeStats(ctx, snapshot, rows); err != nil {
		return err
	}

	// The pointer is written only after the snapshot is known to be sound.
	pointer := &model.IndexPointer{
		ID:               model.PointerKey(snapshot.CategoryID, snapshot.Country, snapshot.Language),
		CategoryID:       snapshot.CategoryID,
		Country:          snapshot.Country,
		Language:         snapshot.Language,
		ActiveSnapshotID: snapshot.ID,
		SnapshotStatus:   snapshot.Lifecycle,
		Totals: model.MakeJSONField(model.KeywordTotals{
			Valid:     validTotal,
			Total:     len(rows),
			Validated: countByStatus(rows, model.RowStatusValid),
			Zero:      countByStatus(rows, model.RowStatusZero),
		}),
		Source:    pointerRepairSource,
		UpdatedAt: time.Now(),
	}
	if err := s.store.IndexPointer().Upsert(ctx, pointer); err != nil {
		return err
	}

	emit("[REPAIR] %s: pointer -> %s (%d valid)", result.CategoryID, snapshot.ID, validTotal)
	return nil
}

// normalizeStats rewrites the snapshot's embedded stats when they disagree
// with the rows actually stored under it.
func (s *RepairService) normalizeStats(ctx context.Context, snapshot *model.Snapshot, rows []model.KeywordRow) error {
	actual := statsFromRows(rows)
	if snapshot.Stats != nil && snapshot.Stats.Data == actual {
		return nil
	}
	snapshot.Stats = model.MakeJSONField(actual)
	if err := s.store.Snapshot().Update(ctx, snapshot); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func countByStatus(rows []model.KeywordRow, status string) int {
	var n int
	for _, row := range rows {
		if row.Status == status {
			n++
		}
	}
	return n
}
