package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// scanCap bounds the fallback snapshot scan so a huge corpus cannot turn one
// audit into a full table read.
const scanCap = 200

// How a category's snapshot was resolved.
const (
	SourceIndexPointer = "INDEX_POINTER"
	SourceSnapshotScan = "SNAPSHOT_SCAN"
	SourceNone         = "NONE"
)

type Verdict string

const (
	VerdictEmptyDB       Verdict = "EMPTY_DB"
	VerdictReadyForReset Verdict = "READY_FOR_RESET"
	VerdictNoGo          Verdict = "NO_GO"
)

type CategoryAuditResult struct {
	CategoryID   string `json:"categoryId"`
	OK           bool   `json:"ok"`
	Source       string `json:"source"`
	SnapshotID   string `json:"snapshotId,omitempty"`
	Lifecycle    string `json:"lifecycle"`
	Valid        int    `json:"valid"`
	CreatedAtIso string `json:"createdAtIso,omitempty"`
	Reason       string `json:"reason"`
}

// AuditReport aggregates the per-category results. Verdict is always a pure
// projection of Categories and Errors; nothing ever stores it independently.
type AuditReport struct {
	Timestamp  time.Time             `json:"ts"`
	ProjectID  string                `json:"projectId"`
	Categories []CategoryAuditResult `json:"categories"`
	Verdict    Verdict               `json:"verdict"`
	Errors     []string              `json:"errors"`
}

type AuditService struct {
	store     store.Store
	projectID string
	logger    *zap.SugaredLogger
}

func NewAuditService(s store.Store, projectID string) *AuditService {
	return &AuditService{
		store:     s,
		projectID: projectID,
		logger:    zap.S().Named("audit"),
	}
}

// RunAudit resolves the authoritative snapshot for every category and derives
// the go/no-go verdict for a reset. An error in one category never aborts the
// others; it is recorded and forces NO_GO at the end.
func (s *AuditService) RunAudit(ctx context.Context, categoryIDs []string) *AuditReport {
	report := &AuditReport{
		Timestamp: time.Now(),
		ProjectID: s.projectID,
	}

	for _, categoryID := range categoryIDs {
		result, err := s.ResolveActive(ctx, categoryID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("[%s] %v", categoryID, err))
			result = &CategoryAuditResult{
				CategoryID: categoryID,
				Source:     SourceNone,
				Lifecycle:  model.LifecycleUnknown,
				Reason:     fmt.Sprintf("error: %v", err),
			}
		}
		report.Categories = append(report.Categories, *result)
	}

	report.Verdict = DeriveVerdict(report.Categories, report.Errors)

	found := 0
	for _, c := range report.Categories {
		if c.Source != SourceNone {
			found++
		}
	}
	s.logger.Infow("audit complete", "verdict", report.Verdict, "found", found, "errors", len(report.Errors))
	return report
}

// ResolveActive resolves one category's authoritative snapshot: index pointer
// first, then a direct fetch of the pointed-at snapshot, then a bounded
// ranked scan. The first success short-circuits the rest.
func (s *AuditService) ResolveActive(ctx context.Context, categoryID string) (*CategoryAuditResult, error) {
	result := &CategoryAuditResult{
		CategoryID: categoryID,
		Source:     SourceNone,
		Lifecycle:  model.LifecycleUnknown,
		Reason:     "start",
	}

	// 1. index pointer lookup
	key := model.PointerKey(categoryID, corpus.DefaultCountry, corpus.DefaultLanguage)
	pointer, err := s.store.IndexPointer().Get(ctx, key)
	switch {
	case err != nil && !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	case err != nil:
		result.Reason = "no index pointer"
	case !model.IsWellFormedSnapshotID(pointer.ActiveSnapshotID):
		result.Reason = fmt.Sprintf("poisoned pointer %q ignored", pointer.ActiveSnapshotID)
	default:
		// 2. direct snapshot fetch
		snapshot, err := s.store.Snapshot().Get(ctx, pointer.ActiveSnapshotID)
		switch {
		case err != nil && !errors.Is(err, store.ErrRecordNotFound):
			return nil, err
		case err != nil:
			result.Reason = "index pointer dangling"
		default:
			fillFromSnapshot(result, snapshot)
			result.Source = SourceIndexPointer
			result.OK = true
			result.Reason = "found via index pointer"
			return result, nil
		}
	}

	// 3. fallback scan with ranked candidate selection
	candidates, err := s.store.Snapshot().List(ctx,
		store.NewSnapshotQueryFilter().ByCategory(categoryID).WithLimit(scanCap))
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if !model.IsDiagnosticSnapshotID(c.ID) {
			kept = append(kept, c)
		}
	}

	if len(kept) == 0 {
		result.Reason = "no snapshots found in scan"
		return result, nil
	}

	best := SelectBestCandidate(kept)
	fillFromSnapshot(result, &best)
	result.Source = SourceSnapshotScan
	result.OK = true
	result.Reason = "found via snapshot scan"
	return result, nil
}

// SelectBestCandidate ranks snapshots by certification lifecycle (more
// certified wins) with creation recency as the tiebreak, and returns the top
// one. The sort is stable so equal candidates keep their scan order.
func SelectBestCandidate(candidates []model.Snapshot) model.Snapshot {
	ranked := make([]model.Snapshot, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := model.LifecycleRank(ranked[i].Lifecycle), model.LifecycleRank(ranked[j].Lifecycle)
		if ri != rj {
			return ri < rj
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return ranked[0]
}

// DeriveVerdict is the only way a verdict comes into being. Internal errors
// take precedence over everything; then an entirely unresolvable corpus is
// EMPTY_DB; anything else is ready for a reset.
func DeriveVerdict(categories []CategoryAuditResult, internalErrors []string) Verdict {
	if len(internalErrors) > 0 {
		return VerdictNoGo
	}
	for _, c := range categories {
		if c.Source != SourceNone {
			return VerdictReadyForReset
		}
	}
	return VerdictEmptyDB
}

func fillFromSnapshot(result *CategoryAuditResult, snapshot *model.Snapshot) {
	result.SnapshotID = snapshot.ID
	result.Lifecycle = snapshot.Lifecycle
	if snapshot.Stats != nil {
		result.Valid = snapshot.Stats.Data.ValidTotal
	}
	result.CreatedAtIso = snapshot.CreatedAt.UTC().Format(time.RFC3339)
}
