package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/corpus"
	"github.com/blustreamin/corpus-engine/internal/ratelimit"
	"github.com/blustreamin/corpus-engine/internal/store/model"
	"github.com/blustreamin/corpus-engine/pkg/metrics"
)

var jobPhases = []string{
	model.JobPhaseIdle,
	model.JobPhasePreflight,
	model.JobPhaseFlushing,
	model.JobPhaseRebuilding,
	model.JobPhaseVerifying,
	model.JobPhaseCompleted,
}

// The orchestrator drives its collaborators through these interfaces so a run
// can be exercised end to end without a provider or a real flush.
type (
	Rebuilder interface {
		RebuildCategory(ctx context.Context, category corpus.Category) (*CategoryRebuildResult, error)
	}
	Flusher interface {
		FlushAll(ctx context.Context, token string, onProgress ProgressFunc, excludeJobID string) (int64, error)
	}
	Preflighter interface {
		Check(ctx context.Context) error
	}
	Resolver interface {
		ResolveActive(ctx context.Context, categoryID string) (*CategoryAuditResult, error)
	}
)

type RunOptions struct {
	// ResumeFromRebuild skips preflight and flush and picks the rebuild up
	// from the job's recorded progress. Used to continue PARTIAL and
	// STOPPED jobs without wiping what they already built.
	ResumeFromRebuild bool
	FlushToken        string
}

// Orchestrator executes one reset-rebuild run to completion. It is the job's
// single writer; everything that happens lands in the job record, and Run
// returns a non-nil error only when the job record itself cannot be written.
type Orchestrator struct {
	jobs           *JobService
	preflight      Preflighter
	flush          Flusher
	rebuild        Rebuilder
	resolver       Resolver
	hasCredentials func() bool
	categories     []corpus.Category
	projectID      string
	logger         *zap.SugaredLogger
}

func NewOrchestrator(
	jobs *JobService,
	preflight Preflighter,
	flush Flusher,
	rebuild Rebuilder,
	resolver Resolver,
	hasCredentials func() bool,
	categories []corpus.Category,
	projectID string,
) *Orchestrator {
	return &Orchestrator{
		jobs:           jobs,
		preflight:      preflight,
		flush:          flush,
		rebuild:        rebuild,
		resolver:       resolver,
		hasCredentials: hasCredentials,
		categories:     categories,
		projectID:      projectID,
		logger:         zap.S().Named("orchestrator"),
	}
}

func (o *Orchestrator) Run(ctx context.Context, jobID string, opts RunOptions) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	stopHeartbeat := o.jobs.StartHeartbeat(ctx, jobID)
	defer stopHeartbeat()

	if !o.hasCredentials() {
		o.log(ctx, jobID, "ERROR", "no usable provider credentials configured")
		return o.jobs.FinishJob(ctx, jobID, model.JobStatusFailed, "missing provider credentials")
	}

	if !opts.ResumeFromRebuild {
		if err := o.setPhase(ctx, jobID, model.JobPhasePreflight); err != nil {
			return err
		}
		if err := o.preflight.Check(ctx); err != nil {
			o.log(ctx, jobID, "ERROR", fmt.Sprintf("preflight failed: %v", err))
			return o.jobs.FinishJob(ctx, jobID, model.JobStatusFailed, err.Error())
		}
		o.log(ctx, jobID, "INFO", "preflight passed")

		if err := o.setPhase(ctx, jobID, model.JobPhaseFlushing); err != nil {
			return err
		}
		onProgress := func(line string) {
			_ = o.jobs.AppendLog(ctx, jobID, "INFO", line)
		}
		flushed, err := o.flush.FlushAll(ctx, opts.FlushToken, onProgress, jobID)
		if err != nil {
			o.log(ctx, jobID, "ERROR", fmt.Sprintf("flush failed after %d deletions: %v", flushed, err))
			return o.jobs.FinishJob(ctx, jobID, model.JobStatusFailed, err.Error())
		}
		// flushed counts categories cleared, not records deleted; the
		// deletion total only appears in the flush log lines.
		if err := o.jobs.UpdateProgress(ctx, jobID, func(j *model.Job) {
			ensureProgress(j).Flushed = len(o.categories)
		}); err != nil {
			return err
		}
	} else {
		o.log(ctx, jobID, "INFO", fmt.Sprintf("resuming from category %d, preflight and flush skipped", progressOf(job).Rebuilt))
	}

	if err := o.setPhase(ctx, jobID, model.JobPhaseRebuilding); err != nil {
		return err
	}

	start := 0
	if opts.ResumeFromRebuild {
		start = progressOf(job).Rebuilt
	}

	var failed []string
	for i := start; i < len(o.categories); i++ {
		category := o.categories[i]

		if err := o.jobs.AssertNotStopped(ctx, jobID); err != nil {
			var stopped *ErrJobStopped
			if errors.As(err, &stopped) {
				o.logger.Infow("run stopped by operator", "job_id", jobID, "category", category.ID)
				return nil
			}
			return err
		}

		result, err := o.rebuild.RebuildCategory(ctx, category)
		switch {
		case err != nil && (ratelimit.IsRateLimitExhausted(err) || ratelimit.IsUnavailable(err)):
			o.log(ctx, jobID, "ERROR", fmt.Sprintf("[REBUILD] %s: %v, suspending run", category.ID, err))
			return o.jobs.FinishJob(ctx, jobID, model.JobStatusPartial,
				fmt.Sprintf("suspended at category %s: %v", category.ID, err))
		case err != nil:
			failed = append(failed, category.ID)
			o.log(ctx, jobID, "ERROR", fmt.Sprintf("[REBUILD] %s: FAILED (%v), continuing", category.ID, err))
		default:
			o.log(ctx, jobID, "INFO", fmt.Sprintf("[REBUILD] %s: %s (%d keywords, %d valid)",
				category.ID, result.SnapshotID, result.Keywords, result.Valid))
		}

		if err := o.jobs.UpdateProgress(ctx, jobID, func(j *model.Job) {
			ensureProgress(j).Rebuilt = i + 1
		}); err != nil {
			return err
		}
	}

	if err := o.setPhase(ctx, jobID, model.JobPhaseVerifying); err != nil {
		return err
	}
	verified := 0
	for _, category := range o.categories {
		result, err := o.resolver.ResolveActive(ctx, category.ID)
		if err != nil {
			o.log(ctx, jobID, "ERROR", fmt.Sprintf("[VERIFY] %s: %v", category.ID, err))
			continue
		}
		if result.OK {
			verified++
		} else {
			o.log(ctx, jobID, "WARN", fmt.Sprintf("[VERIFY] %s: unresolved (%s)", category.ID, result.Reason))
		}
	}
	if err := o.jobs.UpdateProgress(ctx, jobID, func(j *model.Job) {
		ensureProgress(j).Verified = verified
	}); err != nil {
		return err
	}

	if err := o.setPhase(ctx, jobID, model.JobPhaseCompleted); err != nil {
		return err
	}

	summary := fmt.Sprintf("rebuilt %d categories, %d verified", len(o.categories)-start, verified)
	if len(failed) > 0 {
		summary += fmt.Sprintf(", failed: %s", strings.Join(failed, ", "))
	}
	o.log(ctx, jobID, "INFO", summary)
	return o.jobs.FinishJob(ctx, jobID, model.JobStatusCompleted, summary)
}

func (o *Orchestrator) setPhase(ctx context.Context, jobID, phase string) error {
	metrics.SetJobPhase(phase, jobPhases)
	return o.jobs.UpdateProgress(ctx, jobID, func(j *model.Job) {
		j.Phase = phase
		j.Status = model.JobStatusRunning
	})
}

func (o *Orchestrator) log(ctx context.Context, jobID, level, msg string) {
	o.logger.Infow(msg, "job_id", jobID)
	if err := o.jobs.AppendLog(ctx, jobID, level, msg); err != nil {
		o.logger.Warnw("failed to append job log", "job_id", jobID, "error", err)
	}
}

func progressOf(job *model.Job) model.JobProgress {
	if job.Progress == nil {
		return model.JobProgress{}
	}
	return job.Progress.Data
}

func ensureProgress(job *model.Job) *model.JobProgress {
	if job.Progress == nil {
		job.Progress = model.MakeJSONField(model.JobProgress{})
	}
	return &job.Progress.Data
}
