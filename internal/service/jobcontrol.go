package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

const heartbeatInterval = 3 * time.Second

// JobService owns the durable job records. A job has exactly one writer: the
// orchestrator run holding its id. Observers read job snapshots through the
// same service but never mutate them.
type JobService struct {
	store  store.Store
	logger *zap.SugaredLogger
}

func NewJobService(s store.Store) *JobService {
	return &JobService{
		store:  s,
		logger: zap.S().Named("jobctrl"),
	}
}

func (s *JobService) StartJob(ctx context.Context, kind, scope, message string) (*model.Job, error) {
	now := time.Now()
	job := &model.Job{
		ID:        fmt.Sprintf("%s_%s_%d", kind, scope, now.UnixMilli()),
		Kind:      kind,
		Scope:     scope,
		Status:    model.JobStatusInitializing,
		Phase:     model.JobPhaseIdle,
		Message:   message,
		Progress:  model.MakeJSONField(model.JobProgress{}),
		Logs:      model.MakeJSONField([]string{}),
		StartedAt: now,
	}
	if err := s.store.Job().Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Infow("job started", "job_id", job.ID, "kind", kind, "scope", scope)
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

// UpdateProgress applies mutate to the current job record and persists it.
// The read-modify-write runs inside one store transaction; without it, two
// concurrent writers each save a whole row and the later save silently drops
// the earlier one's changes.
func (s *JobService) UpdateProgress(ctx context.Context, id string, mutate func(*model.Job)) error {
	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	job, err := s.GetJob(txCtx, id)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return err
	}
	mutate(job)
	if err := s.store.Job().Update(txCtx, job); err != nil {
		_, _ = store.Rollback(txCtx)
		return err
	}
	_, err = store.Commit(txCtx)
	return err
}

// AppendLog adds one timestamped, leveled line to the job's capped log ring.
func (s *JobService) AppendLog(ctx context.Context, id, level, msg string) error {
	line := fmt.Sprintf("[%s] [%s] %s", time.Now().UTC().Format(time.RFC3339), level, msg)
	return s.UpdateProgress(ctx, id, func(job *model.Job) {
		logs := []string{}
		if job.Logs != nil {
			logs = job.Logs.Data
		}
		logs = append(logs, line)
		if len(logs) > model.JobLogCap {
			logs = logs[len(logs)-model.JobLogCap:]
		}
		job.Logs = model.MakeJSONField(logs)
	})
}

func (s *JobService) FinishJob(ctx context.Context, id, status, message string) error {
	now := time.Now()
	err := s.UpdateProgress(ctx, id, func(job *model.Job) {
		job.Status = status
		job.Message = message
		job.CompletedAt = &now
		if status == model.JobStatusFailed {
			job.Error = message
		}
	})
	if err != nil {
		return err
	}

	s.logger.Infow("job finished", "job_id", id, "status", status, "message", message)
	return nil
}

// RequestStop flags a running job for cancellation. The run picks the flag up
// at its next between-category check; in-flight provider calls are not
// interrupted.
func (s *JobService) RequestStop(ctx context.Context, id string) error {
	return s.UpdateProgress(ctx, id, func(job *model.Job) {
		job.StopRequested = true
		job.Status = model.JobStatusStopRequested
	})
}

// AssertNotStopped returns ErrJobStopped when the job was externally stopped
// or failed, resolving a pending stop request to STOPPED on the way.
func (s *JobService) AssertNotStopped(ctx context.Context, id string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.StopRequested || job.Status == model.JobStatusStopped || job.Status == model.JobStatusFailed {
		if job.Status == model.JobStatusStopRequested {
			if err := s.FinishJob(ctx, id, model.JobStatusStopped, "stopped by operator"); err != nil {
				return err
			}
		}
		return NewErrJobStopped(id)
	}
	return nil
}

func (s *JobService) LatestForScope(ctx context.Context, scope string) (*model.Job, error) {
	job, err := s.store.Job().LatestForScope(ctx, scope)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

// StartHeartbeat bumps the job's updated_at on a jittered ticker so observers
// can tell a live run from an abandoned one. It writes only that column; the
// rest of the row belongs to the run's own writes. The returned function
// stops it.
func (s *JobService) StartHeartbeat(ctx context.Context, id string) func() {
	ticker := jitterbug.New(heartbeatInterval, &jitterbug.Norm{Stdev: 300 * time.Millisecond})
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				if err := s.store.Job().Touch(ctx, id); err != nil {
					s.logger.Warnw("heartbeat failed", "job_id", id, "error", err)
				}
			}
		}
	}()

	return func() { close(done) }
}
