package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// Job interface for orchestration job records.
type Job interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	Touch(ctx context.Context, id string) error
	LatestForScope(ctx context.Context, scope string) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter) ([]model.Job, error)
}

type JobStore struct {
	db *gorm.DB
}

var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	if result := s.getDB(ctx).Create(job); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating job: %w", result.Error)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, job *model.Job) error {
	now := time.Now()
	job.UpdatedAt = &now

	result := s.getDB(ctx).Save(job)
	if result.Error != nil {
		return fmt.Errorf("updating job: %w", result.Error)
	}
	return nil
}

// Touch bumps updated_at without rewriting the row, so a liveness heartbeat
// cannot clobber a concurrent mutation of the job record.
func (s *JobStore) Touch(ctx context.Context, id string) error {
	now := time.Now()
	result := s.getDB(ctx).Model(&model.Job{}).Where("id = ?", id).Update("updated_at", &now)
	if result.Error != nil {
		return fmt.Errorf("touching job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) LatestForScope(ctx context.Context, scope string) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).Where("scope = ?", scope).Order("started_at DESC").First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying latest job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter) ([]model.Job, error) {
	var jobs []model.Job
	tx := s.getDB(ctx).Model(&model.Job{}).Order("started_at DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, fmt.Errorf("listing jobs: %w", result.Error)
	}
	return jobs, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
