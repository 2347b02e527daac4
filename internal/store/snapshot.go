package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type Snapshot interface {
	Create(ctx context.Context, snapshot *model.Snapshot) error
	Get(ctx context.Context, id string) (*model.Snapshot, error)
	Update(ctx context.Context, snapshot *model.Snapshot) error
	List(ctx context.Context, filter *SnapshotQueryFilter) ([]model.Snapshot, error)
}

type SnapshotStore struct {
	db *gorm.DB
}

var _ Snapshot = (*SnapshotStore)(nil)

func NewSnapshotStore(db *gorm.DB) Snapshot {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Create(ctx context.Context, snapshot *model.Snapshot) error {
	if result := s.getDB(ctx).Create(snapshot); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating snapshot: %w", result.Error)
	}
	return nil
}

func (s *SnapshotStore) Get(ctx context.Context, id string) (*model.Snapshot, error) {
	var snapshot model.Snapshot
	result := s.getDB(ctx).First(&snapshot, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", result.Error)
	}
	return &snapshot, nil
}

func (s *SnapshotStore) Update(ctx context.Context, snapshot *model.Snapshot) error {
	result := s.getDB(ctx).Save(snapshot)
	if result.Error != nil {
		return fmt.Errorf("updating snapshot: %w", result.Error)
	}
	return nil
}

func (s *SnapshotStore) List(ctx context.Context, filter *SnapshotQueryFilter) ([]model.Snapshot, error) {
	var snapshots []model.Snapshot
	tx := s.getDB(ctx).Model(&model.Snapshot{})

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&snapshots); result.Error != nil {
		return nil, fmt.Errorf("listing snapshots: %w", result.Error)
	}
	return snapshots, nil
}

func (s *SnapshotStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
