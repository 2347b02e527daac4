package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type IndexPointer interface {
	Get(ctx context.Context, key string) (*model.IndexPointer, error)
	// Upsert merge-writes the pointer: existing columns not carried by the
	// update survive. This is the only write path for pointers.
	Upsert(ctx context.Context, pointer *model.IndexPointer) error
	List(ctx context.Context) ([]model.IndexPointer, error)
}

type IndexPointerStore struct {
	db *gorm.DB
}

var _ IndexPointer = (*IndexPointerStore)(nil)

func NewIndexPointerStore(db *gorm.DB) IndexPointer {
	return &IndexPointerStore{db: db}
}

func (s *IndexPointerStore) Get(ctx context.Context, key string) (*model.IndexPointer, error) {
	var pointer model.IndexPointer
	result := s.getDB(ctx).First(&pointer, "id = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying index pointer: %w", result.Error)
	}
	return &pointer, nil
}

func (s *IndexPointerStore) Upsert(ctx context.Context, pointer *model.IndexPointer) error {
	pointer.UpdatedAt = time.Now()

	result := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"active_snapshot_id", "snapshot_status", "totals", "source", "updated_at",
		}),
	}).Create(pointer)
	if result.Error != nil {
		return fmt.Errorf("upserting index pointer: %w", result.Error)
	}
	return nil
}

func (s *IndexPointerStore) List(ctx context.Context) ([]model.IndexPointer, error) {
	var pointers []model.IndexPointer
	if result := s.getDB(ctx).Order("id").Find(&pointers); result.Error != nil {
		return nil, fmt.Errorf("listing index pointers: %w", result.Error)
	}
	return pointers, nil
}

func (s *IndexPointerStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
