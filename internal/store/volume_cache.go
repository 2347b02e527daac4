package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type VolumeCache interface {
	Get(ctx context.Context, keyword string) (*model.VolumeCacheEntry, error)
	Put(ctx context.Context, entry *model.VolumeCacheEntry) error
}

type VolumeCacheStore struct {
	db *gorm.DB
}

var _ VolumeCache = (*VolumeCacheStore)(nil)

func NewVolumeCacheStore(db *gorm.DB) VolumeCache {
	return &VolumeCacheStore{db: db}
}

func (s *VolumeCacheStore) Get(ctx context.Context, keyword string) (*model.VolumeCacheEntry, error) {
	var entry model.VolumeCacheEntry
	result := s.getDB(ctx).First(&entry, "keyword = ?", keyword)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying volume cache: %w", result.Error)
	}
	return &entry, nil
}

func (s *VolumeCacheStore) Put(ctx context.Context, entry *model.VolumeCacheEntry) error {
	// keyword is the logical key; refreshing a cached keyword must update
	// its row, not grow a duplicate under a fresh id
	result := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "keyword"}},
		DoUpdates: clause.AssignmentColumns([]string{"volume", "fetched_at"}),
	}).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("writing volume cache: %w", result.Error)
	}
	return nil
}

func (s *VolumeCacheStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
