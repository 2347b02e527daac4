package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type KeywordRow interface {
	CreateBatch(ctx context.Context, rows []model.KeywordRow) error
	Update(ctx context.Context, row *model.KeywordRow) error
	ListBySnapshot(ctx context.Context, snapshotID string) ([]model.KeywordRow, error)
}

type KeywordRowStore struct {
	db *gorm.DB
}

var _ KeywordRow = (*KeywordRowStore)(nil)

func NewKeywordRowStore(db *gorm.DB) KeywordRow {
	return &KeywordRowStore{db: db}
}

func (s *KeywordRowStore) CreateBatch(ctx context.Context, rows []model.KeywordRow) error {
	if len(rows) == 0 {
		return nil
	}
	if result := s.getDB(ctx).CreateInBatches(rows, 200); result.Error != nil {
		return fmt.Errorf("creating keyword rows: %w", result.Error)
	}
	return nil
}

func (s *KeywordRowStore) Update(ctx context.Context, row *model.KeywordRow) error {
	result := s.getDB(ctx).Save(row)
	if result.Error != nil {
		return fmt.Errorf("updating keyword row: %w", result.Error)
	}
	return nil
}

func (s *KeywordRowStore) ListBySnapshot(ctx context.Context, snapshotID string) ([]model.KeywordRow, error) {
	var rows []model.KeywordRow
	result := s.getDB(ctx).Where("snapshot_id = ?", snapshotID).Order("id").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("listing keyword rows: %w", result.Error)
	}
	return rows, nil
}

func (s *KeywordRowStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
