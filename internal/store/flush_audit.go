package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type FlushAudit interface {
	Create(ctx context.Context, audit *model.FlushAudit) error
	Get(ctx context.Context, id string) (*model.FlushAudit, error)
}

type FlushAuditStore struct {
	db *gorm.DB
}

var _ FlushAudit = (*FlushAuditStore)(nil)

func NewFlushAuditStore(db *gorm.DB) FlushAudit {
	return &FlushAuditStore{db: db}
}

func (s *FlushAuditStore) Create(ctx context.Context, audit *model.FlushAudit) error {
	if result := s.getDB(ctx).Create(audit); result.Error != nil {
		return fmt.Errorf("creating flush audit: %w", result.Error)
	}
	return nil
}

func (s *FlushAuditStore) Get(ctx context.Context, id string) (*model.FlushAudit, error) {
	var audit model.FlushAudit
	result := s.getDB(ctx).First(&audit, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying flush audit: %w", result.Error)
	}
	return &audit, nil
}

func (s *FlushAuditStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
