package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Collection is the deletion engine's view of one table: stable-ordered id
// pages with an explicit start-after cursor, batch deletes, and a single-item
// fallback for when a batch fails.
type Collection interface {
	Name() string
	PageIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	DeleteIDs(ctx context.Context, ids []string) error
	DeleteID(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type gormCollection struct {
	db    *gorm.DB
	name  string
	model any
}

var _ Collection = (*gormCollection)(nil)

func newCollection(db *gorm.DB, name string, model any) Collection {
	return &gormCollection{db: db, name: name, model: model}
}

func (c *gormCollection) Name() string {
	return c.name
}

func (c *gormCollection) PageIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	tx := c.getDB(ctx).Model(c.model).Order("id").Limit(limit)
	if afterID != "" {
		tx = tx.Where("id > ?", afterID)
	}
	if result := tx.Pluck("id", &ids); result.Error != nil {
		return nil, fmt.Errorf("paging ids of %s: %w", c.name, result.Error)
	}
	return ids, nil
}

func (c *gormCollection) DeleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if result := c.getDB(ctx).Delete(c.model, "id IN ?", ids); result.Error != nil {
		return fmt.Errorf("batch deleting from %s: %w", c.name, result.Error)
	}
	return nil
}

func (c *gormCollection) DeleteID(ctx context.Context, id string) error {
	if result := c.getDB(ctx).Delete(c.model, "id = ?", id); result.Error != nil {
		return fmt.Errorf("deleting %s from %s: %w", id, c.name, result.Error)
	}
	return nil
}

func (c *gormCollection) Count(ctx context.Context) (int64, error) {
	var count int64
	if result := c.getDB(ctx).Model(c.model).Count(&count); result.Error != nil {
		return 0, fmt.Errorf("counting %s: %w", c.name, result.Error)
	}
	return count, nil
}

func (c *gormCollection) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return c.db
}
