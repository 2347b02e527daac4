package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Snapshot() Snapshot
	KeywordRow() KeywordRow
	IndexPointer() IndexPointer
	FlushAudit() FlushAudit
	VolumeCache() VolumeCache

	// RecordGroups are the high-cardinality nested tables, deleted first
	// during a flush. FlatCollections are the top-level tables, deleted
	// second. Both lists are fixed and ordered.
	RecordGroups() []Collection
	FlatCollections() []Collection

	PingRead(ctx context.Context) error
	PingWrite(ctx context.Context) error
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db           *gorm.DB
	job          Job
	snapshot     Snapshot
	keywordRow   KeywordRow
	indexPointer IndexPointer
	flushAudit   FlushAudit
	volumeCache  VolumeCache
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:           db,
		job:          NewJobStore(db),
		snapshot:     NewSnapshotStore(db),
		keywordRow:   NewKeywordRowStore(db),
		indexPointer: NewIndexPointerStore(db),
		flushAudit:   NewFlushAuditStore(db),
		volumeCache:  NewVolumeCacheStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Snapshot() Snapshot {
	return s.snapshot
}

func (s *DataStore) KeywordRow() KeywordRow {
	return s.keywordRow
}

func (s *DataStore) IndexPointer() IndexPointer {
	return s.indexPointer
}

func (s *DataStore) FlushAudit() FlushAudit {
	return s.flushAudit
}

func (s *DataStore) VolumeCache() VolumeCache {
	return s.volumeCache
}

func (s *DataStore) RecordGroups() []Collection {
	return []Collection{
		newCollection(s.db, "keyword_rows", &model.KeywordRow{}),
		newCollection(s.db, "snapshots", &model.Snapshot{}),
	}
}

func (s *DataStore) FlatCollections() []Collection {
	return []Collection{
		newCollection(s.db, "index_pointers", &model.IndexPointer{}),
		newCollection(s.db, "volume_cache_entries", &model.VolumeCacheEntry{}),
		newCollection(s.db, "flush_audits", &model.FlushAudit{}),
		newCollection(s.db, "jobs", &model.Job{}),
	}
}

// PingRead verifies the store answers a trivial query.
func (s *DataStore) PingRead(ctx context.Context) error {
	var count int64
	if result := s.db.WithContext(ctx).Model(&model.Snapshot{}).Limit(1).Count(&count); result.Error != nil {
		return fmt.Errorf("store read probe: %w", result.Error)
	}
	return nil
}

// PingWrite verifies the store accepts writes by inserting and removing a
// probe row.
func (s *DataStore) PingWrite(ctx context.Context) error {
	probe := &model.VolumeCacheEntry{
		ID:        fmt.Sprintf("probe_%s", uuid.NewString()),
		Keyword:   "__write_probe__",
		FetchedAt: time.Now(),
	}
	if result := s.db.WithContext(ctx).Create(probe); result.Error != nil {
		return fmt.Errorf("store write probe: %w", result.Error)
	}
	if result := s.db.WithContext(ctx).Delete(probe); result.Error != nil {
		return fmt.Errorf("store write probe cleanup: %w", result.Error)
	}
	return nil
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Job{},
		&model.Snapshot{},
		&model.KeywordRow{},
		&model.IndexPointer{},
		&model.FlushAudit{},
		&model.VolumeCacheEntry{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
