package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blustreamin/corpus-engine/internal/config"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	db, err := store.InitDB(config.NewDefault())
	require.NoError(t, err)

	s := store.NewStore(db)
	require.NoError(t, s.InitialMigration())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(categoryID, lifecycle string, validTotal int, createdAt time.Time) *model.Snapshot {
	return &model.Snapshot{
		ID:         fmt.Sprintf("snap_%s_%d", categoryID, createdAt.UnixNano()),
		CategoryID: categoryID,
		Country:    "IN",
		Language:   "en",
		Lifecycle:  lifecycle,
		Stats: model.MakeJSONField(model.SnapshotStats{
			ValidTotal:    validTotal,
			KeywordsTotal: validTotal,
			Validated:     validTotal,
		}),
		CreatedAt: createdAt,
	}
}
