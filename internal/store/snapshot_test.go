package store_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/config"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

const insertSnapshotStm = "INSERT INTO snapshots (id, category_id, country, language, lifecycle, created_at) VALUES ('%s', '%s', 'IN', 'en', '%s', '%s');"

var _ = Describe("snapshot store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from snapshots;")
	})

	Context("list", func() {
		It("filters by category", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertSnapshotStm, "snap_shaving_1", "shaving", "DRAFT", "2026-01-01 00:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertSnapshotStm, "snap_beard_1", "beard", "DRAFT", "2026-01-01 00:00:00"))
			Expect(tx.Error).To(BeNil())

			snapshots, err := s.Snapshot().List(context.TODO(), store.NewSnapshotQueryFilter().ByCategory("shaving"))
			Expect(err).To(BeNil())
			Expect(snapshots).To(HaveLen(1))
			Expect(snapshots[0].ID).To(Equal("snap_shaving_1"))
		})

		It("orders newest first and honors the limit", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertSnapshotStm, "snap_shaving_old", "shaving", "DRAFT", "2026-01-01 00:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertSnapshotStm, "snap_shaving_new", "shaving", "VALIDATED", "2026-02-01 00:00:00"))
			Expect(tx.Error).To(BeNil())

			snapshots, err := s.Snapshot().List(context.TODO(),
				store.NewSnapshotQueryFilter().ByCategory("shaving").NewestFirst().WithLimit(1))
			Expect(err).To(BeNil())
			Expect(snapshots).To(HaveLen(1))
			Expect(snapshots[0].ID).To(Equal("snap_shaving_new"))
		})
	})

	Context("stats round trip", func() {
		It("persists embedded stats as json", func() {
			snapshot := &model.Snapshot{
				ID:         "snap_shaving_stats",
				CategoryID: "shaving",
				Country:    "IN",
				Language:   "en",
				Lifecycle:  model.LifecycleValidated,
				Stats: model.MakeJSONField(model.SnapshotStats{
					ValidTotal:    12,
					KeywordsTotal: 20,
					Validated:     12,
					Zero:          8,
				}),
			}
			Expect(s.Snapshot().Create(context.TODO(), snapshot)).To(BeNil())

			got, err := s.Snapshot().Get(context.TODO(), snapshot.ID)
			Expect(err).To(BeNil())
			Expect(got.Stats.Data.ValidTotal).To(Equal(12))
			Expect(got.Stats.Data.Zero).To(Equal(8))
		})
	})
})
