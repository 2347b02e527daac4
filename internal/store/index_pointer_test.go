package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/config"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

var _ = Describe("index pointer store", Ordered, func() {
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
		gormdb.Exec("DELETE from index_pointers;")
	})

	newPointer := func(snapshotID string) *model.IndexPointer {
		return &model.IndexPointer{
			ID:               model.PointerKey("shaving", "IN", "en"),
			CategoryID:       "shaving",
			Country:          "IN",
			Language:         "en",
			ActiveSnapshotID: snapshotID,
			SnapshotStatus:   model.LifecycleValidated,
			Totals:           model.MakeJSONField(model.KeywordTotals{Valid: 5, Total: 10}),
			Source:           "REBUILD",
			UpdatedAt:        time.Now(),
		}
	}

	Context("upsert", func() {
		It("creates a pointer under the canonical key", func() {
			Expect(s.IndexPointer().Upsert(context.TODO(), newPointer("snap_shaving_1"))).To(BeNil())

			got, err := s.IndexPointer().Get(context.TODO(), "shaving_IN_en")
			Expect(err).To(BeNil())
			Expect(got.ActiveSnapshotID).To(Equal("snap_shaving_1"))
			Expect(got.Totals.Data.Valid).To(Equal(5))
		})

		It("a second upsert replaces the target, never duplicates the row", func() {
			Expect(s.IndexPointer().Upsert(context.TODO(), newPointer("snap_shaving_1"))).To(BeNil())

			updated := newPointer("snap_shaving_2")
			updated.Source = "INDEX_REPAIR_SAFE"
			Expect(s.IndexPointer().Upsert(context.TODO(), updated)).To(BeNil())

			pointers, err := s.IndexPointer().List(context.TODO())
			Expect(err).To(BeNil())
			Expect(pointers).To(HaveLen(1))
			Expect(pointers[0].ActiveSnapshotID).To(Equal("snap_shaving_2"))
			Expect(pointers[0].Source).To(Equal("INDEX_REPAIR_SAFE"))
		})
	})

	Context("get", func() {
		It("failed get -- pointer does not exist", func() {
			_, err := s.IndexPointer().Get(context.TODO(), "talcum_IN_en")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
