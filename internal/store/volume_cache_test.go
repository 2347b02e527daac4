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

var _ = Describe("volume cache store", Ordered, func() {
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
		gormdb.Exec("DELETE from volume_cache_entries;")
	})

	Context("put and get", func() {
		It("round-trips an entry by keyword", func() {
			Expect(s.VolumeCache().Put(context.TODO(), &model.VolumeCacheEntry{
				ID: "vc_1", Keyword: "razor", Volume: 5000, FetchedAt: time.Now(),
			})).To(BeNil())

			got, err := s.VolumeCache().Get(context.TODO(), "razor")
			Expect(err).To(BeNil())
			Expect(got.Volume).To(BeEquivalentTo(5000))
		})

		It("a repeat put for one keyword refreshes its row, never duplicates it", func() {
			Expect(s.VolumeCache().Put(context.TODO(), &model.VolumeCacheEntry{
				ID: "vc_1", Keyword: "razor", Volume: 5000, FetchedAt: time.Now(),
			})).To(BeNil())
			Expect(s.VolumeCache().Put(context.TODO(), &model.VolumeCacheEntry{
				ID: "vc_2", Keyword: "razor", Volume: 7500, FetchedAt: time.Now(),
			})).To(BeNil())

			var count int64
			Expect(gormdb.Model(&model.VolumeCacheEntry{}).Where("keyword = ?", "razor").Count(&count).Error).To(BeNil())
			Expect(count).To(BeEquivalentTo(1))

			got, err := s.VolumeCache().Get(context.TODO(), "razor")
			Expect(err).To(BeNil())
			Expect(got.Volume).To(BeEquivalentTo(7500))
		})

		It("failed get -- keyword not cached", func() {
			_, err := s.VolumeCache().Get(context.TODO(), "talcum powder")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
