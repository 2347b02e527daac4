package store_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/blustreamin/corpus-engine/internal/config"
	"github.com/blustreamin/corpus-engine/internal/store"
)

const insertKeywordRowStm = "INSERT INTO keyword_rows (id, snapshot_id, category_id, keyword, volume, status, active, created_at) VALUES ('%s', 'snap_shaving_1', 'shaving', 'kw', 100, 'VALID', TRUE, '2026-01-01 00:00:00');"

var _ = Describe("deletion collections", Ordered, func() {
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
		gormdb.Exec("DELETE from keyword_rows;")
	})

	keywordRows := func() store.Collection {
		for _, c := range s.RecordGroups() {
			if c.Name() == "keyword_rows" {
				return c
			}
		}
		Fail("keyword_rows collection not registered")
		return nil
	}

	Context("cursor pagination", func() {
		It("pages in stable id order with an exclusive cursor", func() {
			for i := 0; i < 25; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertKeywordRowStm, fmt.Sprintf("kw_%03d", i)))
				Expect(tx.Error).To(BeNil())
			}

			c := keywordRows()
			first, err := c.PageIDs(context.TODO(), "", 10)
			Expect(err).To(BeNil())
			Expect(first).To(HaveLen(10))
			Expect(first[0]).To(Equal("kw_000"))

			second, err := c.PageIDs(context.TODO(), first[len(first)-1], 10)
			Expect(err).To(BeNil())
			Expect(second).To(HaveLen(10))
			Expect(second[0]).To(Equal("kw_010"))

			third, err := c.PageIDs(context.TODO(), second[len(second)-1], 10)
			Expect(err).To(BeNil())
			Expect(third).To(HaveLen(5))
		})

		It("pagination advances even when nothing is deleted", func() {
			for i := 0; i < 6; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertKeywordRowStm, fmt.Sprintf("kw_%03d", i)))
				Expect(tx.Error).To(BeNil())
			}

			c := keywordRows()
			seen := map[string]bool{}
			cursor := ""
			for {
				page, err := c.PageIDs(context.TODO(), cursor, 2)
				Expect(err).To(BeNil())
				if len(page) == 0 {
					break
				}
				for _, id := range page {
					Expect(seen[id]).To(BeFalse(), "an id must never be served twice")
					seen[id] = true
				}
				cursor = page[len(page)-1]
			}
			Expect(seen).To(HaveLen(6))
		})
	})

	Context("deletes", func() {
		It("deletes a batch and counts what is left", func() {
			for i := 0; i < 5; i++ {
				tx := gormdb.Exec(fmt.Sprintf(insertKeywordRowStm, fmt.Sprintf("kw_%03d", i)))
				Expect(tx.Error).To(BeNil())
			}

			c := keywordRows()
			Expect(c.DeleteIDs(context.TODO(), []string{"kw_000", "kw_001", "kw_002"})).To(BeNil())

			count, err := c.Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(BeEquivalentTo(2))

			Expect(c.DeleteID(context.TODO(), "kw_003")).To(BeNil())
			count, err = c.Count(context.TODO())
			Expect(err).To(BeNil())
			Expect(count).To(BeEquivalentTo(1))
		})
	})
})
