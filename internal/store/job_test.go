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

const insertJobStm = "INSERT INTO jobs (id, kind, scope, status, phase, started_at) VALUES ('%s', 'RESET_REBUILD', '%s', '%s', 'IDLE', '%s');"

var _ = Describe("job store", Ordered, func() {
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
		gormdb.Exec("DELETE from jobs;")
	})

	Context("create and get", func() {
		It("successfully creates a job", func() {
			job := &model.Job{
				ID:       "RESET_REBUILD_GLOBAL_1",
				Kind:     model.JobKindResetRebuild,
				Scope:    model.ScopeGlobal,
				Status:   model.JobStatusInitializing,
				Phase:    model.JobPhaseIdle,
				Progress: model.MakeJSONField(model.JobProgress{}),
			}
			Expect(s.Job().Create(context.TODO(), job)).To(BeNil())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Kind).To(Equal(model.JobKindResetRebuild))
			Expect(got.Status).To(Equal(model.JobStatusInitializing))
		})

		It("failed get -- job does not exist", func() {
			_, err := s.Job().Get(context.TODO(), "RESET_REBUILD_GLOBAL_missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("update", func() {
		It("persists progress and logs round-trip", func() {
			job := &model.Job{
				ID:     "RESET_REBUILD_GLOBAL_2",
				Kind:   model.JobKindResetRebuild,
				Scope:  model.ScopeGlobal,
				Status: model.JobStatusRunning,
				Phase:  model.JobPhaseRebuilding,
			}
			Expect(s.Job().Create(context.TODO(), job)).To(BeNil())

			job.Progress = model.MakeJSONField(model.JobProgress{Flushed: 15, Rebuilt: 7})
			job.Logs = model.MakeJSONField([]string{"line one", "line two"})
			Expect(s.Job().Update(context.TODO(), job)).To(BeNil())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Progress.Data.Flushed).To(Equal(15))
			Expect(got.Progress.Data.Rebuilt).To(Equal(7))
			Expect(got.Logs.Data).To(HaveLen(2))
			Expect(got.UpdatedAt).ToNot(BeNil())
		})
	})

	Context("touch", func() {
		It("bumps updated_at and nothing else", func() {
			job := &model.Job{
				ID:       "RESET_REBUILD_GLOBAL_3",
				Kind:     model.JobKindResetRebuild,
				Scope:    model.ScopeGlobal,
				Status:   model.JobStatusRunning,
				Phase:    model.JobPhaseRebuilding,
				Progress: model.MakeJSONField(model.JobProgress{Rebuilt: 4}),
			}
			Expect(s.Job().Create(context.TODO(), job)).To(BeNil())

			Expect(s.Job().Touch(context.TODO(), job.ID)).To(BeNil())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.UpdatedAt).ToNot(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusRunning))
			Expect(got.Progress.Data.Rebuilt).To(Equal(4))
		})

		It("failed touch -- job does not exist", func() {
			Expect(s.Job().Touch(context.TODO(), "RESET_REBUILD_GLOBAL_missing")).
				To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("latest for scope", func() {
		It("returns the most recently started job", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "RESET_REBUILD_GLOBAL_old", "GLOBAL", "COMPLETED", "2026-01-01 00:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, "RESET_REBUILD_GLOBAL_new", "GLOBAL", "RUNNING", "2026-02-01 00:00:00"))
			Expect(tx.Error).To(BeNil())

			got, err := s.Job().LatestForScope(context.TODO(), model.ScopeGlobal)
			Expect(err).To(BeNil())
			Expect(got.ID).To(Equal("RESET_REBUILD_GLOBAL_new"))
		})

		It("ignores other scopes", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, "RESET_REBUILD_shaving_1", "shaving", "RUNNING", "2026-02-01 00:00:00"))
			Expect(tx.Error).To(BeNil())

			_, err := s.Job().LatestForScope(context.TODO(), model.ScopeGlobal)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
