package service

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blustreamin/corpus-engine/internal/cache"
	"github.com/blustreamin/corpus-engine/internal/store"
	"github.com/blustreamin/corpus-engine/internal/store/model"
)

// fakeCollection is an in-memory Collection that counts page fetches and can
// simulate batch delete failures.
type fakeCollection struct {
	name       string
	ids        map[string]bool
	fetchCalls int
	failBatch  bool
	poisoned   map[string]bool
}

func newFakeCollection(name string, n int) *fakeCollection {
	ids := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		ids[fmt.Sprintf("%s_%06d", name, i)] = true
	}
	return &fakeCollection{name: name, ids: ids}
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) PageIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	c.fetchCalls++
	all := make([]string, 0, len(c.ids))
	for id := range c.ids {
		if id > afterID {
			all = append(all, id)
		}
	}
	sort.Strings(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (c *fakeCollection) DeleteIDs(ctx context.Context, ids []string) error {
	if c.failBatch {
		return fmt.Errorf("batch delete rejected")
	}
	for _, id := range ids {
		delete(c.ids, id)
	}
	return nil
}

func (c *fakeCollection) DeleteID(ctx context.Context, id string) error {
	if c.poisoned[id] {
		return fmt.Errorf("row %s cannot be deleted", id)
	}
	delete(c.ids, id)
	return nil
}

func (c *fakeCollection) Count(ctx context.Context) (int64, error) {
	return int64(len(c.ids)), nil
}

// fakeFlushStore serves only what FlushAll touches; everything else panics
// through the embedded nil interface.
type fakeFlushStore struct {
	store.Store
	groups []store.Collection
	flat   []store.Collection
	audits []*model.FlushAudit
}

func (s *fakeFlushStore) RecordGroups() []store.Collection    { return s.groups }
func (s *fakeFlushStore) FlatCollections() []store.Collection { return s.flat }
func (s *fakeFlushStore) FlushAudit() store.FlushAudit        { return &fakeFlushAuditStore{parent: s} }

type fakeFlushAuditStore struct {
	store.FlushAudit
	parent *fakeFlushStore
}

func (s *fakeFlushAuditStore) Create(ctx context.Context, audit *model.FlushAudit) error {
	s.parent.audits = append(s.parent.audits, audit)
	return nil
}

func newFlushService(s store.Store, projectID string) *FlushService {
	svc := NewFlushService(s, cache.NewRuntime(), projectID, "test")
	svc.pageDelay = 0
	return svc
}

func TestFlushAllSafetyLock(t *testing.T) {
	rows := newFakeCollection("keyword_rows", 10)
	s := &fakeFlushStore{groups: []store.Collection{rows}}
	svc := newFlushService(s, "corpus-prod")

	deleted, err := svc.FlushAll(context.Background(), "FLUSH wrong-project", nil, "")
	require.Error(t, err)

	var lock *ErrSafetyLock
	require.ErrorAs(t, err, &lock)
	require.Zero(t, deleted)
	require.Zero(t, rows.fetchCalls, "a locked flush must not touch any collection")
	require.Empty(t, s.audits, "a locked flush leaves no audit record")
}

func TestFlushAllMatchingTokenUnlocks(t *testing.T) {
	rows := newFakeCollection("keyword_rows", 10)
	s := &fakeFlushStore{groups: []store.Collection{rows}}
	svc := newFlushService(s, "corpus-prod")

	deleted, err := svc.FlushAll(context.Background(), "FLUSH corpus-prod", nil, "")
	require.NoError(t, err)
	require.EqualValues(t, 10, deleted)
	require.Empty(t, rows.ids)
}

func TestFlushAllSandboxNeedsNoToken(t *testing.T) {
	rows := newFakeCollection("keyword_rows", 5)
	s := &fakeFlushStore{groups: []store.Collection{rows}}
	svc := newFlushService(s, sandboxProject)

	deleted, err := svc.FlushAll(context.Background(), "", nil, "")
	require.NoError(t, err)
	require.EqualValues(t, 5, deleted)
}

func TestFlushAllPageFetchCount(t *testing.T) {
	// 450 records at a 200 batch size: two full pages and one short one.
	rows := newFakeCollection("keyword_rows", 450)
	s := &fakeFlushStore{groups: []store.Collection{rows}}
	svc := newFlushService(s, sandboxProject)

	deleted, err := svc.FlushAll(context.Background(), "", nil, "")
	require.NoError(t, err)
	require.EqualValues(t, 450, deleted)
	require.Equal(t, 3, rows.fetchCalls)
	require.Empty(t, rows.ids)
}

func TestFlushAllExcludesRunningJob(t *testing.T) {
	jobs := newFakeCollection("jobs", 449)
	keep := "jobs_current_run"
	jobs.ids[keep] = true

	s := &fakeFlushStore{flat: []store.Collection{jobs}}
	svc := newFlushService(s, sandboxProject)

	deleted, err := svc.FlushAll(context.Background(), "", nil, keep)
	require.NoError(t, err)
	require.EqualValues(t, 449, deleted)
	require.True(t, jobs.ids[keep], "the running job's record must survive its own flush")
	require.Len(t, jobs.ids, 1)
}

func TestFlushAllSerialFallback(t *testing.T) {
	rows := newFakeCollection("keyword_rows", 30)
	rows.failBatch = true
	rows.poisoned = map[string]bool{"keyword_rows_000007": true}

	s := &fakeFlushStore{groups: []store.Collection{rows}}
	svc := newFlushService(s, sandboxProject)

	deleted, err := svc.FlushAll(context.Background(), "", nil, "")
	require.NoError(t, err, "one undeletable row must not wedge the flush")
	require.EqualValues(t, 29, deleted)
	require.Len(t, rows.ids, 1)
	require.True(t, rows.ids["keyword_rows_000007"])
}

func TestFlushAllWritesAuditRecord(t *testing.T) {
	rows := newFakeCollection("keyword_rows", 12)
	snaps := newFakeCollection("snapshots", 3)
	s := &fakeFlushStore{groups: []store.Collection{rows, snaps}}
	svc := newFlushService(s, sandboxProject)

	var progress []string
	deleted, err := svc.FlushAll(context.Background(), "", func(line string) {
		progress = append(progress, line)
	}, "")
	require.NoError(t, err)
	require.EqualValues(t, 15, deleted)

	require.Len(t, s.audits, 1)
	audit := s.audits[0]
	require.Equal(t, model.FlushStatusComplete, audit.Status)
	require.EqualValues(t, 15, audit.TotalDeleted)
	require.NotNil(t, audit.CompletedAt)
	require.NotEmpty(t, progress)
}
