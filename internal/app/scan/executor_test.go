package scan

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/logger"
)

type executorFixture struct {
	repo     *memRepository
	guard    *fakeGuard
	lister   *fakeLister
	inferrer *fakeInferrer
	index    *fakeIndex
	executor *Executor
}

func newExecutorFixture() *executorFixture {
	f := &executorFixture{
		repo:     newMemRepository(),
		guard:    newFakeGuard(),
		lister:   &fakeLister{},
		inferrer: &fakeInferrer{},
		index:    newFakeIndex(),
	}
	f.executor = NewExecutor(f.repo, f.guard, f.lister, f.inferrer, f.index, logger.NewNop())
	return f
}

func (f *executorFixture) scanningSession(t *testing.T, items []string) *scansession.ScanSession {
	t.Helper()
	session := scansession.New()
	require.NoError(t, session.SetItems(items))
	require.NoError(t, f.repo.Create(context.Background(), session))
	return session
}

func TestExecutorRun_AllItemsSucceed(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"pods", "services", "configmaps"})

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.IsFinished())
	assert.Equal(t, 3, stored.Cursor)

	require.NotNil(t, stored.Summary)
	assert.Equal(t, 3, stored.Summary.TotalScanned)
	assert.Equal(t, 3, stored.Summary.Successful)
	assert.Equal(t, 0, stored.Summary.Failed)
	assert.False(t, stored.Summary.Stopped)

	require.NotNil(t, stored.Progress)
	assert.Equal(t, scansession.StatusCompleted, stored.Progress.Status)
	assert.Len(t, f.index.records, 3)
}

func TestExecutorRun_FailedItemDoesNotAbortBatch(t *testing.T) {
	f := newExecutorFixture()
	f.inferrer.failOn = map[string]error{"services": fmt.Errorf("model returned garbage")}
	session := f.scanningSession(t, []string{"pods", "services", "configmaps"})

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"pods", "services", "configmaps"}, f.inferrer.seen)

	require.NotNil(t, stored.Summary)
	assert.Equal(t, 2, stored.Summary.Successful)
	assert.Equal(t, 1, stored.Summary.Failed)

	require.Len(t, stored.Progress.RecentErrors, 1)
	itemErr := stored.Progress.RecentErrors[0]
	assert.Equal(t, "services", itemErr.Item)
	assert.Equal(t, 1, itemErr.Index)
	assert.Contains(t, itemErr.Message, "garbage")
	assert.Len(t, f.index.records, 2, "failed item writes nothing")
}

func TestExecutorRun_IndexWriteFailureCountsAsFailed(t *testing.T) {
	f := newExecutorFixture()
	f.index.failOn = map[string]error{"pods": fmt.Errorf("index down")}
	session := f.scanningSession(t, []string{"pods", "services"})

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Summary.Successful)
	assert.Equal(t, 1, stored.Summary.Failed)
	require.Len(t, stored.Progress.RecentErrors, 1)
	assert.Contains(t, stored.Progress.RecentErrors[0].Message, "index write failed")
}

func TestExecutorRun_ResumesFromCursor(t *testing.T) {
	f := newExecutorFixture()
	items := []string{"a", "b", "c", "d", "e"}
	session := f.scanningSession(t, items)

	// Simulate a previous run that died after fully attempting two items.
	require.NoError(t, session.RecordProgress(2, scansession.ProgressSnapshot{
		Status: scansession.StatusRunning, Current: 2, Total: 5, Successful: 2,
	}))
	require.NoError(t, f.repo.Save(context.Background(), session))

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))

	// Only the unattempted tail is processed; counters carry forward.
	assert.Equal(t, []string{"c", "d", "e"}, f.inferrer.seen)

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Summary.TotalScanned)
	assert.Equal(t, 5, stored.Summary.Successful)
}

func TestExecutorRun_StopsAtItemBoundary(t *testing.T) {
	f := newExecutorFixture()
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	session := f.scanningSession(t, items)
	f.guard.stopAfter = 4

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))

	assert.Len(t, f.inferrer.seen, 4)

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.IsFinished())
	assert.Equal(t, scansession.StatusStopped, stored.Progress.Status)
	assert.Equal(t, 4, stored.Progress.Current)
	assert.Equal(t, 10, stored.Progress.Total)
	require.NotNil(t, stored.Summary)
	assert.True(t, stored.Summary.Stopped)
	assert.Equal(t, 4, stored.Summary.TotalScanned)

	// A later status call reports the stop, mentioning how far it got.
	svc := newTestService(f.repo, f.guard, &fakeEnqueuer{})
	resp, err := svc.Step(context.Background(), StepRequest{SessionID: session.ID.String()})
	require.NoError(t, err)
	assert.True(t, resp.Stopped)
	assert.Contains(t, resp.Status, "4 of 10")
}

func TestExecutorRun_GuardBusyIsNoOp(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"a", "b"})
	f.guard.busy = true

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))
	assert.Empty(t, f.inferrer.seen)

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.IsFinished())
}

func TestExecutorRun_RedeliveryAfterCompletionIsNoOp(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"a", "b"})

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))
	writesAfterFirst := f.index.writes

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))
	assert.Equal(t, writesAfterFirst, f.index.writes)
	assert.Len(t, f.inferrer.seen, 2)
}

func TestExecutorRun_ReprocessedItemOverwritesSameRecord(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"pods"})

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))
	require.Len(t, f.index.records, 1)

	// At-least-once delivery may process an item twice across runs. The
	// record ID is derived from the item name, so the second write lands
	// on the same key.
	id := capability.RecordID("pods").String()
	_, ok := f.index.records[id]
	assert.True(t, ok)
}

func TestExecutorRun_ResolvesAllSelection(t *testing.T) {
	f := newExecutorFixture()
	f.lister.items = []string{"pods", "services"}

	session := scansession.New()
	require.NoError(t, session.ChooseAll())
	require.NoError(t, f.repo.Create(context.Background(), session))

	require.NoError(t, f.executor.Run(context.Background(), session.ID.String()))
	assert.Equal(t, 1, f.lister.calls)

	stored, err := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.Selection.All)
	assert.Equal(t, []string{"pods", "services"}, stored.Selection.Items)
	assert.Equal(t, 2, stored.Summary.Successful)
}

func TestExecutorRun_DiscoveryFailureIsFatal(t *testing.T) {
	f := newExecutorFixture()
	f.lister.err = fmt.Errorf("system unreachable")

	session := scansession.New()
	require.NoError(t, session.ChooseAll())
	require.NoError(t, f.repo.Create(context.Background(), session))

	err := f.executor.Run(context.Background(), session.ID.String())
	require.Error(t, err)
	assert.Empty(t, f.inferrer.seen)

	stored, getErr := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, getErr)
	assert.True(t, stored.IsFinished())
	assert.Equal(t, scansession.StatusFailed, stored.Progress.Status)
	require.NotNil(t, stored.Summary)
	assert.Contains(t, stored.Summary.FailureReason, "selection resolution failed")
}

func TestExecutorRun_PersistentSaveFailureAborts(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"a", "b", "c"})
	f.repo.saveErrs = 10

	err := f.executor.Run(context.Background(), session.ID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist progress")
}

func TestExecutorRun_LostLeaseAbortsRun(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"a", "b", "c", "d", "e"})
	f.guard.refreshFailAfter = 2

	// Once the lease cannot be refreshed another executor may already be
	// running; this run must abort at the boundary instead of carrying
	// on as a second concurrent writer.
	err := f.executor.Run(context.Background(), session.ID.String())
	require.ErrorIs(t, err, errGuardRefresh)
	assert.Len(t, f.inferrer.seen, 2)

	stored, getErr := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, getErr)
	assert.False(t, stored.IsFinished())
	assert.Equal(t, 2, stored.Cursor, "checkpoint survives for the surviving executor")

	// The guard is not released: the lease is no longer this run's to
	// give back.
	assert.True(t, f.guard.held[session.ID.String()])
}

func TestExecutorRun_CanceledContextLeavesSessionResumable(t *testing.T) {
	f := newExecutorFixture()
	session := f.scanningSession(t, []string{"a", "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.executor.Run(ctx, session.ID.String())
	require.ErrorIs(t, err, context.Canceled)

	stored, getErr := f.repo.Get(context.Background(), session.ID.String())
	require.NoError(t, getErr)
	assert.False(t, stored.IsFinished())
	assert.Equal(t, 0, stored.Cursor)
}
