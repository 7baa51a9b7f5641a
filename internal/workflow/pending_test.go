package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

func TestPendingQueueFIFO(t *testing.T) {
	q := newPendingQueue()
	a := &pendingEntry{entity: newTestEntity("a", "A")}
	b := &pendingEntry{entity: newTestEntity("b", "B")}
	c := &pendingEntry{entity: newTestEntity("c", "C")}

	q.put(a)
	q.put(b)
	q.put(c)
	assert.Equal(t, []string{"a", "b", "c"}, q.ids())

	// Replacing keeps the original position.
	q.put(&pendingEntry{entity: newTestEntity("a", "A"), processID: "proc-2"})
	assert.Equal(t, []string{"a", "b", "c"}, q.ids())
	got, ok := q.get("a")
	require.True(t, ok)
	assert.Equal(t, "proc-2", got.processID)

	q.remove("b")
	assert.Equal(t, []string{"a", "c"}, q.ids())
	assert.Equal(t, 2, q.len())

	assert.Equal(t, "a", q.next().entity.ID)
	assert.Equal(t, "c", q.next().entity.ID)
	assert.Nil(t, q.next())
}

func TestActivateNext(t *testing.T) {
	o, gw, _ := newTestOrchestrator(Config{})
	active := newTestEntity("bank-1", "Active Bank")
	waiting := newTestEntity("bank-2", "Waiting Bank")

	gw.QueueFetch("bank-1", &model.FetchResult{
		Code:    model.CodeCodeRequested,
		Details: &model.FetchDetails{ProcessID: "proc-1"},
	})
	gw.QueueFetch("bank-2", &model.FetchResult{
		Code:    model.CodeCodeRequested,
		Details: &model.FetchDetails{ProcessID: "proc-2"},
	})

	ctx := context.Background()
	require.NoError(t, o.Scrape(ctx, active, []model.Feature{model.FeaturePosition}, service.FetchOptions{}))
	require.NoError(t, o.Scrape(ctx, waiting, []model.Feature{model.FeatureTransactions}, service.FetchOptions{}))

	// The user abandons the active prompt and moves on.
	o.ResetState(ResetOptions{})
	require.True(t, o.ActivateNext())

	assert.Equal(t, "bank-2", o.SelectedEntity().ID)
	assert.Equal(t, "proc-2", o.ProcessID())
	assert.True(t, o.PinRequired())
	assert.Empty(t, o.PendingEntityIDs())

	assert.False(t, o.ActivateNext(), "queue drained")
}

func TestSwitchActive(t *testing.T) {
	o, gw, _ := newTestOrchestrator(Config{})
	active := newTestEntity("bank-1", "Active Bank")
	second := newTestEntity("bank-2", "Second Bank")
	third := newTestEntity("bank-3", "Third Bank")

	for i, e := range []*model.Entity{active, second, third} {
		gw.QueueFetch(e.ID, &model.FetchResult{
			Code:    model.CodeCodeRequested,
			Details: &model.FetchDetails{ProcessID: "proc-" + string(rune('1'+i))},
		})
	}

	ctx := context.Background()
	for _, e := range []*model.Entity{active, second, third} {
		require.NoError(t, o.Scrape(ctx, e, []model.Feature{model.FeaturePosition}, service.FetchOptions{}))
	}

	require.NoError(t, o.SwitchActive("bank-3"))
	assert.Equal(t, "bank-3", o.SelectedEntity().ID)
	assert.Equal(t, "proc-3", o.ProcessID())
	assert.Equal(t, []string{"bank-2"}, o.PendingEntityIDs())

	err := o.SwitchActive("bank-9")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPendingEntityIDsExcludesActive(t *testing.T) {
	o, gw, _ := newTestOrchestrator(Config{})
	active := newTestEntity("bank-1", "Active Bank")
	waiting := newTestEntity("bank-2", "Waiting Bank")

	gw.QueueFetch("bank-1", &model.FetchResult{
		Code:    model.CodeCodeRequested,
		Details: &model.FetchDetails{ProcessID: "proc-1"},
	})
	gw.QueueFetch("bank-2", &model.FetchResult{
		Code:    model.CodeCodeRequested,
		Details: &model.FetchDetails{ProcessID: "proc-2"},
	})

	ctx := context.Background()
	require.NoError(t, o.Scrape(ctx, active, nil, service.FetchOptions{}))
	require.NoError(t, o.Scrape(ctx, waiting, nil, service.FetchOptions{}))

	assert.Equal(t, []string{"bank-2"}, o.PendingEntityIDs())
}
