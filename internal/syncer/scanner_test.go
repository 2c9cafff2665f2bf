package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/model"
	"reserveSync/internal/soroban"
)

func newTestScanner(source EventSource) *Scanner {
	return NewScanner(ScannerConfig{BatchSize: 2, Concurrency: 2}, source, nil, nil)
}

func TestStartLedger(t *testing.T) {
	assert.Equal(t, uint32(1), StartLedger(0))
	assert.Equal(t, uint32(1), StartLedger(1))
	assert.Equal(t, uint32(99), StartLedger(100))
}

func TestScanSingleSync(t *testing.T) {
	source := &fakeSource{events: []model.ContractEvent{syncEvent(t, "1", "P1", 100, 100, 200)}}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1"), 100)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, "P1", updates[0].Address)
	assert.Equal(t, int64(100), updates[0].ReserveA.Int64())
	assert.Equal(t, int64(200), updates[0].ReserveB.Int64())
	assert.Equal(t, 1, stats.SyncEvents)

	q := source.Queries()
	require.Len(t, q, 1)
	assert.Equal(t, uint32(99), q[0].StartLedger)
	assert.Equal(t, []string{"P1"}, q[0].ContractIDs)
}

func TestScanBatchesAddresses(t *testing.T) {
	source := &fakeSource{}
	_, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1", "P2", "P3", "P4", "P5"), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Batches)

	seen := map[string]int{}
	for _, q := range source.Queries() {
		assert.LessOrEqual(t, len(q.ContractIDs), 2)
		for _, id := range q.ContractIDs {
			seen[id]++
		}
	}
	assert.Equal(t, map[string]int{"P1": 1, "P2": 1, "P3": 1, "P4": 1, "P5": 1}, seen)
}

func TestScanFiltersNonSyncEvents(t *testing.T) {
	source := &fakeSource{events: []model.ContractEvent{
		swapEvent(t, "1", "P1", 10),
		{ID: "2", ContractID: "P1", Ledger: 10, Topic: []string{"garbage"}, Value: "garbage"},
	}}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1"), 10)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 0, stats.SyncEvents)
}

func TestScanSkipsNegativeReserves(t *testing.T) {
	source := &fakeSource{events: []model.ContractEvent{
		syncEvent(t, "1", "P1", 10, 40, 50),
		syncEvent(t, "2", "P1", 11, -1, 50),
		syncEvent(t, "3", "P2", 11, 3, -3),
	}}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1", "P2"), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SyncEvents)

	require.Len(t, updates, 1)
	assert.Equal(t, "P1", updates[0].Address)
	assert.Equal(t, int64(40), updates[0].ReserveA.Int64())
	assert.Equal(t, uint32(10), updates[0].Ledger)
}

func TestScanLastWriteWins(t *testing.T) {
	source := &fakeSource{events: []model.ContractEvent{
		syncEvent(t, "1", "P1", 10, 1, 1),
		syncEvent(t, "2", "P2", 10, 5, 5),
		syncEvent(t, "3", "P1", 11, 7, 9),
	}}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1", "P2"), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SyncEvents)
	require.Len(t, updates, 2)

	byAddr := map[string]model.ReserveUpdate{}
	for _, u := range updates {
		byAddr[u.Address] = u
	}
	assert.Equal(t, int64(7), byAddr["P1"].ReserveA.Int64())
	assert.Equal(t, int64(9), byAddr["P1"].ReserveB.Int64())
	assert.Equal(t, uint32(11), byAddr["P1"].Ledger)
}

func TestScanIsolatesFailedBatch(t *testing.T) {
	source := &fakeSource{
		events: []model.ContractEvent{
			syncEvent(t, "1", "P1", 10, 1, 2),
			syncEvent(t, "2", "P3", 10, 3, 4),
		},
		failing: map[string]bool{"P1": true},
	}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), pairs("P1", "P2", "P3"), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FailedBatches)
	require.Len(t, updates, 1)
	assert.Equal(t, "P3", updates[0].Address)
}

func TestScanAllBatchesFailed(t *testing.T) {
	source := &fakeSource{failing: map[string]bool{"P1": true}}
	updates, _, err := newTestScanner(source).Scan(context.Background(), pairs("P1"), 10)
	assert.True(t, errors.Is(err, ErrAllBatchesFailed))
	assert.Empty(t, updates)
}

func TestScanEmpty(t *testing.T) {
	source := &fakeSource{}
	updates, stats, err := newTestScanner(source).Scan(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Zero(t, stats.Batches)
	assert.Empty(t, source.Queries())
}

// pagedSource returns events one page at a time using the event id as the cursor.
type pagedSource struct {
	events []model.ContractEvent
	calls  []soroban.EventQuery
}

func (p *pagedSource) GetEvents(_ context.Context, q soroban.EventQuery) (soroban.EventPage, error) {
	p.calls = append(p.calls, q)
	start := 0
	if q.Cursor != "" {
		for i, ev := range p.events {
			if ev.ID == q.Cursor {
				start = i + 1
			}
		}
	}
	end := start + int(q.Limit)
	if end > len(p.events) {
		end = len(p.events)
	}
	page := p.events[start:end]
	cursor := ""
	if len(page) > 0 {
		cursor = page[len(page)-1].ID
	}
	return soroban.EventPage{Events: page, Cursor: cursor}, nil
}

func TestScanFollowsPagination(t *testing.T) {
	source := &pagedSource{events: []model.ContractEvent{
		syncEvent(t, "e1", "P1", 10, 1, 1),
		syncEvent(t, "e2", "P1", 10, 2, 2),
		syncEvent(t, "e3", "P1", 11, 3, 3),
	}}
	scanner := NewScanner(ScannerConfig{BatchSize: 5, Concurrency: 1, PageLimit: 2}, source, nil, nil)

	updates, stats, err := scanner.Scan(context.Background(), pairs("P1"), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Events)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(3), updates[0].ReserveA.Int64())

	require.Len(t, source.calls, 2)
	assert.Equal(t, "", source.calls[0].Cursor)
	assert.Equal(t, "e2", source.calls[1].Cursor)
}
