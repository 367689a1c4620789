package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConnector serves canned history responses and records each call's
// item chunk.
type fakeConnector struct {
	chunks  [][]string
	records map[string][]Record // itemID -> records
	failOn  int                 // 1-based call index to fail, 0 = never
}

func (f *fakeConnector) Get(_ context.Context, method string, params any) (json.RawMessage, error) {
	if method != "history.get" {
		return nil, fmt.Errorf("unexpected method %s", method)
	}
	p := params.(map[string]any)
	itemIDs := p["itemids"].([]string)
	f.chunks = append(f.chunks, itemIDs)

	if f.failOn == len(f.chunks) {
		return nil, errors.New("upstream timeout")
	}

	var out []Record
	for _, id := range itemIDs {
		out = append(out, f.records[id]...)
	}
	return json.Marshal(out)
}

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%d", i)
	}
	return ids
}

func recordsFor(ids []string, perItem int) map[string][]Record {
	out := make(map[string][]Record)
	for _, id := range ids {
		for j := 0; j < perItem; j++ {
			out[id] = append(out[id], Record{ItemID: id, Clock: fmt.Sprintf("%d", 1700000000+j), Value: "42.5"})
		}
	}
	return out
}

func TestFetcherChunking(t *testing.T) {
	ids := itemIDs(12)
	conn := &fakeConnector{records: recordsFor(ids, 2)}
	f := NewFetcher(conn, 5, zerolog.Nop())

	from := time.Now().Add(-time.Hour)
	till := time.Now()

	records, err := f.Fetch(context.Background(), ids, 0, from, till)
	require.NoError(t, err)

	// ceil(12/5) = 3 chunk requests
	require.Len(t, conn.chunks, 3)
	assert.Len(t, conn.chunks[0], 5)
	assert.Len(t, conn.chunks[1], 5)
	assert.Len(t, conn.chunks[2], 2)

	assert.Len(t, records, 24)
	// Chunk order preserved: first record belongs to the first item.
	assert.Equal(t, "item-0", records[0].ItemID)
}

func TestFetcherSkipsFailedChunk(t *testing.T) {
	ids := itemIDs(12)
	conn := &fakeConnector{records: recordsFor(ids, 1), failOn: 2}
	f := NewFetcher(conn, 5, zerolog.Nop())

	records, err := f.Fetch(context.Background(), ids, 0, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	// Chunk 2 (items 5-9) is lost; chunks 1 and 3 survive.
	require.Len(t, conn.chunks, 3)
	assert.Len(t, records, 7)
	for _, rec := range records {
		assert.NotContains(t, []string{"item-5", "item-6", "item-7", "item-8", "item-9"}, rec.ItemID)
	}
}

func TestFetcherEmptyItems(t *testing.T) {
	conn := &fakeConnector{}
	f := NewFetcher(conn, 5, zerolog.Nop())

	records, err := f.Fetch(context.Background(), nil, 0, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, conn.chunks, "connector must not be called for an empty item set")
}

func TestFetcherRequiresTimeRange(t *testing.T) {
	f := NewFetcher(&fakeConnector{}, 5, zerolog.Nop())

	_, err := f.Fetch(context.Background(), itemIDs(3), 0, time.Time{}, time.Now())
	require.ErrorIs(t, err, ErrNoTimeRange)

	_, err = f.Fetch(context.Background(), itemIDs(3), 0, time.Now(), time.Time{})
	require.ErrorIs(t, err, ErrNoTimeRange)
}

func TestFetcherDefaultChunkSize(t *testing.T) {
	conn := &fakeConnector{records: recordsFor(itemIDs(6), 1)}
	f := NewFetcher(conn, 0, zerolog.Nop())

	_, err := f.Fetch(context.Background(), itemIDs(6), 0, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, conn.chunks, 2)
}
