// Package history retrieves time-series records from a platform connector
// in resilient, bounded chunks.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurahq/aura/internal/platform"
)

// DefaultChunkSize bounds how many item IDs go into a single history.get
// call. Large item lists make upstream APIs throttle or time out; smaller
// requests are individually recoverable.
const DefaultChunkSize = 5

// ErrNoTimeRange reports a caller bug: history was requested without a
// report period.
var ErrNoTimeRange = errors.New("history: time range not set")

// Record is one raw history sample. Zabbix returns every field as a string;
// callers coerce Value as needed.
type Record struct {
	ItemID string `json:"itemid"`
	Clock  string `json:"clock"`
	Value  string `json:"value"`
}

// Fetcher pulls item history through a connector.
type Fetcher struct {
	conn      platform.Connector
	chunkSize int
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher for the given connector. A chunkSize <= 0
// falls back to DefaultChunkSize.
func NewFetcher(conn platform.Connector, chunkSize int, logger zerolog.Logger) *Fetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Fetcher{
		conn:      conn,
		chunkSize: chunkSize,
		logger:    logger.With().Str("component", "history").Logger(),
	}
}

// Fetch retrieves history for the given items over [from, till], issuing one
// history.get per chunk of at most chunkSize item IDs. A failed chunk is
// logged and skipped; the remaining chunks still contribute. Records keep
// ascending clock order within each chunk.
func (f *Fetcher) Fetch(ctx context.Context, itemIDs []string, historyKind int, from, till time.Time) ([]Record, error) {
	if from.IsZero() || till.IsZero() {
		return nil, ErrNoTimeRange
	}
	if len(itemIDs) == 0 {
		return nil, nil
	}

	var records []Record
	for start := 0; start < len(itemIDs); start += f.chunkSize {
		end := start + f.chunkSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}
		chunk := itemIDs[start:end]

		raw, err := f.conn.Get(ctx, "history.get", map[string]any{
			"output":    "extend",
			"history":   historyKind,
			"itemids":   chunk,
			"time_from": from.Unix(),
			"time_till": till.Unix(),
			"sortfield": "clock",
			"sortorder": "ASC",
		})
		if err != nil {
			f.logger.Warn().
				Err(err).
				Int("chunkStart", start).
				Int("chunkSize", len(chunk)).
				Msg("History chunk failed, skipping")
			continue
		}

		var chunkRecords []Record
		if err := json.Unmarshal(raw, &chunkRecords); err != nil {
			f.logger.Warn().
				Err(err).
				Int("chunkStart", start).
				Msg("History chunk returned malformed payload, skipping")
			continue
		}
		records = append(records, chunkRecords...)
	}

	return records, nil
}
