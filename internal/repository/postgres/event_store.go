package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reisinl/veg-shop/internal/entity"
)

const eventColumns = "id, stream_id, stream_type, version, event_type, payload, created_at"

type eventStore struct {
	db dbtx
}

func (s *eventStore) headVersion(ctx context.Context, streamID string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM events WHERE stream_id = $1 ORDER BY version DESC LIMIT 1", streamID,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// SaveEvents appends all events in one INSERT. Inside WithinTx it commits
// together with the order rows; the (stream_id, version) key catches a
// writer that raced past the head check.
func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	head, err := s.headVersion(ctx, streamID)
	if err != nil {
		return fmt.Errorf("failed to read head of %s: %w", streamID, err)
	}
	if head != expectedVersion {
		return fmt.Errorf("%w: stream %s is at %d, expected %d", entity.ErrVersionConflict, streamID, head, expectedVersion)
	}

	const perRow = 7
	now := time.Now().UTC()
	rows := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*perRow)
	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
		}
		rows = append(rows, "("+placeholders(i*perRow+1, perRow)+")")
		args = append(args, uuid.NewString(), streamID, streamType, expectedVersion+i+1, e.EventType(), payload, now)
	}

	query := "INSERT INTO events (" + eventColumns + ") VALUES " + strings.Join(rows, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if sqlState(err) == "23505" {
			return fmt.Errorf("%w: stream %s", entity.ErrVersionConflict, streamID)
		}
		return fmt.Errorf("failed to append to %s: %w", streamID, err)
	}
	return nil
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE stream_id = $1 ORDER BY version", streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", streamID, err)
	}
	defer rows.Close()

	var out []entity.EventStoreRecord
	for rows.Next() {
		var r entity.EventStoreRecord
		if err := rows.Scan(&r.ID, &r.StreamID, &r.StreamType, &r.Version, &r.EventType, &r.Payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
