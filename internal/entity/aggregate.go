package entity

import (
	"fmt"
	"time"
)

// EventStoreRecord is one row of the append-only event log. Version counts
// from 1 within a stream.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is anything appended to a stream. The type name doubles as the
// discriminator stored next to the JSON payload.
type Event interface {
	EventType() string
}

// Stream tracks which stream a replayed view belongs to and how many events
// it has absorbed.
type Stream struct {
	StreamID string
	Version  int
}

func (s *Stream) advance() int {
	s.Version++
	return s.Version
}

// replay decodes each record and feeds it to apply in stream order.
func replay(records []EventStoreRecord, decode func(EventStoreRecord) (Event, error), apply func(Event) error) error {
	for _, rec := range records {
		e, err := decode(rec)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return fmt.Errorf("failed to apply %s v%d: %w", rec.StreamID, rec.Version, err)
		}
	}
	return nil
}
