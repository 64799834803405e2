package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
)

// EventLogSink persists every published envelope to the durable event_log
// table; no HTTP route of this service reads that table back. Failures are
// logged, not surfaced: event publication happens strictly after commit,
// so a logging failure must never roll back or retry the business
// transaction that already succeeded.
type EventLogSink struct {
	DB *sql.DB
}

func NewEventLogSink(db *sql.DB) *EventLogSink { return &EventLogSink{DB: db} }

func (s *EventLogSink) Publish(ctx context.Context, env Envelope) {
	payload, err := json.Marshal(env.Data)
	if err != nil {
		log.Printf("events: marshal %s payload: %v", env.Kind, err)
		return
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO event_log (event_id, market_id, kind, channel, payload, commit_ts)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		env.EventID, nullableMarketID(env.MarketID), env.Kind, env.Channel, payload, env.CommitTs)
	if err != nil {
		log.Printf("events: persist %s: %v", env.Kind, err)
	}
}

func nullableMarketID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
