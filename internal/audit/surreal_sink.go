package audit

import (
	"context"
	"fmt"

	"github.com/forgo/bastion/internal/database"
	"github.com/forgo/bastion/internal/model"
)

const createEventQuery = `CREATE security_event CONTENT {
	event_id: $event_id,
	timestamp: <datetime> $timestamp,
	category: $category,
	ip: $ip,
	user_agent: $user_agent,
	url: $url,
	method: $method,
	request_id: $request_id,
	user_id: $user_id,
	detail: $detail
}`

// SurrealSink persists events to the security_event table.
type SurrealSink struct {
	db database.Database
}

func NewSurrealSink(db database.Database) *SurrealSink {
	return &SurrealSink{db: db}
}

func (s *SurrealSink) Name() string { return "surrealdb" }

func (s *SurrealSink) Write(ctx context.Context, ev model.SecurityEvent) error {
	vars := map[string]interface{}{
		"event_id":   ev.ID,
		"timestamp":  ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		"category":   string(ev.Category),
		"ip":         ev.IP,
		"user_agent": ev.UserAgent,
		"url":        ev.URL,
		"method":     ev.Method,
		"request_id": ev.RequestID,
		"user_id":    ev.UserID,
		"detail":     ev.Detail,
	}
	if err := s.db.Execute(ctx, createEventQuery, vars); err != nil {
		return fmt.Errorf("persist security event: %w", err)
	}
	return nil
}
