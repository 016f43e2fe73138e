package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventLog is an append-only activity row. Tracking ingestion and admin
// audit trails both land here.
type EventLog struct {
	ID           int64     `db:"id" json:"id"`
	CustomerCode *string   `db:"customer_code" json:"customerCode,omitempty"`
	Action       string    `db:"action" json:"action"`
	ObjectType   *string   `db:"object_type" json:"objectType,omitempty"`
	ObjectID     *string   `db:"object_id" json:"objectId,omitempty"`
	Actor        *string   `db:"actor" json:"actor,omitempty"`
	IP           *string   `db:"ip" json:"ip,omitempty"`
	UserAgent    *string   `db:"user_agent" json:"userAgent,omitempty"`
	Memo         *string   `db:"memo" json:"memo,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// CreateEventLogParams represents parameters for appending an event log
type CreateEventLogParams struct {
	CustomerCode *string
	Action       string
	ObjectType   *string
	ObjectID     *string
	Actor        *string
	IP           *string
	UserAgent    *string
	Memo         *string
}

// CreateEventLog appends a log row.
func (s Store) CreateEventLog(ctx context.Context, params CreateEventLogParams) (EventLog, error) {
	var log EventLog
	query := `
		INSERT INTO event_logs (customer_code, action, object_type, object_id, actor, ip, user_agent, memo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, customer_code, action, object_type, object_id, actor, ip, user_agent, memo, created_at
	`
	err := s.db.GetContext(ctx, &log, query,
		params.CustomerCode, params.Action, params.ObjectType, params.ObjectID,
		params.Actor, params.IP, params.UserAgent, params.Memo)
	if err != nil {
		return EventLog{}, fmt.Errorf("failed to create event log: %w", err)
	}
	return log, nil
}

// EventLogFilter narrows event-log queries. Empty fields are ignored.
type EventLogFilter struct {
	CustomerCode string
	Action       string
	ObjectType   string
	From         time.Time
	To           time.Time
}

func (f EventLogFilter) whereClause() (string, []any) {
	conds := []string{"1=1"}
	args := []any{}
	if f.CustomerCode != "" {
		args = append(args, f.CustomerCode)
		conds = append(conds, fmt.Sprintf("customer_code = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if f.ObjectType != "" {
		args = append(args, f.ObjectType)
		conds = append(conds, fmt.Sprintf("object_type = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// ListEventLogs returns a page of log rows, newest first.
func (s Store) ListEventLogs(ctx context.Context, filter EventLogFilter, offset, limit int) ([]EventLog, error) {
	logs := []EventLog{}
	where, args := filter.whereClause()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, customer_code, action, object_type, object_id, actor, ip, user_agent, memo, created_at
		FROM event_logs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))
	if err := s.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list event logs: %w", err)
	}
	return logs, nil
}

// CountEventLogs counts log rows matching the filter.
func (s Store) CountEventLogs(ctx context.Context, filter EventLogFilter) (int64, error) {
	where, args := filter.whereClause()
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM event_logs WHERE %s`, where)
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count event logs: %w", err)
	}
	return count, nil
}
