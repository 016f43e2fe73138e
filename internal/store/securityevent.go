package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Security event types reported by device agents.
const (
	EventTypeMalwaresApp      = "MALWARES_APP"
	EventTypeRootingDetected  = "ROOTING_DETECTED"
	EventTypeRemoteControlApp = "REMOTE_CONTROL_APP"
)

// SecurityEvent is one reported device security event. Payload holds the
// normalized report JSON as stored, including the raw reported data.
type SecurityEvent struct {
	ID            int64     `db:"id" json:"id"`
	CustomerCode  string    `db:"customer_code" json:"customerCode"`
	DeviceID      *string   `db:"device_id" json:"deviceId,omitempty"`
	EventType     string    `db:"event_type" json:"eventType"`
	SourcePackage *string   `db:"source_package" json:"sourcePackage,omitempty"`
	SourceDomain  *string   `db:"source_domain" json:"sourceDomain,omitempty"`
	Payload       string    `db:"payload" json:"payload"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// CreateSecurityEventParams represents parameters for recording a security event
type CreateSecurityEventParams struct {
	CustomerCode  string
	DeviceID      *string
	EventType     string
	SourcePackage *string
	SourceDomain  *string
	Payload       string
}

// CreateSecurityEvent appends an event row.
func (s Store) CreateSecurityEvent(ctx context.Context, params CreateSecurityEventParams) (SecurityEvent, error) {
	var event SecurityEvent
	query := `
		INSERT INTO security_events (customer_code, device_id, event_type, source_package, source_domain, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, customer_code, device_id, event_type, source_package, source_domain, payload, created_at
	`
	err := s.db.GetContext(ctx, &event, query,
		params.CustomerCode, params.DeviceID, params.EventType,
		params.SourcePackage, params.SourceDomain, params.Payload)
	if err != nil {
		return SecurityEvent{}, fmt.Errorf("failed to create security event: %w", err)
	}
	return event, nil
}

// SecurityEventFilter narrows event queries. Zero time bounds and an empty
// EventType are ignored.
type SecurityEventFilter struct {
	CustomerCode string
	From         time.Time
	To           time.Time
	EventType    string
}

func (f SecurityEventFilter) whereClause() (string, []any) {
	conds := []string{"customer_code = $1"}
	args := []any{f.CustomerCode}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// ListSecurityEvents returns a page of events, newest first unless sortAsc.
func (s Store) ListSecurityEvents(ctx context.Context, filter SecurityEventFilter, offset, limit int, sortAsc bool) ([]SecurityEvent, error) {
	events := []SecurityEvent{}
	where, args := filter.whereClause()
	direction := "DESC"
	if sortAsc {
		direction = "ASC"
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, customer_code, device_id, event_type, source_package, source_domain, payload, created_at
		FROM security_events
		WHERE %s
		ORDER BY created_at %s, id %s
		LIMIT $%d OFFSET $%d
	`, where, direction, direction, len(args)-1, len(args))
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	return events, nil
}

// CountSecurityEvents counts events matching the filter.
func (s Store) CountSecurityEvents(ctx context.Context, filter SecurityEventFilter) (int64, error) {
	where, args := filter.whereClause()
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM security_events WHERE %s`, where)
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return count, nil
}

// TypeCount is a per-event-type tally.
type TypeCount struct {
	EventType string `db:"event_type"`
	Count     int64  `db:"count"`
}

// CountSecurityEventsByType tallies events per type over the filter's range.
// The filter's own EventType is ignored so the tallies always cover every
// type.
func (s Store) CountSecurityEventsByType(ctx context.Context, filter SecurityEventFilter) ([]TypeCount, error) {
	filter.EventType = ""
	where, args := filter.whereClause()
	counts := []TypeCount{}
	query := fmt.Sprintf(`
		SELECT event_type, COUNT(*) AS count
		FROM security_events
		WHERE %s
		GROUP BY event_type
	`, where)
	if err := s.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count security events by type: %w", err)
	}
	return counts, nil
}

// DailyTypeCount is a per-day, per-type tally. Day is formatted YYYY-MM-DD
// in the requested zone.
type DailyTypeCount struct {
	Day       string `db:"day"`
	EventType string `db:"event_type"`
	Count     int64  `db:"count"`
}

// CountSecurityEventsDaily groups events per local day and type. The zone
// name must be a valid IANA identifier; day boundaries follow it.
func (s Store) CountSecurityEventsDaily(ctx context.Context, filter SecurityEventFilter, zone string) ([]DailyTypeCount, error) {
	filter.EventType = ""
	where, args := filter.whereClause()
	args = append(args, zone)
	counts := []DailyTypeCount{}
	query := fmt.Sprintf(`
		SELECT to_char(created_at AT TIME ZONE $%d, 'YYYY-MM-DD') AS day, event_type, COUNT(*) AS count
		FROM security_events
		WHERE %s
		GROUP BY 1, 2
		ORDER BY 1 ASC
	`, len(args), where)
	if err := s.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count daily security events: %w", err)
	}
	return counts, nil
}

// ListSecurityEventsByType returns every event of one type in the filter's
// range. The daily report scans these in memory for malware tallies.
func (s Store) ListSecurityEventsByType(ctx context.Context, filter SecurityEventFilter, eventType string) ([]SecurityEvent, error) {
	filter.EventType = eventType
	where, args := filter.whereClause()
	events := []SecurityEvent{}
	query := fmt.Sprintf(`
		SELECT id, customer_code, device_id, event_type, source_package, source_domain, payload, created_at
		FROM security_events
		WHERE %s
		ORDER BY created_at ASC
	`, where)
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list security events by type: %w", err)
	}
	return events, nil
}
