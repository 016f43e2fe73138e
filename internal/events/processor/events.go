package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"portal-server/internal/docstore"
	"portal-server/internal/observability"
	"portal-server/internal/store"
	tenantprocessor "portal-server/internal/tenant/processor"
)

// EventStore defines the database operations required by EventProcessor
type EventStore interface {
	CreateSecurityEvent(ctx context.Context, params store.CreateSecurityEventParams) (store.SecurityEvent, error)
	ListSecurityEvents(ctx context.Context, filter store.SecurityEventFilter, offset, limit int, sortAsc bool) ([]store.SecurityEvent, error)
	CountSecurityEvents(ctx context.Context, filter store.SecurityEventFilter) (int64, error)
	CountSecurityEventsByType(ctx context.Context, filter store.SecurityEventFilter) ([]store.TypeCount, error)
	CountSecurityEventsDaily(ctx context.Context, filter store.SecurityEventFilter, zone string) ([]store.DailyTypeCount, error)
	ListSecurityEventsByType(ctx context.Context, filter store.SecurityEventFilter, eventType string) ([]store.SecurityEvent, error)
	CreateEventLog(ctx context.Context, params store.CreateEventLogParams) (store.EventLog, error)
	ListEventLogs(ctx context.Context, filter store.EventLogFilter, offset, limit int) ([]store.EventLog, error)
	CountEventLogs(ctx context.Context, filter store.EventLogFilter) (int64, error)
}

// TenantResolver maps report source identifiers to a customer.
type TenantResolver interface {
	Resolve(ctx context.Context, pkg, domain string) (tenantprocessor.ResolvedTenant, error)
}

// AdTracker records ad impressions and clicks routed in from the generic
// tracking endpoint.
type AdTracker interface {
	TrackImpression(ctx context.Context, id string, detail *docstore.TrackDetail) error
	TrackClick(ctx context.Context, id string, detail *docstore.TrackDetail) error
}

var ErrTenantNotResolved = errors.New("request could not be matched to a customer")

type EventProcessor struct {
	store    EventStore
	resolver TenantResolver
	ads      AdTracker
	logger   *observability.Logger
}

func New(store EventStore, resolver TenantResolver, ads AdTracker, logger *observability.Logger) EventProcessor {
	return EventProcessor{
		store:    store,
		resolver: resolver,
		ads:      ads,
		logger:   logger,
	}
}

// ReportRequest is a device security report.
type ReportRequest struct {
	Package   string
	Domain    string
	DeviceID  string
	EventType string
	Data      string
}

// storedPayload is the normalized payload persisted with each event.
type storedPayload struct {
	MalwarePackage string `json:"malwarePackage,omitempty"`
	MalwareType    string `json:"malwareType,omitempty"`
	Raw            string `json:"raw"`
}

// Report ingests a device security event. The reporting app or site must
// resolve to a customer; for malware events the package and type are
// extracted up front so dashboards never re-parse raw reports.
func (p *EventProcessor) Report(ctx context.Context, req ReportRequest) (store.SecurityEvent, error) {
	tenant, err := p.resolver.Resolve(ctx, req.Package, req.Domain)
	if err != nil {
		if errors.Is(err, tenantprocessor.ErrNoMatch) {
			return store.SecurityEvent{}, ErrTenantNotResolved
		}
		return store.SecurityEvent{}, err
	}
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "customer_code", Value: tenant.Code},
		observability.Field{Key: "event_type", Value: req.EventType},
	)

	payload := storedPayload{Raw: req.Data}
	if req.EventType == store.EventTypeMalwaresApp {
		info := ExtractMalwareInfo(req.Data)
		payload.MalwarePackage = info.Package
		payload.MalwareType = info.Type
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return store.SecurityEvent{}, err
	}

	params := store.CreateSecurityEventParams{
		CustomerCode: tenant.Code,
		EventType:    req.EventType,
		Payload:      string(raw),
	}
	if req.DeviceID != "" {
		params.DeviceID = &req.DeviceID
	}
	if req.Package != "" {
		params.SourcePackage = &req.Package
	}
	if req.Domain != "" {
		params.SourceDomain = &req.Domain
	}

	event, err := p.store.CreateSecurityEvent(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to store security event", err)
		return store.SecurityEvent{}, err
	}
	p.logger.Info(ctx, "security event recorded")
	return event, nil
}

// SecurityEventItem is a list row with the extracted malware fields lifted
// out of the payload.
type SecurityEventItem struct {
	store.SecurityEvent
	MalwarePackage string `json:"malwarePackage,omitempty"`
	MalwareType    string `json:"malwareType,omitempty"`
}

// SecurityEventCounts are the dashboard KPI tallies over a range,
// regardless of any type filter on the listing itself.
type SecurityEventCounts struct {
	Total   int64 `json:"total"`
	Malware int64 `json:"malware"`
	Rooting int64 `json:"rooting"`
	Remote  int64 `json:"remote"`
}

// SecurityEventPage is one page of events plus range-wide counts.
type SecurityEventPage struct {
	Items  []SecurityEventItem `json:"items"`
	Page   int                 `json:"page"`
	Size   int                 `json:"size"`
	Total  int64               `json:"total"`
	Counts SecurityEventCounts `json:"counts"`
}

// ListSecurityEvents returns a page of a customer's events with KPI counts
// computed over the same range without the type filter.
func (p *EventProcessor) ListSecurityEvents(ctx context.Context, filter store.SecurityEventFilter, page, size int, sortAsc bool) (SecurityEventPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	events, err := p.store.ListSecurityEvents(ctx, filter, (page-1)*size, size, sortAsc)
	if err != nil {
		p.logger.Error(ctx, "failed to list security events", err)
		return SecurityEventPage{}, err
	}
	total, err := p.store.CountSecurityEvents(ctx, filter)
	if err != nil {
		p.logger.Error(ctx, "failed to count security events", err)
		return SecurityEventPage{}, err
	}
	typeCounts, err := p.store.CountSecurityEventsByType(ctx, filter)
	if err != nil {
		p.logger.Error(ctx, "failed to count security events by type", err)
		return SecurityEventPage{}, err
	}

	result := SecurityEventPage{
		Items: make([]SecurityEventItem, 0, len(events)),
		Page:  page,
		Size:  size,
		Total: total,
	}
	for _, event := range events {
		item := SecurityEventItem{SecurityEvent: event}
		var payload storedPayload
		if json.Unmarshal([]byte(event.Payload), &payload) == nil {
			item.MalwarePackage = payload.MalwarePackage
			item.MalwareType = payload.MalwareType
		}
		result.Items = append(result.Items, item)
	}
	for _, tc := range typeCounts {
		result.Counts.Total += tc.Count
		switch tc.EventType {
		case store.EventTypeMalwaresApp:
			result.Counts.Malware = tc.Count
		case store.EventTypeRootingDetected:
			result.Counts.Rooting = tc.Count
		case store.EventTypeRemoteControlApp:
			result.Counts.Remote = tc.Count
		}
	}
	return result, nil
}

// DailyPoint is one day of the report series with every tracked type
// present, zeros included.
type DailyPoint struct {
	Date    string `json:"date"`
	Malware int64  `json:"malware"`
	Rooting int64  `json:"rooting"`
	Remote  int64  `json:"remote"`
}

// RankedCount is one bucket of a top-N table.
type RankedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DailyReport is the security dashboard payload.
type DailyReport struct {
	From            string              `json:"from"`
	To              string              `json:"to"`
	Series          []DailyPoint        `json:"series"`
	Totals          SecurityEventCounts `json:"totals"`
	TopMalwareTypes []RankedCount       `json:"topMalwareTypes"`
	TopMalwarePkgs  []RankedCount       `json:"topMalwarePackages"`
}

const topMalwareLimit = 10

// GetDailyReport builds the per-day series and top-malware tables for a
// customer. The range defaults to the last 7 days; every day in the range
// appears in the series even when empty.
func (p *EventProcessor) GetDailyReport(ctx context.Context, customerCode string, from, to time.Time, tz string) (DailyReport, error) {
	loc := time.UTC
	if tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			p.logger.WarnWithError(ctx, "invalid timezone, falling back to UTC", err)
		} else {
			loc = parsed
		}
	}

	now := time.Now().In(loc)
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -6)
	}
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	filter := store.SecurityEventFilter{
		CustomerCode: customerCode,
		From:         fromDay,
		To:           toDay.AddDate(0, 0, 1),
	}

	daily, err := p.store.CountSecurityEventsDaily(ctx, filter, loc.String())
	if err != nil {
		p.logger.Error(ctx, "failed to count daily security events", err)
		return DailyReport{}, err
	}

	report := DailyReport{
		From:            fromDay.Format("2006-01-02"),
		To:              toDay.Format("2006-01-02"),
		TopMalwareTypes: []RankedCount{},
		TopMalwarePkgs:  []RankedCount{},
	}

	byDay := make(map[string]int)
	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		byDay[date] = len(report.Series)
		report.Series = append(report.Series, DailyPoint{Date: date})
	}
	for _, row := range daily {
		idx, ok := byDay[row.Day]
		if !ok {
			continue
		}
		point := &report.Series[idx]
		switch row.EventType {
		case store.EventTypeMalwaresApp:
			point.Malware += row.Count
		case store.EventTypeRootingDetected:
			point.Rooting += row.Count
		case store.EventTypeRemoteControlApp:
			point.Remote += row.Count
		}
		report.Totals.Total += row.Count
	}
	for _, point := range report.Series {
		report.Totals.Malware += point.Malware
		report.Totals.Rooting += point.Rooting
		report.Totals.Remote += point.Remote
	}

	malwareEvents, err := p.store.ListSecurityEventsByType(ctx, filter, store.EventTypeMalwaresApp)
	if err != nil {
		p.logger.Error(ctx, "failed to list malware events", err)
		return DailyReport{}, err
	}
	typeCounts := make(map[string]int64)
	pkgCounts := make(map[string]int64)
	for _, event := range malwareEvents {
		var payload storedPayload
		malwareType, malwarePkg := "-", "-"
		if json.Unmarshal([]byte(event.Payload), &payload) == nil {
			if payload.MalwareType != "" {
				malwareType = payload.MalwareType
			}
			if payload.MalwarePackage != "" {
				malwarePkg = payload.MalwarePackage
			}
		}
		typeCounts[malwareType]++
		pkgCounts[malwarePkg]++
	}
	report.TopMalwareTypes = topN(typeCounts, topMalwareLimit)
	report.TopMalwarePkgs = topN(pkgCounts, topMalwareLimit)
	return report, nil
}

func topN(counts map[string]int64, n int) []RankedCount {
	ranked := make([]RankedCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, RankedCount{Name: name, Count: count})
	}
	// Insertion sort keeps ties stable enough for a top-10 table.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && (ranked[j].Count > ranked[j-1].Count ||
			(ranked[j].Count == ranked[j-1].Count && ranked[j].Name < ranked[j-1].Name)); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TrackRequest is a generic client-side tracking event.
type TrackRequest struct {
	CustomerCode string
	Action       string
	ObjectType   string
	ObjectID     string
	Actor        string
	IP           string
	UserAgent    string
	Data         string
	Detail       *docstore.TrackDetail
}

// Tracking actions with side effects beyond the log row.
const (
	actionAdImpression = "AD_IMPRESSION"
	actionAdClick      = "AD_CLICK"
	objectTypeDirectAd = "DIRECT_AD"
)

// Track appends an event-log row and routes recognized actions to their
// side effects: direct-ad counters for ad actions, a mirrored security
// event for malware reports. Side-effect failures are logged, not returned;
// the log row is the source of truth.
func (p *EventProcessor) Track(ctx context.Context, req TrackRequest) (store.EventLog, error) {
	params := store.CreateEventLogParams{Action: req.Action}
	if req.CustomerCode != "" {
		params.CustomerCode = &req.CustomerCode
	}
	if req.ObjectType != "" {
		params.ObjectType = &req.ObjectType
	}
	if req.ObjectID != "" {
		params.ObjectID = &req.ObjectID
	}
	if req.Actor != "" {
		params.Actor = &req.Actor
	}
	if req.IP != "" {
		params.IP = &req.IP
	}
	if req.UserAgent != "" {
		params.UserAgent = &req.UserAgent
	}
	if req.Data != "" {
		params.Memo = &req.Data
	}

	logRow, err := p.store.CreateEventLog(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to create event log", err)
		return store.EventLog{}, err
	}

	switch {
	case req.ObjectType == objectTypeDirectAd && req.ObjectID != "":
		var trackErr error
		switch req.Action {
		case actionAdImpression:
			trackErr = p.ads.TrackImpression(ctx, req.ObjectID, req.Detail)
		case actionAdClick:
			trackErr = p.ads.TrackClick(ctx, req.ObjectID, req.Detail)
		}
		if trackErr != nil {
			p.logger.WarnWithError(ctx, "failed to track ad event", trackErr)
		}
	case req.Action == store.EventTypeMalwaresApp && req.CustomerCode != "":
		info := ExtractMalwareInfo(req.Data)
		raw, err := json.Marshal(storedPayload{
			MalwarePackage: info.Package,
			MalwareType:    info.Type,
			Raw:            req.Data,
		})
		if err == nil {
			_, err = p.store.CreateSecurityEvent(ctx, store.CreateSecurityEventParams{
				CustomerCode: req.CustomerCode,
				EventType:    store.EventTypeMalwaresApp,
				Payload:      string(raw),
			})
		}
		if err != nil {
			p.logger.WarnWithError(ctx, "failed to mirror malware event", err)
		}
	}
	return logRow, nil
}

// ListEventLogs returns a page of raw tracking rows for the admin console.
func (p *EventProcessor) ListEventLogs(ctx context.Context, filter store.EventLogFilter, page, size int) ([]store.EventLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	logs, err := p.store.ListEventLogs(ctx, filter, (page-1)*size, size)
	if err != nil {
		p.logger.Error(ctx, "failed to list event logs", err)
		return nil, 0, err
	}
	total, err := p.store.CountEventLogs(ctx, filter)
	if err != nil {
		p.logger.Error(ctx, "failed to count event logs", err)
		return nil, 0, err
	}
	return logs, total, nil
}
