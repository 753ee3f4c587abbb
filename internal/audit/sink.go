// Package audit provides the append-only sink for retention and admin
// actions. Entries are never updated or deleted by normal flows.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Sink writes and reads audit entries. When the audit table is not
// provisioned (enabled=false), writes degrade to log warnings and reads
// return empty results instead of erroring.
type Sink struct {
	sql     infra.SQLExecutor
	enabled bool
	logger  zerolog.Logger
}

func NewSink(sql infra.SQLExecutor, enabled bool, logger zerolog.Logger) *Sink {
	return &Sink{sql: sql, enabled: enabled, logger: logger}
}

// Append records one immutable entry.
func (s *Sink) Append(ctx context.Context, action, actorID string, details map[string]any) error {
	if !s.enabled {
		s.logger.Warn().Str("action", action).Msg("audit log disabled, entry skipped")
		return nil
	}
	if actorID == "" {
		actorID = domain.SystemActorID
	}
	payload := details
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QInsertAuditEntry, action, actorID, raw)
	return err
}

// TryAppend is the best-effort variant used after a commit: failures are
// logged and swallowed, never surfaced to the caller.
func (s *Sink) TryAppend(ctx context.Context, action, actorID string, details map[string]any) {
	if err := s.Append(ctx, action, actorID, details); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("audit append failed")
	}
}

// List returns entries matching the filter, newest first, with the total
// count for pagination.
func (s *Sink) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int, error) {
	if !s.enabled {
		return []domain.AuditEntry{}, 0, nil
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int
	if err := s.sql.QueryRow(ctx, sqlinline.QCountAuditEntries, filter.Action, filter.StartDate, filter.EndDate).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.sql.Query(ctx, sqlinline.QListAuditEntries, filter.Action, filter.StartDate, filter.EndDate, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e   domain.AuditEntry
			raw []byte
			ts  time.Time
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &raw, &ts); err != nil {
			return nil, 0, err
		}
		e.CreatedAt = ts
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Details); err != nil {
				return nil, 0, err
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

var _ domain.AuditSink = (*Sink)(nil)
