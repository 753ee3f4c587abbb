package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/sqlinline"
	"server/pkg/zip"
)

// ExportedTransaction is one row of the transactions export file.
type ExportedTransaction struct {
	ID          string    `json:"id"`
	AccountID   *string   `json:"account_id"`
	AmountCents int64     `json:"amount_cents"`
	Merchant    string    `json:"merchant"`
	Category    string    `json:"category"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ExportedInsight is one row of the insights export file.
type ExportedInsight struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Exporter assembles a user's financial data into a zip archive and writes
// it to the file store. Users request this before closing their account.
type Exporter struct {
	sql    infra.SQLExecutor
	store  *FileStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewExporter(sql infra.SQLExecutor, store *FileStore, logger zerolog.Logger) *Exporter {
	return &Exporter{sql: sql, store: store, logger: logger, now: time.Now}
}

// Export snapshots the user's transactions and insights into a zip archive,
// stores it, and returns the storage key and raw archive bytes. The read is
// a plain snapshot; a concurrent purge wins and the export simply comes out
// shorter.
func (e *Exporter) Export(ctx context.Context, userID string) (string, []byte, error) {
	txs, err := e.transactions(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("export transactions: %w", err)
	}
	ins, err := e.insightMetrics(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("export insights: %w", err)
	}

	txJSON, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return "", nil, err
	}
	insJSON, err := json.MarshalIndent(ins, "", "  ")
	if err != nil {
		return "", nil, err
	}

	stamp := e.now().UTC()
	archive, err := zip.Bundle([]zip.File{
		{Name: "transactions.json", Data: txJSON},
		{Name: "insights.json", Data: insJSON},
	}, stamp)
	if err != nil {
		return "", nil, fmt.Errorf("assemble export archive: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s.zip", userID, stamp.Format("20060102T150405Z"))
	stored, err := e.store.Write(ctx, key, archive)
	if err != nil {
		return "", nil, fmt.Errorf("store export: %w", err)
	}
	e.logger.Info().Str("user_id", userID).Str("key", stored).Int("bytes", len(archive)).Msg("account export written")
	return stored, archive, nil
}

func (e *Exporter) transactions(ctx context.Context, userID string) ([]ExportedTransaction, error) {
	rows, err := e.sql.Query(ctx, sqlinline.QExportTransactions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ExportedTransaction{}
	for rows.Next() {
		var t ExportedTransaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.AmountCents, &t.Merchant, &t.Category, &t.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (e *Exporter) insightMetrics(ctx context.Context, userID string) ([]ExportedInsight, error) {
	rows, err := e.sql.Query(ctx, sqlinline.QExportInsightMetrics, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ExportedInsight{}
	for rows.Next() {
		var i ExportedInsight
		if err := rows.Scan(&i.ID, &i.Kind, &i.Payload, &i.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
