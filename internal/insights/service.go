package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
	"server/internal/sqlinline"
)

// Summarizer captures the generation dependency so the service can be tested
// without network access.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Insight is the stored result of one generation run.
type Insight struct {
	Kind        string         `json:"kind"`
	Summary     string         `json:"summary"`
	Categories  map[string]int `json:"categories"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Service builds spending insights from a user's recent transactions. Every
// generation is metered through the caller's API client quota before this
// service runs.
type Service struct {
	sql        infra.SQLExecutor
	summarizer Summarizer
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(sql infra.SQLExecutor, summarizer Summarizer, logger zerolog.Logger) *Service {
	return &Service{sql: sql, summarizer: summarizer, logger: logger, now: time.Now}
}

// Generate aggregates the user's transactions into category totals, asks the
// summarizer for a narrative, and persists the result as an insight metric.
func (s *Service) Generate(ctx context.Context, userID string) (*Insight, error) {
	totals, count, err := s.categoryTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}

	summary, err := s.summarizer.Summarize(ctx, buildPrompt(totals, count))
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	insight := &Insight{
		Kind:        "spending_summary",
		Summary:     summary,
		Categories:  totals,
		GeneratedAt: s.now().UTC(),
	}
	payload, err := json.Marshal(insight)
	if err != nil {
		return nil, err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertInsightMetric, userID, insight.Kind, payload); err != nil {
		return nil, fmt.Errorf("store insight: %w", err)
	}
	return insight, nil
}

func (s *Service) categoryTotals(ctx context.Context, userID string) (map[string]int, int, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QExportTransactions, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	totals := map[string]int{}
	count := 0
	for rows.Next() {
		var (
			id, accountID *string
			amountCents   int64
			merchant      string
			category      string
			occurredAt    time.Time
		)
		if err := rows.Scan(&id, &accountID, &amountCents, &merchant, &category, &occurredAt); err != nil {
			return nil, 0, err
		}
		if category == "" {
			category = "uncategorized"
		}
		totals[category] += int(amountCents)
		count++
	}
	return totals, count, rows.Err()
}

func buildPrompt(totals map[string]int, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this personal spending snapshot of %d transactions in two sentences.\n", count)
	for category, cents := range totals {
		fmt.Fprintf(&b, "%s: %.2f\n", category, float64(cents)/100)
	}
	return b.String()
}
