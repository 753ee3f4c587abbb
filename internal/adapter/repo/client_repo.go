package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// ClientRepositoryPG implements domain.ClientRepository backed by PostgreSQL.
type ClientRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewClientRepository creates a new ClientRepositoryPG.
func NewClientRepository(sql infra.SQLExecutor) *ClientRepositoryPG {
	return &ClientRepositoryPG{sql: sql}
}

func (r *ClientRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	return scanClient(r.sql.QueryRow(ctx, sqlinline.QSelectClientByID, id))
}

func (r *ClientRepositoryPG) GetByAPIKey(ctx context.Context, key string) (*domain.Client, error) {
	return scanClient(r.sql.QueryRow(ctx, sqlinline.QSelectClientByAPIKey, key))
}

// ConsumeUsage performs the conditional increment. When the update matches no
// row, the client is re-read once to report why: missing, inactive, or over
// quota (with the reset date the caller needs).
func (r *ClientRepositoryPG) ConsumeUsage(ctx context.Context, id string, now time.Time) (*domain.Client, error) {
	c, err := scanClientFrom(r.sql.QueryRow(ctx, sqlinline.QConsumeClientUsage, id, now))
	if err == nil {
		return c, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status != domain.ClientStatusActive {
		return nil, &domain.ClientInactiveError{Status: current.Status}
	}
	return nil, &domain.QuotaExceededError{ResetDate: current.ResetDate}
}

func (r *ClientRepositoryPG) AdvanceNotifiedThreshold(ctx context.Context, id string, threshold int) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QAdvanceNotifiedThreshold, id, threshold)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ClientRepositoryPG) ListResetDue(ctx context.Context, now time.Time) ([]domain.Client, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectClientsResetDue, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := scanClientFrom(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (r *ClientRepositoryPG) ResetCycle(ctx context.Context, id string, nextReset time.Time) (int, *domain.Client, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QResetClientCycle, id, nextReset)
	var previousUsage int
	c, err := scanClientPrefixed(row, &previousUsage)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, nil, domain.ErrNotFound
		}
		return 0, nil, err
	}
	return previousUsage, c, nil
}

func (r *ClientRepositoryPG) SetStatus(ctx context.Context, id string, status domain.ClientStatus) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetClientStatus, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ClientRepositoryPG) SetQuota(ctx context.Context, id string, quota int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetClientQuota, id, quota)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	c, err := scanClientFrom(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanClientFrom(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.APIKey, &c.Status,
		&c.UsageCount, &c.UsageQuota, &c.LastNotifiedThreshold,
		&c.LastUsedAt, &c.ResetDate, &c.LastResetDate,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanClientPrefixed(row pgx.Row, previousUsage *int) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(
		previousUsage,
		&c.ID, &c.UserID, &c.Name, &c.APIKey, &c.Status,
		&c.UsageCount, &c.UsageQuota, &c.LastNotifiedThreshold,
		&c.LastUsedAt, &c.ResetDate, &c.LastResetDate,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

var _ domain.ClientRepository = (*ClientRepositoryPG)(nil)
