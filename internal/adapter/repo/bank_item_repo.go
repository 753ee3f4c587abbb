package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// BankItemRepositoryPG implements domain.BankItemRepository backed by PostgreSQL.
type BankItemRepositoryPG struct {
	sql infra.SQLExecutor
	txs infra.TxRunner
}

// NewBankItemRepository creates a new BankItemRepositoryPG. txs is used for
// the multi-table per-item purge.
func NewBankItemRepository(sql infra.SQLExecutor, txs infra.TxRunner) *BankItemRepositoryPG {
	return &BankItemRepositoryPG{sql: sql, txs: txs}
}

func (r *BankItemRepositoryPG) GetByID(ctx context.Context, id string) (*domain.BankItem, error) {
	return scanBankItem(r.sql.QueryRow(ctx, sqlinline.QSelectBankItemByID, id))
}

func (r *BankItemRepositoryPG) ListForUser(ctx context.Context, userID string) ([]domain.BankItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListBankItemsForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBankItems(rows)
}

func (r *BankItemRepositoryPG) ListAll(ctx context.Context) ([]domain.BankItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListBankItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBankItems(rows)
}

func (r *BankItemRepositoryPG) Disconnect(ctx context.Context, id string, at, deletionScheduledAt time.Time) (*domain.BankItem, error) {
	item, err := scanBankItemFrom(r.sql.QueryRow(ctx, sqlinline.QDisconnectBankItem, id, at, deletionScheduledAt))
	if err == nil {
		return item, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	// Row exists but is already disconnected.
	return nil, domain.ErrAlreadyMarked
}

func (r *BankItemRepositoryPG) ListPurgeDue(ctx context.Context, now time.Time) ([]domain.BankItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListBankItemsPurgeDue, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBankItems(rows)
}

// PurgeItemData removes the item's transactions, accounts, and finally the
// item row inside one transaction.
func (r *BankItemRepositoryPG) PurgeItemData(ctx context.Context, id string) error {
	return r.txs.InTx(ctx, func(tx infra.SQLExecutor) error {
		for _, q := range []string{
			sqlinline.QDeleteBankItemTransactions,
			sqlinline.QDeleteBankItemAccounts,
			sqlinline.QDeleteBankItem,
		} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func collectBankItems(rows pgx.Rows) ([]domain.BankItem, error) {
	var items []domain.BankItem
	for rows.Next() {
		it, err := scanBankItemFrom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanBankItem(row pgx.Row) (*domain.BankItem, error) {
	it, err := scanBankItemFrom(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

func scanBankItemFrom(row pgx.Row) (*domain.BankItem, error) {
	var it domain.BankItem
	if err := row.Scan(
		&it.ID, &it.UserID, &it.Institution, &it.AccessToken, &it.Status,
		&it.DisconnectedAt, &it.DeletionScheduledAt, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

var _ domain.BankItemRepository = (*BankItemRepositoryPG)(nil)
