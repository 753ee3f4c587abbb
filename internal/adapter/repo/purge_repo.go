package repo

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// PurgeStorePG executes the cascading per-user purge as one transaction.
// Any step failure rolls the whole transaction back, so a failed purge
// leaves every table untouched and the attempt is safe to retry.
type PurgeStorePG struct {
	txs      infra.TxRunner
	hasAudit bool
}

// NewPurgeStore creates a PurgeStorePG. hasAudit gates the audit-actor
// repoint step in environments without the audit table.
func NewPurgeStore(txs infra.TxRunner, hasAudit bool) *PurgeStorePG {
	return &PurgeStorePG{txs: txs, hasAudit: hasAudit}
}

func (s *PurgeStorePG) Purge(ctx context.Context, userID string, force bool) (domain.PurgeStats, error) {
	var stats domain.PurgeStats

	err := s.txs.InTx(ctx, func(tx infra.SQLExecutor) error {
		// Row lock serializes concurrent purges; the status check aborts when
		// the user left the purgeable state (e.g. cancelled during the sweep).
		var (
			status   string
			markedAt *time.Time
		)
		row := tx.QueryRow(ctx, sqlinline.QLockUserForPurge, userID)
		if err := row.Scan(&status, &markedAt); err != nil {
			if infra.IsNoRows(err) {
				return &domain.PurgeError{Step: "lock_user", Err: domain.ErrNotFound}
			}
			return &domain.PurgeError{Step: "lock_user", Err: err}
		}
		if !force && (status != string(domain.UserStatusMarkedForDeletion) || markedAt == nil) {
			return &domain.PurgeError{Step: "lock_user", Err: domain.ErrPurgeConflict}
		}

		steps := []struct {
			name  string
			query string
			count *int64
		}{
			{"delete_transactions", sqlinline.QPurgeTransactions, &stats.Transactions},
			{"delete_accounts", sqlinline.QPurgeAccounts, &stats.Accounts},
			{"delete_insight_metrics", sqlinline.QPurgeInsightMetrics, &stats.InsightMetrics},
			{"delete_spending_patterns", sqlinline.QPurgeSpendingPatterns, &stats.SpendingPatterns},
			{"revoke_auth_tokens", sqlinline.QPurgeAuthTokens, &stats.AuthTokens},
			{"delete_bank_items", sqlinline.QPurgeBankItems, &stats.BankItems},
			{"delete_clients", sqlinline.QPurgeClients, nil},
		}
		for _, step := range steps {
			tag, err := tx.Exec(ctx, step.query, userID)
			if err != nil {
				return &domain.PurgeError{Step: step.name, Err: err}
			}
			if step.count != nil {
				*step.count = tag.RowsAffected()
			}
		}

		if s.hasAudit {
			if _, err := tx.Exec(ctx, sqlinline.QRepointAuditActor, userID, domain.SystemActorID); err != nil {
				return &domain.PurgeError{Step: "repoint_audit_actor", Err: err}
			}
		}

		if _, err := tx.Exec(ctx, sqlinline.QPurgeUserRow, userID); err != nil {
			return &domain.PurgeError{Step: "delete_user", Err: err}
		}
		return nil
	})
	if err != nil {
		return domain.PurgeStats{}, err
	}
	return stats, nil
}

var _ domain.PurgeStore = (*PurgeStorePG)(nil)
