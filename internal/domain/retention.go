package domain

import "time"

// RetentionRules are the named policy durations, in days, consumed by the
// retention policy engine. They are configuration, not per-entity state;
// per-user overrides live in RetentionPreferences.
type RetentionRules struct {
	InactivityWarningDays int
	InactivityGraceDays   int
	DeletionPeriodDays    int
	TransactionDays       int
	InsightDays           int
	BankDisconnectDays    int
}

// DefaultRetentionRules returns the stock policy. DeletionPeriodDays is the
// single authoritative grace period for closure cancellation; 30 days is only
// its default, not a separate hardcoded window.
func DefaultRetentionRules() RetentionRules {
	return RetentionRules{
		InactivityWarningDays: 365,
		InactivityGraceDays:   30,
		DeletionPeriodDays:    30,
		TransactionDays:       730,
		InsightDays:           365,
		BankDisconnectDays:    90,
	}
}

// RetentionState classifies what action, if any, an account is due for.
type RetentionState string

const (
	StateActive            RetentionState = "active"
	StateWarningDue        RetentionState = "warning_due"
	StateGraceDue          RetentionState = "grace_due"
	StateMarkedForDeletion RetentionState = "marked_for_deletion"
	StateDeletionDue       RetentionState = "deletion_due"
)

// BankItemState classifies a bank connection for the disconnect sweep.
type BankItemState string

const (
	BankItemKeep     BankItemState = "keep"
	BankItemPurgeDue BankItemState = "purge_due"
)

// AuditReport aggregates retention classification counts without mutating
// anything. Used by the manual admin audit endpoint and dry-run previews.
type AuditReport struct {
	GeneratedAt    time.Time              `json:"generated_at"`
	TotalUsers     int                    `json:"total_users"`
	UsersByState   map[RetentionState]int `json:"users_by_state"`
	TotalBankItems int                    `json:"total_bank_items"`
	ItemsByState   map[BankItemState]int  `json:"items_by_state"`
	DeletionDue    []string               `json:"deletion_due_user_ids"`
	ItemsDue       []string               `json:"purge_due_item_ids"`
}

// PurgeStats counts rows removed by a transactional purge.
type PurgeStats struct {
	Accounts         int64 `json:"accounts"`
	Transactions     int64 `json:"transactions"`
	InsightMetrics   int64 `json:"insight_metrics"`
	SpendingPatterns int64 `json:"spending_patterns"`
	AuthTokens       int64 `json:"auth_tokens"`
	BankItems        int64 `json:"bank_items"`
}
