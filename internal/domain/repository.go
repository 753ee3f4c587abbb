package domain

import (
	"context"
	"time"
)

// ClientRepository defines persistence for API clients. Usage mutation goes
// through these methods only; quota invariants are enforced in SQL, never by
// read-then-write in application code.
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*Client, error)
	GetByAPIKey(ctx context.Context, key string) (*Client, error)
	// ConsumeUsage atomically increments usage_count by one when the client is
	// active and below quota, stamping last_used_at. Returns ErrNotFound,
	// ErrClientInactive or a QuotaExceededError when the conditional update
	// matches no row.
	ConsumeUsage(ctx context.Context, id string, now time.Time) (*Client, error)
	// AdvanceNotifiedThreshold raises last_notified_threshold to the given
	// value iff it is currently lower. Reports whether this call won the claim.
	AdvanceNotifiedThreshold(ctx context.Context, id string, threshold int) (bool, error)
	ListResetDue(ctx context.Context, now time.Time) ([]Client, error)
	// ResetCycle zeroes usage and notified threshold and advances the reset
	// date, returning the usage count recorded before the reset.
	ResetCycle(ctx context.Context, id string, nextReset time.Time) (previousUsage int, c *Client, err error)
	SetStatus(ctx context.Context, id string, status ClientStatus) error
	SetQuota(ctx context.Context, id string, quota int) error
}

// UserRepository defines persistence for account holders.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	// MarkForDeletion transitions an unmarked user into marked_for_deletion.
	// Returns ErrAlreadyMarked if a closure request is already pending.
	MarkForDeletion(ctx context.Context, id string, at time.Time, reason string) (*User, error)
	// CancelDeletion clears the deletion mark and inactivity warning and
	// restores active status. Returns ErrNotMarked when nothing is pending.
	CancelDeletion(ctx context.Context, id string) (*User, error)
	SetInactivityWarning(ctx context.Context, id string, at time.Time) error
	UpdatePreferences(ctx context.Context, id string, prefs RetentionPreferences) error
	ListMarkedForDeletion(ctx context.Context, page, limit int) ([]User, int, error)
	ListForRetention(ctx context.Context) ([]User, error)
}

// BankItemRepository defines persistence for bank connections.
type BankItemRepository interface {
	GetByID(ctx context.Context, id string) (*BankItem, error)
	ListForUser(ctx context.Context, userID string) ([]BankItem, error)
	ListAll(ctx context.Context) ([]BankItem, error)
	Disconnect(ctx context.Context, id string, at, deletionScheduledAt time.Time) (*BankItem, error)
	ListPurgeDue(ctx context.Context, now time.Time) ([]BankItem, error)
	// PurgeItemData removes the item row and its dependent financial data.
	PurgeItemData(ctx context.Context, id string) error
}

// PurgeStore executes the cascading per-user purge inside one transaction.
// force skips the marked-for-deletion status requirement (admin path); the
// row lock and status check inside the transaction still prevent concurrent
// purges of the same user.
type PurgeStore interface {
	Purge(ctx context.Context, userID string, force bool) (PurgeStats, error)
}

// AuditSink appends immutable audit entries and serves filtered reads.
type AuditSink interface {
	Append(ctx context.Context, action, actorID string, details map[string]any) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int, error)
}
