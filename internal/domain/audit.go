package domain

import "time"

// SystemActorID is the sentinel actor substituted into audit entries when the
// original actor has since been deleted. Historical entries stay referentially
// valid without blocking actor deletion.
const SystemActorID = "00000000-0000-0000-0000-000000000000"

// Audit actions recorded by the retention lifecycle.
const (
	ActionClosureInitiated     = "account_closure_initiated"
	ActionClosureCancelled     = "account_closure_cancelled"
	ActionAccountPurged        = "account_purged"
	ActionForceDeleteUser      = "force_delete_user"
	ActionInactivityWarning    = "inactivity_warning_sent"
	ActionBankItemDisconnected = "bank_item_disconnected"
	ActionBankItemPurged       = "bank_item_purged"
	ActionRetentionPrefs       = "retention_preferences_updated"
	ActionClientApproved       = "client_approved"
	ActionClientSuspended      = "client_suspended"
)

// AuditEntry is an immutable record of a retention or admin action.
type AuditEntry struct {
	ID        string
	Action    string
	ActorID   string
	Details   map[string]any
	CreatedAt time.Time
}

// AuditFilter narrows audit-log listings.
type AuditFilter struct {
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}
