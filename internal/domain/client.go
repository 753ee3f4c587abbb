package domain

import "time"

// ClientStatus enumerates API client lifecycle states.
type ClientStatus string

const (
	ClientStatusPending   ClientStatus = "pending"
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
	ClientStatusRevoked   ClientStatus = "revoked"
)

// Client is an API credential scope with its own usage quota, distinct from
// the human user that owns it.
type Client struct {
	ID                    string
	UserID                string
	Name                  string
	APIKey                string
	Status                ClientStatus
	UsageCount            int
	UsageQuota            int
	LastNotifiedThreshold int
	LastUsedAt            *time.Time
	ResetDate             time.Time
	LastResetDate         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UsagePercent returns the whole-number usage percentage for the current cycle.
func (c Client) UsagePercent() int {
	if c.UsageQuota <= 0 {
		return 0
	}
	return c.UsageCount * 100 / c.UsageQuota
}

// Exhausted reports whether the client has consumed its full quota.
func (c Client) Exhausted() bool {
	return c.UsageQuota > 0 && c.UsageCount >= c.UsageQuota
}
