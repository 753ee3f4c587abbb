package domain

import "time"

// BankItemStatus enumerates bank-connection states.
type BankItemStatus string

const (
	BankItemStatusActive       BankItemStatus = "active"
	BankItemStatusError        BankItemStatus = "error"
	BankItemStatusPending      BankItemStatus = "pending"
	BankItemStatusDisconnected BankItemStatus = "disconnected"
)

// BankItem is a single external bank connection owned by a user.
// DeletionScheduledAt is set only after DisconnectedAt and equals
// disconnectedAt plus the configured disconnection retention period.
type BankItem struct {
	ID                  string
	UserID              string
	Institution         string
	AccessToken         string
	Status              BankItemStatus
	DisconnectedAt      *time.Time
	DeletionScheduledAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
