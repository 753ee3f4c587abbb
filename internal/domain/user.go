package domain

import "time"

// UserStatus enumerates account lifecycle states.
type UserStatus string

const (
	UserStatusActive            UserStatus = "active"
	UserStatusInactive          UserStatus = "inactive"
	UserStatusMarkedForDeletion UserStatus = "marked_for_deletion"
)

// RetentionPreferences are per-user overrides of the retention rules.
type RetentionPreferences struct {
	TransactionRetentionDays int  `json:"transaction_retention_days"`
	InsightRetentionDays     int  `json:"insight_retention_days"`
	EmailNotifications       bool `json:"email_notifications"`
	AnalyticalDataUse        bool `json:"analytical_data_use"`
}

// User represents an account holder within the platform.
type User struct {
	ID                    string
	Email                 string
	Name                  string
	Role                  UserRole
	Locale                string
	Status                UserStatus
	LastActivityAt        *time.Time
	InactivityWarningDate *time.Time
	MarkedForDeletionAt   *time.Time
	DeletionReason        *string
	Preferences           RetentionPreferences
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// MarkedForDeletion reports whether a closure request is pending. The
// invariant is markedForDeletionAt non-nil iff status is marked_for_deletion.
func (u User) MarkedForDeletion() bool {
	return u.MarkedForDeletionAt != nil
}
