// Package retention implements the data-retention lifecycle: pure policy
// classification, the closure/purge orchestrator, and the compliance audit.
package retention

import (
	"time"

	"server/internal/domain"
)

// Policy classifies users and bank items against the retention rules. It is
// pure: no I/O, no clock access, every decision derives from its inputs.
type Policy struct {
	rules domain.RetentionRules
}

func NewPolicy(rules domain.RetentionRules) Policy {
	return Policy{rules: rules}
}

func (p Policy) Rules() domain.RetentionRules { return p.rules }

// ClassifyUser determines the retention action a user is due for at now.
// Marked users are driven solely by the deletion schedule; unmarked users by
// the inactivity ladder.
func (p Policy) ClassifyUser(u domain.User, now time.Time) domain.RetentionState {
	if u.MarkedForDeletion() {
		due := p.ScheduledDeletionDate(u)
		if due != nil && !now.Before(*due) {
			return domain.StateDeletionDue
		}
		return domain.StateMarkedForDeletion
	}

	last := u.CreatedAt
	if u.LastActivityAt != nil {
		last = *u.LastActivityAt
	}
	inactiveSince := now.Sub(last)

	if u.InactivityWarningDate != nil {
		grace := days(p.rules.InactivityGraceDays)
		if now.Sub(*u.InactivityWarningDate) >= grace {
			return domain.StateGraceDue
		}
		return domain.StateActive
	}
	if inactiveSince >= days(p.rules.InactivityWarningDays) {
		return domain.StateWarningDue
	}
	return domain.StateActive
}

// ScheduledDeletionDate returns when a marked user's data becomes eligible
// for purge, or nil when no closure is pending.
func (p Policy) ScheduledDeletionDate(u domain.User) *time.Time {
	if u.MarkedForDeletionAt == nil {
		return nil
	}
	t := u.MarkedForDeletionAt.Add(days(p.rules.DeletionPeriodDays))
	return &t
}

// CanCancelClosure reports whether a pending closure may still be cancelled
// at now. Cancellation is allowed strictly before the scheduled deletion
// instant.
func (p Policy) CanCancelClosure(u domain.User, now time.Time) bool {
	due := p.ScheduledDeletionDate(u)
	if due == nil {
		return false
	}
	return now.Before(*due)
}

// ClassifyBankItem decides whether a disconnected bank connection's data has
// aged out.
func (p Policy) ClassifyBankItem(item domain.BankItem, now time.Time) domain.BankItemState {
	if item.Status != domain.BankItemStatusDisconnected || item.DisconnectedAt == nil {
		return domain.BankItemKeep
	}
	due := item.DeletionScheduledAt
	if due == nil {
		t := item.DisconnectedAt.Add(days(p.rules.BankDisconnectDays))
		due = &t
	}
	if !now.Before(*due) {
		return domain.BankItemPurgeDue
	}
	return domain.BankItemKeep
}

// TransactionCutoff returns the oldest transaction timestamp retained for a
// user, honoring a per-user override when one is set.
func (p Policy) TransactionCutoff(u domain.User, now time.Time) time.Time {
	d := p.rules.TransactionDays
	if u.Preferences.TransactionRetentionDays > 0 {
		d = u.Preferences.TransactionRetentionDays
	}
	return now.Add(-days(d))
}

// InsightCutoff returns the oldest insight timestamp retained for a user.
func (p Policy) InsightCutoff(u domain.User, now time.Time) time.Time {
	d := p.rules.InsightDays
	if u.Preferences.InsightRetentionDays > 0 {
		d = u.Preferences.InsightRetentionDays
	}
	return now.Add(-days(d))
}

// AuditCompliance builds a non-mutating classification report over the given
// users and bank items.
func (p Policy) AuditCompliance(users []domain.User, items []domain.BankItem, now time.Time) domain.AuditReport {
	report := domain.AuditReport{
		GeneratedAt:    now,
		TotalUsers:     len(users),
		UsersByState:   map[domain.RetentionState]int{},
		TotalBankItems: len(items),
		ItemsByState:   map[domain.BankItemState]int{},
	}
	for _, u := range users {
		state := p.ClassifyUser(u, now)
		report.UsersByState[state]++
		if state == domain.StateDeletionDue {
			report.DeletionDue = append(report.DeletionDue, u.ID)
		}
	}
	for _, item := range items {
		state := p.ClassifyBankItem(item, now)
		report.ItemsByState[state]++
		if state == domain.BankItemPurgeDue {
			report.ItemsDue = append(report.ItemsDue, item.ID)
		}
	}
	return report
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
