package retention

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra/geoip"
	"server/internal/notify"
)

// Confirmation phrases. Requests carrying anything else are rejected before
// any state changes.
const (
	ConfirmClosure     = "DELETE_MY_ACCOUNT"
	ConfirmForceDelete = "CONFIRM_PERMANENT_DELETION"
)

const minForceDeleteReason = 10

// purgePageSize bounds each ListMarkedForDeletion page during the sweep.
const purgePageSize = 100

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Warned      int `json:"warned"`
	Marked      int `json:"marked"`
	Purged      int `json:"purged"`
	ItemsPurged int `json:"items_purged"`
	Failed      int `json:"failed"`
}

// Orchestrator drives the account closure lifecycle and the periodic
// retention sweeps. All writes go through the repositories; audit entries
// and notifications are appended after the state change commits.
type Orchestrator struct {
	users      domain.UserRepository
	bankItems  domain.BankItemRepository
	purge      domain.PurgeStore
	audit      domain.AuditSink
	dispatcher notify.Dispatcher
	policy     Policy
	geo        geoip.CountryResolver
	logger     zerolog.Logger
	now        func() time.Time
}

func NewOrchestrator(
	users domain.UserRepository,
	bankItems domain.BankItemRepository,
	purge domain.PurgeStore,
	auditSink domain.AuditSink,
	dispatcher notify.Dispatcher,
	policy Policy,
	geo geoip.CountryResolver,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		users:      users,
		bankItems:  bankItems,
		purge:      purge,
		audit:      auditSink,
		dispatcher: dispatcher,
		policy:     policy,
		geo:        geo,
		logger:     logger,
		now:        time.Now,
	}
}

// Policy exposes the classification rules in effect.
func (o *Orchestrator) Policy() Policy { return o.policy }

// RequestClosure marks the user's account for deletion after the configured
// grace period. The confirmation phrase must match exactly.
func (o *Orchestrator) RequestClosure(ctx context.Context, userID, confirmation, reason string) (*domain.User, error) {
	if confirmation != ConfirmClosure {
		return nil, domain.ErrConfirmationRequired
	}
	now := o.now().UTC()
	user, err := o.users.MarkForDeletion(ctx, userID, now, reason)
	if err != nil {
		return nil, err
	}

	scheduled := o.policy.ScheduledDeletionDate(*user)
	o.tryAudit(ctx, domain.ActionClosureInitiated, userID, map[string]any{
		"reason":             reason,
		"scheduled_deletion": scheduled,
	})
	o.sendClosureNotice(user, notify.ClosureNotice{
		Kind:            "requested",
		ScheduledFor:    scheduled,
		GracePeriodDays: o.policy.Rules().DeletionPeriodDays,
		Reason:          reason,
	})
	return user, nil
}

// CancelClosure reverses a pending closure. Allowed strictly before the
// scheduled deletion instant; afterwards the request is refused with the
// expiry time.
func (o *Orchestrator) CancelClosure(ctx context.Context, userID string) (*domain.User, error) {
	user, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MarkedForDeletion() {
		return nil, domain.ErrNotMarked
	}
	if !o.policy.CanCancelClosure(*user, o.now().UTC()) {
		due := o.policy.ScheduledDeletionDate(*user)
		return nil, &domain.GracePeriodExpiredError{ExpiredAt: *due}
	}

	restored, err := o.users.CancelDeletion(ctx, userID)
	if err != nil {
		return nil, err
	}
	o.tryAudit(ctx, domain.ActionClosureCancelled, userID, nil)
	o.sendClosureNotice(restored, notify.ClosureNotice{Kind: "cancelled"})
	return restored, nil
}

// ForceDelete purges a user immediately on an administrator's authority,
// bypassing the grace period. Requires the confirmation phrase and a reason
// of at least ten characters. The audit entry records the admin's IP and,
// when a GeoIP database is loaded, the country it resolves to.
func (o *Orchestrator) ForceDelete(ctx context.Context, adminID, userID, confirmation, reason, ip string) (domain.PurgeStats, error) {
	if confirmation != ConfirmForceDelete {
		return domain.PurgeStats{}, domain.ErrConfirmationRequired
	}
	if len(strings.TrimSpace(reason)) < minForceDeleteReason {
		return domain.PurgeStats{}, domain.ErrReasonTooShort
	}

	user, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return domain.PurgeStats{}, err
	}

	stats, err := o.purge.Purge(ctx, userID, true)
	if err != nil {
		return domain.PurgeStats{}, err
	}

	details := map[string]any{
		"target_user_id": userID,
		"target_email":   user.Email,
		"reason":         reason,
		"ip":             ip,
		"stats":          stats,
	}
	if o.geo != nil && ip != "" {
		if country, geoErr := o.geo.CountryCode(ip); geoErr == nil && country != "" {
			details["country"] = country
		}
	}
	o.tryAudit(ctx, domain.ActionForceDeleteUser, adminID, details)
	o.sendClosureNotice(user, notify.ClosureNotice{Kind: "purged", Reason: reason})
	return stats, nil
}

// PurgeDueUsers deletes every marked account whose grace period has elapsed.
// The marked listing is collected in full before the first purge; deleting
// rows mid-pagination would shift later pages and skip users. Failures are
// isolated per user; the purge transaction rolls back whole, so a failed
// user is retried on the next sweep.
func (o *Orchestrator) PurgeDueUsers(ctx context.Context) (purged, failed int) {
	now := o.now().UTC()
	var marked []domain.User
	for page := 1; ; page++ {
		users, total, err := o.users.ListMarkedForDeletion(ctx, page, purgePageSize)
		if err != nil {
			o.logger.Error().Err(err).Msg("list marked users")
			return purged, failed + 1
		}
		marked = append(marked, users...)
		if len(users) == 0 || len(marked) >= total {
			break
		}
	}
	for _, u := range marked {
		if o.policy.ClassifyUser(u, now) != domain.StateDeletionDue {
			continue
		}
		if err := o.purgeUser(ctx, u); err != nil {
			o.logger.Error().Err(err).Str("user_id", u.ID).Msg("purge user")
			failed++
			continue
		}
		purged++
	}
	return purged, failed
}

func (o *Orchestrator) purgeUser(ctx context.Context, u domain.User) error {
	stats, err := o.purge.Purge(ctx, u.ID, false)
	if err != nil {
		return err
	}
	o.tryAudit(ctx, domain.ActionAccountPurged, "", map[string]any{
		"user_id": u.ID,
		"stats":   stats,
	})
	o.sendClosureNotice(&u, notify.ClosureNotice{Kind: "purged"})
	return nil
}

// SweepRetention runs the inactivity ladder and the disconnected-bank-item
// purge, then deletes users whose grace period elapsed.
func (o *Orchestrator) SweepRetention(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := o.now().UTC()

	users, err := o.users.ListForRetention(ctx)
	if err != nil {
		return res, fmt.Errorf("list users for retention: %w", err)
	}
	for _, u := range users {
		switch o.policy.ClassifyUser(u, now) {
		case domain.StateWarningDue:
			if err := o.warnInactive(ctx, u, now); err != nil {
				o.logger.Error().Err(err).Str("user_id", u.ID).Msg("inactivity warning")
				res.Failed++
				continue
			}
			res.Warned++
		case domain.StateGraceDue:
			if err := o.markInactive(ctx, u, now); err != nil {
				o.logger.Error().Err(err).Str("user_id", u.ID).Msg("mark inactive user")
				res.Failed++
				continue
			}
			res.Marked++
		}
	}

	purged, failed := o.PurgeDueUsers(ctx)
	res.Purged = purged
	res.Failed += failed

	items, err := o.bankItems.ListPurgeDue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list purge-due bank items: %w", err)
	}
	for _, item := range items {
		if err := o.bankItems.PurgeItemData(ctx, item.ID); err != nil {
			o.logger.Error().Err(err).Str("item_id", item.ID).Msg("purge bank item")
			res.Failed++
			continue
		}
		o.tryAudit(ctx, domain.ActionBankItemPurged, "", map[string]any{
			"item_id":     item.ID,
			"user_id":     item.UserID,
			"institution": item.Institution,
		})
		res.ItemsPurged++
	}
	return res, nil
}

func (o *Orchestrator) warnInactive(ctx context.Context, u domain.User, now time.Time) error {
	if err := o.users.SetInactivityWarning(ctx, u.ID, now); err != nil {
		return err
	}
	o.tryAudit(ctx, domain.ActionInactivityWarning, "", map[string]any{"user_id": u.ID})
	user := u
	notify.Async(o.logger, func(ctx context.Context) error {
		return o.dispatcher.SendInactivityWarning(ctx, &user, o.policy.Rules().InactivityGraceDays)
	})
	return nil
}

func (o *Orchestrator) markInactive(ctx context.Context, u domain.User, now time.Time) error {
	user, err := o.users.MarkForDeletion(ctx, u.ID, now, "inactivity")
	if err != nil {
		return err
	}
	o.tryAudit(ctx, domain.ActionClosureInitiated, "", map[string]any{
		"user_id":            u.ID,
		"reason":             "inactivity",
		"scheduled_deletion": o.policy.ScheduledDeletionDate(*user),
	})
	o.sendClosureNotice(user, notify.ClosureNotice{
		Kind:            "requested",
		ScheduledFor:    o.policy.ScheduledDeletionDate(*user),
		GracePeriodDays: o.policy.Rules().DeletionPeriodDays,
		Reason:          "inactivity",
	})
	return nil
}

// AuditCompliance classifies every user and bank connection against the
// rules without mutating anything.
func (o *Orchestrator) AuditCompliance(ctx context.Context) (domain.AuditReport, error) {
	users, err := o.users.ListForRetention(ctx)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("list users for retention: %w", err)
	}
	items, err := o.bankItems.ListAll(ctx)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("list bank items: %w", err)
	}
	return o.policy.AuditCompliance(users, items, o.now().UTC()), nil
}

func (o *Orchestrator) sendClosureNotice(user *domain.User, notice notify.ClosureNotice) {
	u := *user
	notify.Async(o.logger, func(ctx context.Context) error {
		return o.dispatcher.SendAccountClosureNotice(ctx, &u, notice)
	})
}

func (o *Orchestrator) tryAudit(ctx context.Context, action, actorID string, details map[string]any) {
	if err := o.audit.Append(ctx, action, actorID, details); err != nil {
		o.logger.Error().Err(err).Str("action", action).Msg("audit append failed")
	}
}
