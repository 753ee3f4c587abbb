// Package notify dispatches usage and retention notifications. Every send is
// fire-and-forget from the caller's perspective: failures are logged, never
// returned into the triggering request's path.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// MonthlySummary is the payload of the end-of-cycle usage notification.
type MonthlySummary struct {
	PreviousUsage int
	UsagePercent  int
	NextResetDate time.Time
}

// ClosureNotice describes an account-closure lifecycle notification.
type ClosureNotice struct {
	Kind            string // requested, cancelled, purged
	ScheduledFor    *time.Time
	GracePeriodDays int
	Reason          string
}

// Dispatcher sends threshold, status, and deletion notifications.
type Dispatcher interface {
	SendUsageThresholdNotice(ctx context.Context, user *domain.User, client *domain.Client, thresholdPct int) error
	SendQuotaExceededNotice(ctx context.Context, user *domain.User, client *domain.Client) error
	SendMonthlySummary(ctx context.Context, user *domain.User, client *domain.Client, summary MonthlySummary) error
	SendAccountClosureNotice(ctx context.Context, user *domain.User, notice ClosureNotice) error
	SendInactivityWarning(ctx context.Context, user *domain.User, graceDays int) error
}

// Async runs fn in its own goroutine with panic recovery. The caller never
// waits on, or observes failures of, the dispatch.
func Async(logger zerolog.Logger, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("notification dispatch panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Error().Err(err).Msg("notification dispatch failed")
		}
	}()
}

// NopDispatcher drops every notification. Used by offline tooling and tests.
type NopDispatcher struct{}

func (NopDispatcher) SendUsageThresholdNotice(context.Context, *domain.User, *domain.Client, int) error {
	return nil
}

func (NopDispatcher) SendQuotaExceededNotice(context.Context, *domain.User, *domain.Client) error {
	return nil
}

func (NopDispatcher) SendMonthlySummary(context.Context, *domain.User, *domain.Client, MonthlySummary) error {
	return nil
}

func (NopDispatcher) SendAccountClosureNotice(context.Context, *domain.User, ClosureNotice) error {
	return nil
}

func (NopDispatcher) SendInactivityWarning(context.Context, *domain.User, int) error {
	return nil
}

var _ Dispatcher = NopDispatcher{}

// LogDispatcher is the no-mailer fallback: every notification is recorded in
// the service log only.
type LogDispatcher struct {
	Logger zerolog.Logger
}

func (d *LogDispatcher) SendUsageThresholdNotice(_ context.Context, user *domain.User, client *domain.Client, thresholdPct int) error {
	d.Logger.Info().
		Str("user_id", user.ID).
		Str("client_id", client.ID).
		Int("threshold_pct", thresholdPct).
		Msg("notice: usage threshold crossed")
	return nil
}

func (d *LogDispatcher) SendQuotaExceededNotice(_ context.Context, user *domain.User, client *domain.Client) error {
	d.Logger.Info().
		Str("user_id", user.ID).
		Str("client_id", client.ID).
		Time("reset_date", client.ResetDate).
		Msg("notice: quota exceeded")
	return nil
}

func (d *LogDispatcher) SendMonthlySummary(_ context.Context, user *domain.User, client *domain.Client, summary MonthlySummary) error {
	d.Logger.Info().
		Str("user_id", user.ID).
		Str("client_id", client.ID).
		Int("previous_usage", summary.PreviousUsage).
		Int("usage_percent", summary.UsagePercent).
		Time("next_reset", summary.NextResetDate).
		Msg("notice: monthly usage summary")
	return nil
}

func (d *LogDispatcher) SendAccountClosureNotice(_ context.Context, user *domain.User, notice ClosureNotice) error {
	evt := d.Logger.Info().
		Str("user_id", user.ID).
		Str("kind", notice.Kind)
	if notice.ScheduledFor != nil {
		evt = evt.Time("scheduled_for", *notice.ScheduledFor)
	}
	evt.Msg("notice: account closure")
	return nil
}

func (d *LogDispatcher) SendInactivityWarning(_ context.Context, user *domain.User, graceDays int) error {
	d.Logger.Info().
		Str("user_id", user.ID).
		Int("grace_days", graceDays).
		Msg("notice: inactivity warning")
	return nil
}

var _ Dispatcher = (*LogDispatcher)(nil)
