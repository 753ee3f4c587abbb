package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/notify"
)

// NotifyThresholds is the ladder of usage percentages that trigger a
// notification. Crossing several at once fires only the highest.
var NotifyThresholds = []int{25, 50, 75, 90, 95}

// Engine enforces per-client usage quotas and drives the monthly reset
// cycle.
type Engine struct {
	clients    domain.ClientRepository
	users      domain.UserRepository
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewEngine(clients domain.ClientRepository, users domain.UserRepository, dispatcher notify.Dispatcher, logger zerolog.Logger) *Engine {
	return &Engine{
		clients:    clients,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckAndConsume atomically spends one unit of the client's quota. It
// returns the client state after the increment, or a typed error when the
// client is inactive or out of quota.
func (e *Engine) CheckAndConsume(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := e.clients.ConsumeUsage(ctx, clientID, e.now().UTC())
	if err != nil {
		return nil, err
	}
	return client, nil
}

// AfterConsume evaluates the notification ladder for a client that just
// consumed usage. The request that spends the last unit triggers the
// quota-exceeded notice here; the denial path also calls NotifyExhausted,
// and the 100 rung claim keeps the notice to once per cycle either way.
// Safe to run outside the request path; failures are logged, never
// surfaced to the caller of the metered request.
func (e *Engine) AfterConsume(ctx context.Context, client *domain.Client) {
	if client.Exhausted() {
		e.NotifyExhausted(ctx, client.ID)
		return
	}
	threshold, ok := crossedThreshold(client)
	if !ok {
		return
	}
	if err := e.notifyThreshold(ctx, client, threshold); err != nil {
		e.logger.Error().Err(err).
			Str("client_id", client.ID).
			Int("threshold", threshold).
			Msg("threshold notification failed")
	}
}

// NotifyExhausted sends the quota-exceeded notice for a client that has hit
// 100% of its quota, claiming the 100 rung so the notice goes out once per
// cycle.
func (e *Engine) NotifyExhausted(ctx context.Context, clientID string) {
	client, err := e.clients.GetByID(ctx, clientID)
	if err != nil {
		e.logger.Error().Err(err).Str("client_id", clientID).Msg("load client for exhausted notice")
		return
	}
	if client.LastNotifiedThreshold >= 100 {
		return
	}
	claimed, err := e.clients.AdvanceNotifiedThreshold(ctx, client.ID, 100)
	if err != nil {
		e.logger.Error().Err(err).Str("client_id", client.ID).Msg("claim exhausted threshold")
		return
	}
	if !claimed {
		return
	}
	user, err := e.users.GetByID(ctx, client.UserID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", client.UserID).Msg("load user for exhausted notice")
		return
	}
	if err := e.dispatcher.SendQuotaExceededNotice(ctx, user, client); err != nil {
		e.logger.Error().Err(err).Str("client_id", client.ID).Msg("send exhausted notice")
	}
}

func (e *Engine) notifyThreshold(ctx context.Context, client *domain.Client, threshold int) error {
	claimed, err := e.clients.AdvanceNotifiedThreshold(ctx, client.ID, threshold)
	if err != nil {
		return fmt.Errorf("claim threshold %d: %w", threshold, err)
	}
	if !claimed {
		// Another request already claimed this rung this cycle.
		return nil
	}
	user, err := e.users.GetByID(ctx, client.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", client.UserID, err)
	}
	if err := e.dispatcher.SendUsageThresholdNotice(ctx, user, client, threshold); err != nil {
		return fmt.Errorf("send threshold notice: %w", err)
	}
	return nil
}

// crossedThreshold returns the highest ladder rung at or below the client's
// current usage that has not been notified yet.
func crossedThreshold(client *domain.Client) (int, bool) {
	pct := client.UsagePercent()
	for i := len(NotifyThresholds) - 1; i >= 0; i-- {
		t := NotifyThresholds[i]
		if pct >= t && client.LastNotifiedThreshold < t {
			return t, true
		}
	}
	return 0, false
}

// ResetDueClients rolls every client whose reset date has passed into a new
// cycle. Each client is handled independently; one failure does not stop
// the sweep. Returns the number of clients reset.
func (e *Engine) ResetDueClients(ctx context.Context) (int, error) {
	now := e.now().UTC()
	due, err := e.clients.ListResetDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list reset due: %w", err)
	}
	var reset int
	for _, client := range due {
		ok, err := e.resetClient(ctx, client.ID, now)
		if err != nil {
			e.logger.Error().Err(err).Str("client_id", client.ID).Msg("reset client cycle")
			continue
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}

func (e *Engine) resetClient(ctx context.Context, clientID string, now time.Time) (bool, error) {
	nextReset := FirstOfNextMonth(now)
	previousUsage, client, err := e.clients.ResetCycle(ctx, clientID, nextReset)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between listing and reset.
			return false, nil
		}
		return false, err
	}

	summary := notify.MonthlySummary{
		PreviousUsage: previousUsage,
		NextResetDate: nextReset,
	}
	if client.UsageQuota > 0 {
		summary.UsagePercent = previousUsage * 100 / client.UsageQuota
	}
	user, err := e.users.GetByID(ctx, client.UserID)
	if err != nil {
		e.logger.Warn().Err(err).Str("client_id", client.ID).Msg("skip monthly summary, user lookup failed")
		return true, nil
	}
	if err := e.dispatcher.SendMonthlySummary(ctx, user, client, summary); err != nil {
		e.logger.Warn().Err(err).Str("client_id", client.ID).Msg("monthly summary send failed")
	}
	return true, nil
}

// FirstOfNextMonth returns midnight UTC on the first day of the month after
// t.
func FirstOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
