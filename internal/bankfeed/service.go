package bankfeed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Service owns the bank-connection disconnect flow. Disconnecting revokes
// provider access, marks the item, and schedules its financial data for
// deletion after the configured retention window.
type Service struct {
	items     domain.BankItemRepository
	connector Connector
	audit     domain.AuditSink
	rules     domain.RetentionRules
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService builds the bank feed service. connector may be nil when no
// provider credentials are configured; disconnects then skip the provider
// call and only schedule local data deletion.
func NewService(items domain.BankItemRepository, connector Connector, auditSink domain.AuditSink, rules domain.RetentionRules, logger zerolog.Logger) *Service {
	return &Service{
		items:     items,
		connector: connector,
		audit:     auditSink,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// Disconnect revokes the connection for the given item. The caller must own
// the item. Returns ErrAlreadyMarked when the item is already disconnected.
func (s *Service) Disconnect(ctx context.Context, userID, itemID string) (*domain.BankItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if item.Status == domain.BankItemStatusDisconnected {
		return nil, domain.ErrAlreadyMarked
	}

	if s.connector != nil && item.AccessToken != "" {
		if err := s.connector.RemoveItem(ctx, item.AccessToken); err != nil {
			// Provider revocation is retried by support tooling; the local
			// disconnect must not be blocked by a provider outage.
			s.logger.Error().Err(err).Str("item_id", itemID).Msg("provider item removal failed")
		}
	}

	now := s.now().UTC()
	scheduled := now.Add(time.Duration(s.rules.BankDisconnectDays) * 24 * time.Hour)
	updated, err := s.items.Disconnect(ctx, itemID, now, scheduled)
	if err != nil {
		return nil, err
	}

	if err := s.audit.Append(ctx, domain.ActionBankItemDisconnected, userID, map[string]any{
		"item_id":            itemID,
		"institution":        item.Institution,
		"deletion_scheduled": scheduled,
	}); err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID).Msg("audit append failed")
	}
	return updated, nil
}

// List returns the user's bank connections.
func (s *Service) List(ctx context.Context, userID string) ([]domain.BankItem, error) {
	return s.items.ListForUser(ctx, userID)
}
