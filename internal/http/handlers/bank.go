package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BankItemsList returns the caller's bank connections.
func (a *App) BankItemsList(w http.ResponseWriter, r *http.Request) {
	items, err := a.BankFeed.List(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"id":                    it.ID,
			"institution":           it.Institution,
			"status":                it.Status,
			"disconnected_at":       it.DisconnectedAt,
			"deletion_scheduled_at": it.DeletionScheduledAt,
			"created_at":            it.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

// BankItemDisconnect revokes a bank connection and schedules its data for
// deletion.
func (a *App) BankItemDisconnect(w http.ResponseWriter, r *http.Request) {
	if !a.Caps.HasBankFeed {
		a.error(w, http.StatusNotImplemented, "not_configured", "bank feed is not configured")
		return
	}
	itemID := chi.URLParam(r, "id")
	item, err := a.BankFeed.Disconnect(r.Context(), a.currentUserID(r), itemID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":                    item.ID,
		"status":                item.Status,
		"disconnected_at":       item.DisconnectedAt,
		"deletion_scheduled_at": item.DeletionScheduledAt,
	})
}
