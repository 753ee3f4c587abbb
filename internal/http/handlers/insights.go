package handlers

import (
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/middleware"
)

// InsightsGenerate runs one metered insight generation for the caller. The
// quota gate has already consumed a usage unit by the time this runs.
func (a *App) InsightsGenerate(w http.ResponseWriter, r *http.Request) {
	client := middleware.ClientFromContext(r.Context())
	if client == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "api client required")
		return
	}
	insight, err := a.Insights.Generate(r.Context(), client.UserID)
	if err != nil {
		a.Logger.Error().Err(err).Str("client_id", client.ID).Msg("insight generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "insight generation failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"insight": insight,
		"usage": map[string]any{
			"used":       client.UsageCount,
			"quota":      client.UsageQuota,
			"percent":    client.UsagePercent(),
			"reset_date": client.ResetDate,
		},
	})
}

// UsageStatus reports the caller's current quota consumption without
// consuming a unit; the route sits outside the quota gate.
func (a *App) UsageStatus(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing api key")
		return
	}
	client, err := a.Clients.GetByAPIKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "unknown api key")
			return
		}
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"used":       client.UsageCount,
		"quota":      client.UsageQuota,
		"percent":    client.UsagePercent(),
		"status":     client.Status,
		"reset_date": client.ResetDate,
	})
}
