package handlers

import (
	"net/http"

	"server/internal/sqlinline"
)

// Health reports liveness and verifies the database can still answer a
// trivial query.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QHealthCheck).Scan(&one); err != nil {
		a.Logger.Error().Err(err).Msg("health check database probe failed")
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
