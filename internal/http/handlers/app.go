package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/bankfeed"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/insights"
	"server/internal/middleware"
	"server/internal/quota"
	"server/internal/retention"
	"server/internal/storage"
)

type App struct {
	SQL       infra.SQLExecutor
	Users     domain.UserRepository
	Clients   domain.ClientRepository
	Quota     *quota.Engine
	Retention *retention.Orchestrator
	BankFeed  *bankfeed.Service
	Insights  *insights.Service
	Exporter  *storage.Exporter
	Audit     domain.AuditSink
	Caps      infra.Capabilities
	Logger    zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{"error": slug, "message": message})
}

// domainError maps a service error onto an HTTP response using the error
// taxonomy. Unknown errors become a 500 with a generic message.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch domain.Kind(err) {
	case domain.KindValidation:
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case domain.KindStateConflict:
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case domain.KindCapacity:
		var qe *domain.QuotaExceededError
		if errors.As(err, &qe) {
			a.json(w, http.StatusTooManyRequests, map[string]any{
				"error":      "quota_exceeded",
				"message":    err.Error(),
				"reset_date": qe.ResetDate,
			})
			return
		}
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	default:
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "resource not found")
		case errors.Is(err, domain.ErrUnauthorized):
			a.error(w, http.StatusForbidden, "forbidden", "not allowed")
		default:
			a.Logger.Error().Err(err).Msg("unhandled service error")
			a.error(w, http.StatusInternalServerError, "internal", "internal error")
		}
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
