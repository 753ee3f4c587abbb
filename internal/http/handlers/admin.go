package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// AdminRetentionAudit runs the dry-run compliance classification.
func (a *App) AdminRetentionAudit(w http.ResponseWriter, r *http.Request) {
	report, err := a.Retention.AuditCompliance(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, report)
}

// AdminRetentionPolicy reports the configured policy durations together with
// how many accounts currently sit in the deletion pipeline.
func (a *App) AdminRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	rules := a.Retention.Policy().Rules()
	_, marked, err := a.Users.ListMarkedForDeletion(r.Context(), 1, 1)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"rules": map[string]int{
			"inactivity_warning_days": rules.InactivityWarningDays,
			"inactivity_grace_days":   rules.InactivityGraceDays,
			"deletion_period_days":    rules.DeletionPeriodDays,
			"transaction_days":        rules.TransactionDays,
			"insight_days":            rules.InsightDays,
			"bank_disconnect_days":    rules.BankDisconnectDays,
		},
		"marked_for_deletion": marked,
	})
}

// AdminUserPreferencesUpdate patches retention preferences on behalf of a
// user, e.g. for a support request.
func (a *App) AdminUserPreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	a.updatePreferences(w, r, chi.URLParam(r, "id"), a.currentUserID(r))
}

// AdminRetentionSweep triggers one retention sweep outside the scheduler.
func (a *App) AdminRetentionSweep(w http.ResponseWriter, r *http.Request) {
	result, err := a.Retention.SweepRetention(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

// AdminMarkedUsers lists accounts pending deletion, paginated.
func (a *App) AdminMarkedUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	users, total, err := a.Users.ListMarkedForDeletion(r.Context(), page, limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(users))
	for _, u := range users {
		items = append(items, map[string]any{
			"id":                 u.ID,
			"email":              u.Email,
			"marked_at":          u.MarkedForDeletionAt,
			"deletion_reason":    u.DeletionReason,
			"scheduled_deletion": a.Retention.Policy().ScheduledDeletionDate(u),
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type forceDeleteRequest struct {
	Confirmation string `json:"confirmation"`
	Reason       string `json:"reason"`
}

// AdminForceDelete purges a user immediately, bypassing the grace period.
func (a *App) AdminForceDelete(w http.ResponseWriter, r *http.Request) {
	var req forceDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	targetID := chi.URLParam(r, "id")
	adminID := a.currentUserID(r)
	stats, err := a.Retention.ForceDelete(r.Context(), adminID, targetID, req.Confirmation, req.Reason, clientIP(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"purged": stats})
}

// AdminAuditLogs lists audit entries filtered by action and date range.
func (a *App) AdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	if !a.Caps.HasAuditLog {
		a.json(w, http.StatusOK, map[string]any{"items": []any{}, "total": 0})
		return
	}
	filter := domain.AuditFilter{
		Action: r.URL.Query().Get("action"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid start_date")
			return
		}
		filter.StartDate = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid end_date")
			return
		}
		filter.EndDate = &t
	}

	entries, total, err := a.Audit.List(r.Context(), filter)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"id":         e.ID,
			"action":     e.Action,
			"actor_id":   e.ActorID,
			"details":    e.Details,
			"created_at": e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// AdminClientApprove activates a pending API client.
func (a *App) AdminClientApprove(w http.ResponseWriter, r *http.Request) {
	a.setClientStatus(w, r, domain.ClientStatusActive, domain.ActionClientApproved)
}

// AdminClientSuspend suspends an API client; its requests fail until
// reactivated.
func (a *App) AdminClientSuspend(w http.ResponseWriter, r *http.Request) {
	a.setClientStatus(w, r, domain.ClientStatusSuspended, domain.ActionClientSuspended)
}

func (a *App) setClientStatus(w http.ResponseWriter, r *http.Request, status domain.ClientStatus, action string) {
	clientID := chi.URLParam(r, "id")
	if _, err := a.Clients.GetByID(r.Context(), clientID); err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Clients.SetStatus(r.Context(), clientID, status); err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Audit.Append(r.Context(), action, a.currentUserID(r), map[string]any{
		"client_id": clientID,
	}); err != nil {
		a.Logger.Error().Err(err).Msg("audit append failed")
	}
	a.json(w, http.StatusOK, map[string]any{"id": clientID, "status": status})
}

type quotaUpdateRequest struct {
	Quota int `json:"quota"`
}

// AdminClientQuotaUpdate changes a client's usage quota.
func (a *App) AdminClientQuotaUpdate(w http.ResponseWriter, r *http.Request) {
	var req quotaUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Quota <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "quota must be positive")
		return
	}
	clientID := chi.URLParam(r, "id")
	if _, err := a.Clients.GetByID(r.Context(), clientID); err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Clients.SetQuota(r.Context(), clientID, req.Quota); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": clientID, "quota": req.Quota})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
