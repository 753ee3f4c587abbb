package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"server/internal/domain"
)

type closureRequest struct {
	Confirmation string `json:"confirmation"`
	Reason       string `json:"reason"`
}

// AccountClosureRequest marks the caller's account for deletion after the
// grace period.
func (a *App) AccountClosureRequest(w http.ResponseWriter, r *http.Request) {
	var req closureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	user, err := a.Retention.RequestClosure(r.Context(), a.currentUserID(r), req.Confirmation, req.Reason)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"status":             user.Status,
		"marked_at":          user.MarkedForDeletionAt,
		"scheduled_deletion": a.Retention.Policy().ScheduledDeletionDate(*user),
	})
}

// AccountClosureCancel reverses a pending closure within the grace period.
func (a *App) AccountClosureCancel(w http.ResponseWriter, r *http.Request) {
	user, err := a.Retention.CancelClosure(r.Context(), a.currentUserID(r))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"status": user.Status})
}

type preferencesRequest struct {
	TransactionRetentionDays *int  `json:"transaction_retention_days"`
	InsightRetentionDays     *int  `json:"insight_retention_days"`
	EmailNotifications       *bool `json:"email_notifications"`
	AnalyticalDataUse        *bool `json:"analytical_data_use"`
}

// AccountPreferencesUpdate applies partial changes to the caller's retention
// preferences.
func (a *App) AccountPreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	a.updatePreferences(w, r, userID, userID)
}

// updatePreferences patches the target user's retention preferences,
// recording actorID in the audit trail. Both the self-service and admin
// endpoints funnel through here.
func (a *App) updatePreferences(w http.ResponseWriter, r *http.Request, userID, actorID string) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	prefs := user.Preferences
	if req.TransactionRetentionDays != nil {
		if *req.TransactionRetentionDays < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "transaction_retention_days must not be negative")
			return
		}
		prefs.TransactionRetentionDays = *req.TransactionRetentionDays
	}
	if req.InsightRetentionDays != nil {
		if *req.InsightRetentionDays < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "insight_retention_days must not be negative")
			return
		}
		prefs.InsightRetentionDays = *req.InsightRetentionDays
	}
	if req.EmailNotifications != nil {
		prefs.EmailNotifications = *req.EmailNotifications
	}
	if req.AnalyticalDataUse != nil {
		prefs.AnalyticalDataUse = *req.AnalyticalDataUse
	}

	if err := a.Users.UpdatePreferences(r.Context(), userID, prefs); err != nil {
		a.domainError(w, err)
		return
	}
	details := map[string]any{"preferences": prefs}
	if actorID != userID {
		details["target_user_id"] = userID
	}
	if err := a.Audit.Append(r.Context(), domain.ActionRetentionPrefs, actorID, details); err != nil {
		a.Logger.Error().Err(err).Msg("audit append failed")
	}
	a.json(w, http.StatusOK, map[string]any{"preferences": prefs})
}

// AccountExport streams a zip archive of the caller's financial data.
func (a *App) AccountExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	key, archive, err := a.Exporter.Export(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("account export failed")
		a.error(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "account-export.zip"))
	w.Header().Set("X-Export-Key", key)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
