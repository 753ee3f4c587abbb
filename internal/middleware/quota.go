package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/quota"
)

const (
	apiKeyHeader = "X-API-Key"

	clientKey userKey = "api_client"
)

type quotaErrorBody struct {
	Error     string     `json:"error"`
	ResetDate *time.Time `json:"reset_date,omitempty"`
}

// QuotaGate meters every request on the caller's API client. The conditional
// increment happens before the handler runs; threshold evaluation runs after
// the response, off the request path.
func QuotaGate(engine *quota.Engine, clients domain.ClientRepository, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if key == "" {
				writeQuotaError(w, http.StatusUnauthorized, quotaErrorBody{Error: "missing api key"})
				return
			}
			client, err := clients.GetByAPIKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeQuotaError(w, http.StatusUnauthorized, quotaErrorBody{Error: "unknown api key"})
					return
				}
				logger.Error().Err(err).Msg("api key lookup failed")
				writeQuotaError(w, http.StatusInternalServerError, quotaErrorBody{Error: "internal error"})
				return
			}

			consumed, err := engine.CheckAndConsume(r.Context(), client.ID)
			if err != nil {
				var qe *domain.QuotaExceededError
				switch {
				case errors.As(err, &qe):
					go engine.NotifyExhausted(context.Background(), client.ID)
					writeQuotaError(w, http.StatusTooManyRequests, quotaErrorBody{
						Error:     "usage quota exceeded",
						ResetDate: &qe.ResetDate,
					})
				case errors.Is(err, domain.ErrClientInactive):
					msg := "client is not active"
					var ie *domain.ClientInactiveError
					if errors.As(err, &ie) {
						msg = fmt.Sprintf("client is %s", ie.Status)
					}
					writeQuotaError(w, http.StatusForbidden, quotaErrorBody{Error: msg})
				case errors.Is(err, domain.ErrNotFound):
					writeQuotaError(w, http.StatusUnauthorized, quotaErrorBody{Error: "unknown api key"})
				default:
					logger.Error().Err(err).Str("client_id", client.ID).Msg("quota consume failed")
					writeQuotaError(w, http.StatusInternalServerError, quotaErrorBody{Error: "internal error"})
				}
				return
			}

			ctx := context.WithValue(r.Context(), clientKey, consumed)
			ctx = ContextWithUserID(ctx, consumed.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))

			go engine.AfterConsume(context.Background(), consumed)
		})
	}
}

// ClientFromContext returns the API client resolved by QuotaGate.
func ClientFromContext(ctx context.Context) *domain.Client {
	if c, ok := ctx.Value(clientKey).(*domain.Client); ok {
		return c
	}
	return nil
}

func writeQuotaError(w http.ResponseWriter, status int, body quotaErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
