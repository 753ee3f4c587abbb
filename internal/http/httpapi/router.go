package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/middleware"
	"server/internal/quota"
)

// Options bundles what the router needs beyond the handler set.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	QuotaEngine     *quota.Engine
	Clients         domain.ClientRepository
	Logger          zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(nil),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	// Metered data-plane routes. Every request consumes one quota unit.
	r.Group(func(r chi.Router) {
		r.Use(middleware.QuotaGate(opts.QuotaEngine, opts.Clients, opts.Logger))
		r.Post("/v1/insights", app.InsightsGenerate)
	})

	// Quota status sits outside the gate so checking usage costs nothing.
	r.Get("/v1/usage", app.UsageStatus)

	// Account lifecycle, authenticated by JWT.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Route("/v1/account", func(r chi.Router) {
			r.Post("/closure", app.AccountClosureRequest)
			r.Delete("/closure", app.AccountClosureCancel)
			r.Patch("/preferences", app.AccountPreferencesUpdate)
			r.Get("/export", app.AccountExport)
		})
		r.Route("/v1/bank-items", func(r chi.Router) {
			r.Get("/", app.BankItemsList)
			r.Post("/{id}/disconnect", app.BankItemDisconnect)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/retention/policy", app.AdminRetentionPolicy)
			r.Get("/retention/audit", app.AdminRetentionAudit)
			r.Post("/retention/sweep", app.AdminRetentionSweep)
			r.Get("/users/marked", app.AdminMarkedUsers)
			r.Patch("/users/{id}/preferences", app.AdminUserPreferencesUpdate)
			r.Delete("/users/{id}", app.AdminForceDelete)
			r.Get("/audit-logs", app.AdminAuditLogs)
			r.Post("/clients/{id}/approve", app.AdminClientApprove)
			r.Post("/clients/{id}/suspend", app.AdminClientSuspend)
			r.Patch("/clients/{id}/quota", app.AdminClientQuotaUpdate)
		})
	})

	return r
}
