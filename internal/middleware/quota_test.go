package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/notify"
	"server/internal/quota"
)

type gateClientRepo struct {
	byKey map[string]*domain.Client
}

func (g *gateClientRepo) GetByID(_ context.Context, id string) (*domain.Client, error) {
	for _, c := range g.byKey {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (g *gateClientRepo) GetByAPIKey(_ context.Context, key string) (*domain.Client, error) {
	c, ok := g.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (g *gateClientRepo) ConsumeUsage(_ context.Context, id string, now time.Time) (*domain.Client, error) {
	c, err := g.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ClientStatusActive {
		return nil, &domain.ClientInactiveError{Status: c.Status}
	}
	if c.UsageCount >= c.UsageQuota {
		return nil, &domain.QuotaExceededError{ResetDate: c.ResetDate}
	}
	c.UsageCount++
	cp := *c
	return &cp, nil
}

func (g *gateClientRepo) AdvanceNotifiedThreshold(context.Context, string, int) (bool, error) {
	return false, nil
}

func (g *gateClientRepo) ListResetDue(context.Context, time.Time) ([]domain.Client, error) {
	return nil, nil
}

func (g *gateClientRepo) ResetCycle(context.Context, string, time.Time) (int, *domain.Client, error) {
	return 0, nil, domain.ErrNotFound
}

func (g *gateClientRepo) SetStatus(context.Context, string, domain.ClientStatus) error { return nil }
func (g *gateClientRepo) SetQuota(context.Context, string, int) error                  { return nil }

type gateUserRepo struct{}

func (gateUserRepo) GetByID(context.Context, string) (*domain.User, error) {
	return &domain.User{ID: "u1"}, nil
}

func (gateUserRepo) MarkForDeletion(context.Context, string, time.Time, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (gateUserRepo) CancelDeletion(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (gateUserRepo) SetInactivityWarning(context.Context, string, time.Time) error { return nil }

func (gateUserRepo) UpdatePreferences(context.Context, string, domain.RetentionPreferences) error {
	return nil
}

func (gateUserRepo) ListMarkedForDeletion(context.Context, int, int) ([]domain.User, int, error) {
	return nil, 0, nil
}

func (gateUserRepo) ListForRetention(context.Context) ([]domain.User, error) { return nil, nil }

func newGate(repo *gateClientRepo) func(http.Handler) http.Handler {
	engine := quota.NewEngine(repo, gateUserRepo{}, notify.NopDispatcher{}, zerolog.Nop())
	return QuotaGate(engine, repo, zerolog.Nop())
}

func okHandler(t *testing.T, sawClient *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClientFromContext(r.Context()) != nil {
			*sawClient = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestQuotaGateAllowsAndConsumes(t *testing.T) {
	repo := &gateClientRepo{byKey: map[string]*domain.Client{
		"key-1": {ID: "c1", UserID: "u1", APIKey: "key-1", Status: domain.ClientStatusActive, UsageCount: 0, UsageQuota: 10},
	}}
	var sawClient bool
	h := newGate(repo)(okHandler(t, &sawClient))

	req := httptest.NewRequest(http.MethodGet, "/v1/insights", nil)
	req.Header.Set("X-API-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !sawClient {
		t.Fatal("client not propagated to handler context")
	}
	if repo.byKey["key-1"].UsageCount != 1 {
		t.Fatalf("usage count = %d, want 1", repo.byKey["key-1"].UsageCount)
	}
}

func TestQuotaGateMissingKey(t *testing.T) {
	h := newGate(&gateClientRepo{byKey: map[string]*domain.Client{}})(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestQuotaGateUnknownKey(t *testing.T) {
	h := newGate(&gateClientRepo{byKey: map[string]*domain.Client{}})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestQuotaGateInactiveClient(t *testing.T) {
	tests := []struct {
		status domain.ClientStatus
		want   string
	}{
		{domain.ClientStatusPending, "client is pending"},
		{domain.ClientStatusSuspended, "client is suspended"},
		{domain.ClientStatusRevoked, "client is revoked"},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			repo := &gateClientRepo{byKey: map[string]*domain.Client{
				"key-1": {ID: "c1", APIKey: "key-1", Status: tc.status, UsageQuota: 10},
			}}
			h := newGate(repo)(http.NotFoundHandler())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-API-Key", "key-1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", rec.Code)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tc.want {
				t.Fatalf("error = %q, want %q", body.Error, tc.want)
			}
		})
	}
}

func TestQuotaGateExhaustedIncludesResetDate(t *testing.T) {
	reset := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	repo := &gateClientRepo{byKey: map[string]*domain.Client{
		"key-1": {ID: "c1", APIKey: "key-1", Status: domain.ClientStatusActive, UsageCount: 10, UsageQuota: 10, ResetDate: reset},
	}}
	h := newGate(repo)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "key-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body struct {
		Error     string     `json:"error"`
		ResetDate *time.Time `json:"reset_date"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ResetDate == nil || !body.ResetDate.Equal(reset) {
		t.Fatalf("reset_date = %v, want %v", body.ResetDate, reset)
	}
	if repo.byKey["key-1"].UsageCount != 10 {
		t.Fatalf("usage count grew past quota: %d", repo.byKey["key-1"].UsageCount)
	}
}
