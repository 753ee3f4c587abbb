package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/notify"
)

type fakeClientRepo struct {
	clients map[string]*domain.Client

	consumeErr error
	claimErr   error
	resetDue   []domain.Client
	resetErr   map[string]error
	resets     []string
}

func (f *fakeClientRepo) GetByID(_ context.Context, id string) (*domain.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClientRepo) GetByAPIKey(context.Context, string) (*domain.Client, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeClientRepo) ConsumeUsage(_ context.Context, id string, now time.Time) (*domain.Client, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	c, ok := f.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status != domain.ClientStatusActive {
		return nil, domain.ErrClientInactive
	}
	if c.UsageCount >= c.UsageQuota {
		return nil, &domain.QuotaExceededError{ResetDate: c.ResetDate}
	}
	c.UsageCount++
	c.LastUsedAt = &now
	cp := *c
	return &cp, nil
}

func (f *fakeClientRepo) AdvanceNotifiedThreshold(_ context.Context, id string, threshold int) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	c, ok := f.clients[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.LastNotifiedThreshold >= threshold {
		return false, nil
	}
	c.LastNotifiedThreshold = threshold
	return true, nil
}

func (f *fakeClientRepo) ListResetDue(context.Context, time.Time) ([]domain.Client, error) {
	return f.resetDue, nil
}

func (f *fakeClientRepo) ResetCycle(_ context.Context, id string, nextReset time.Time) (int, *domain.Client, error) {
	if err := f.resetErr[id]; err != nil {
		return 0, nil, err
	}
	c, ok := f.clients[id]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}
	prev := c.UsageCount
	c.UsageCount = 0
	c.LastNotifiedThreshold = 0
	c.ResetDate = nextReset
	f.resets = append(f.resets, id)
	cp := *c
	return prev, &cp, nil
}

func (f *fakeClientRepo) SetStatus(context.Context, string, domain.ClientStatus) error { return nil }
func (f *fakeClientRepo) SetQuota(context.Context, string, int) error                  { return nil }

type fakeUserRepo struct {
	users map[string]*domain.User
	err   error
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) MarkForDeletion(context.Context, string, time.Time, string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) CancelDeletion(context.Context, string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) SetInactivityWarning(context.Context, string, time.Time) error { return nil }

func (f *fakeUserRepo) UpdatePreferences(context.Context, string, domain.RetentionPreferences) error {
	return nil
}

func (f *fakeUserRepo) ListMarkedForDeletion(context.Context, int, int) ([]domain.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUserRepo) ListForRetention(context.Context) ([]domain.User, error) { return nil, nil }

type recordingDispatcher struct {
	thresholds []int
	exceeded   int
	summaries  []notify.MonthlySummary
	closures   []notify.ClosureNotice
	err        error
}

func (r *recordingDispatcher) SendUsageThresholdNotice(_ context.Context, _ *domain.User, _ *domain.Client, pct int) error {
	if r.err != nil {
		return r.err
	}
	r.thresholds = append(r.thresholds, pct)
	return nil
}

func (r *recordingDispatcher) SendQuotaExceededNotice(context.Context, *domain.User, *domain.Client) error {
	if r.err != nil {
		return r.err
	}
	r.exceeded++
	return nil
}

func (r *recordingDispatcher) SendMonthlySummary(_ context.Context, _ *domain.User, _ *domain.Client, s notify.MonthlySummary) error {
	if r.err != nil {
		return r.err
	}
	r.summaries = append(r.summaries, s)
	return nil
}

func (r *recordingDispatcher) SendAccountClosureNotice(_ context.Context, _ *domain.User, n notify.ClosureNotice) error {
	if r.err != nil {
		return r.err
	}
	r.closures = append(r.closures, n)
	return nil
}

func (r *recordingDispatcher) SendInactivityWarning(context.Context, *domain.User, int) error {
	return r.err
}

func newTestEngine(clients *fakeClientRepo, users *fakeUserRepo, d notify.Dispatcher) *Engine {
	e := NewEngine(clients, users, d, zerolog.Nop())
	e.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func activeClient(id, userID string, used, quota, notified int) *domain.Client {
	return &domain.Client{
		ID:                    id,
		UserID:                userID,
		Name:                  "test",
		Status:                domain.ClientStatusActive,
		UsageCount:            used,
		UsageQuota:            quota,
		LastNotifiedThreshold: notified,
		ResetDate:             time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckAndConsumeIncrements(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]*domain.Client{
		"c1": activeClient("c1", "u1", 10, 100, 0),
	}}
	e := newTestEngine(repo, &fakeUserRepo{}, &recordingDispatcher{})

	c, err := e.CheckAndConsume(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.UsageCount != 11 {
		t.Fatalf("usage count = %d, want 11", c.UsageCount)
	}
	if c.LastUsedAt == nil {
		t.Fatal("last_used_at not stamped")
	}
}

func TestCheckAndConsumeExhausted(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]*domain.Client{
		"c1": activeClient("c1", "u1", 100, 100, 95),
	}}
	e := newTestEngine(repo, &fakeUserRepo{}, &recordingDispatcher{})

	_, err := e.CheckAndConsume(context.Background(), "c1")
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("error = %v, want ErrQuotaExceeded", err)
	}
	var qe *domain.QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("error %v does not carry reset date", err)
	}
	if qe.ResetDate.IsZero() {
		t.Fatal("reset date is zero")
	}
}

func TestCheckAndConsumeInactive(t *testing.T) {
	c := activeClient("c1", "u1", 0, 100, 0)
	c.Status = domain.ClientStatusSuspended
	repo := &fakeClientRepo{clients: map[string]*domain.Client{"c1": c}}
	e := newTestEngine(repo, &fakeUserRepo{}, &recordingDispatcher{})

	if _, err := e.CheckAndConsume(context.Background(), "c1"); !errors.Is(err, domain.ErrClientInactive) {
		t.Fatalf("error = %v, want ErrClientInactive", err)
	}
}

func TestAfterConsumeFiresHighestCrossedThreshold(t *testing.T) {
	tests := []struct {
		name     string
		used     int
		quota    int
		notified int
		want     []int
	}{
		{"below ladder", 10, 100, 0, nil},
		{"at 25", 25, 100, 0, []int{25}},
		{"skip straight to 90", 92, 100, 0, []int{90}},
		{"already notified", 50, 100, 50, nil},
		{"next rung after earlier notice", 76, 100, 50, []int{75}},
		{"at 95", 95, 100, 90, []int{95}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeClientRepo{clients: map[string]*domain.Client{
				"c1": activeClient("c1", "u1", tc.used, tc.quota, tc.notified),
			}}
			users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1", Email: "u@example.com"}}}
			d := &recordingDispatcher{}
			e := newTestEngine(repo, users, d)

			e.AfterConsume(context.Background(), repo.clients["c1"])

			if len(d.thresholds) != len(tc.want) {
				t.Fatalf("sent %v, want %v", d.thresholds, tc.want)
			}
			for i := range tc.want {
				if d.thresholds[i] != tc.want[i] {
					t.Fatalf("sent %v, want %v", d.thresholds, tc.want)
				}
			}
		})
	}
}

func TestAfterConsumeIdempotentPerRung(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]*domain.Client{
		"c1": activeClient("c1", "u1", 50, 100, 0),
	}}
	users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	d := &recordingDispatcher{}
	e := newTestEngine(repo, users, d)

	e.AfterConsume(context.Background(), repo.clients["c1"])
	e.AfterConsume(context.Background(), repo.clients["c1"])

	if len(d.thresholds) != 1 || d.thresholds[0] != 50 {
		t.Fatalf("sent %v, want exactly one notice at 50", d.thresholds)
	}
}

func TestAfterConsumeFinalUnitSendsExceededNotice(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]*domain.Client{
		"c1": activeClient("c1", "u1", 100, 100, 95),
	}}
	users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	d := &recordingDispatcher{}
	e := newTestEngine(repo, users, d)

	e.AfterConsume(context.Background(), repo.clients["c1"])

	if d.exceeded != 1 {
		t.Fatalf("exceeded notices = %d, want 1", d.exceeded)
	}
	if len(d.thresholds) != 0 {
		t.Fatalf("ladder notices = %v, want none", d.thresholds)
	}
	if repo.clients["c1"].LastNotifiedThreshold != 100 {
		t.Fatalf("last notified = %d, want 100", repo.clients["c1"].LastNotifiedThreshold)
	}

	// A denied request afterwards must not repeat the notice.
	e.NotifyExhausted(context.Background(), "c1")
	if d.exceeded != 1 {
		t.Fatalf("exceeded notices after denial = %d, want 1", d.exceeded)
	}
}

func TestNotifyExhaustedOncePerCycle(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]*domain.Client{
		"c1": activeClient("c1", "u1", 100, 100, 95),
	}}
	users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	d := &recordingDispatcher{}
	e := newTestEngine(repo, users, d)

	e.NotifyExhausted(context.Background(), "c1")
	e.NotifyExhausted(context.Background(), "c1")

	if d.exceeded != 1 {
		t.Fatalf("exceeded notices = %d, want 1", d.exceeded)
	}
	if repo.clients["c1"].LastNotifiedThreshold != 100 {
		t.Fatalf("last notified = %d, want 100", repo.clients["c1"].LastNotifiedThreshold)
	}
}

func TestResetDueClientsRollsCycle(t *testing.T) {
	c1 := activeClient("c1", "u1", 80, 100, 75)
	c2 := activeClient("c2", "u1", 5, 100, 0)
	repo := &fakeClientRepo{
		clients:  map[string]*domain.Client{"c1": c1, "c2": c2},
		resetDue: []domain.Client{*c1, *c2},
	}
	users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	d := &recordingDispatcher{}
	e := newTestEngine(repo, users, d)

	n, err := e.ResetDueClients(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("reset count = %d, want 2", n)
	}
	if c1.UsageCount != 0 || c1.LastNotifiedThreshold != 0 {
		t.Fatalf("c1 not reset: used=%d notified=%d", c1.UsageCount, c1.LastNotifiedThreshold)
	}
	wantReset := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !c1.ResetDate.Equal(wantReset) {
		t.Fatalf("reset date = %v, want %v", c1.ResetDate, wantReset)
	}
	if len(d.summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(d.summaries))
	}
	if d.summaries[0].PreviousUsage != 80 || d.summaries[0].UsagePercent != 80 {
		t.Fatalf("summary = %+v, want previous usage 80 at 80%%", d.summaries[0])
	}
}

func TestResetDueClientsIsolatesFailures(t *testing.T) {
	c1 := activeClient("c1", "u1", 80, 100, 75)
	c2 := activeClient("c2", "u1", 5, 100, 0)
	repo := &fakeClientRepo{
		clients:  map[string]*domain.Client{"c1": c1, "c2": c2},
		resetDue: []domain.Client{*c1, *c2},
		resetErr: map[string]error{"c1": errors.New("deadlock")},
	}
	users := &fakeUserRepo{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	e := newTestEngine(repo, users, &recordingDispatcher{})

	n, err := e.ResetDueClients(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset count = %d, want 1", n)
	}
	if len(repo.resets) != 1 || repo.resets[0] != "c2" {
		t.Fatalf("resets = %v, want [c2]", repo.resets)
	}
}

func TestResetSkipsVanishedClient(t *testing.T) {
	ghost := *activeClient("gone", "u1", 3, 100, 0)
	repo := &fakeClientRepo{
		clients:  map[string]*domain.Client{},
		resetDue: []domain.Client{ghost},
	}
	e := newTestEngine(repo, &fakeUserRepo{}, &recordingDispatcher{})

	n, err := e.ResetDueClients(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("reset count = %d, want 0", n)
	}
}

func TestFirstOfNextMonth(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2026, 1, 31, 6, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		if got := FirstOfNextMonth(tc.in); !got.Equal(tc.want) {
			t.Errorf("FirstOfNextMonth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
