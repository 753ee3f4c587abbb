package bankfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

type fakeItems struct {
	items        map[string]*domain.BankItem
	disconnected map[string][2]time.Time
}

func (f *fakeItems) GetByID(_ context.Context, id string) (*domain.BankItem, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItems) ListForUser(_ context.Context, userID string) ([]domain.BankItem, error) {
	var out []domain.BankItem
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeItems) ListAll(context.Context) ([]domain.BankItem, error) { return nil, nil }

func (f *fakeItems) Disconnect(_ context.Context, id string, at, scheduled time.Time) (*domain.BankItem, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	it.Status = domain.BankItemStatusDisconnected
	it.DisconnectedAt = &at
	it.DeletionScheduledAt = &scheduled
	if f.disconnected == nil {
		f.disconnected = map[string][2]time.Time{}
	}
	f.disconnected[id] = [2]time.Time{at, scheduled}
	cp := *it
	return &cp, nil
}

func (f *fakeItems) ListPurgeDue(context.Context, time.Time) ([]domain.BankItem, error) {
	return nil, nil
}

func (f *fakeItems) PurgeItemData(context.Context, string) error { return nil }

type fakeConnector struct {
	removed []string
	err     error
}

func (f *fakeConnector) RemoveItem(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, token)
	return nil
}

type nopAudit struct{ entries []string }

func (a *nopAudit) Append(_ context.Context, action, _ string, _ map[string]any) error {
	a.entries = append(a.entries, action)
	return nil
}

func (a *nopAudit) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, int, error) {
	return nil, 0, nil
}

var serviceNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func newService(items *fakeItems, conn Connector) (*Service, *nopAudit) {
	sink := &nopAudit{}
	s := NewService(items, conn, sink, domain.DefaultRetentionRules(), zerolog.Nop())
	s.now = func() time.Time { return serviceNow }
	return s, sink
}

func TestDisconnectSchedulesDataDeletion(t *testing.T) {
	items := &fakeItems{items: map[string]*domain.BankItem{
		"b1": {ID: "b1", UserID: "u1", Institution: "First Bank", AccessToken: "tok-1", Status: domain.BankItemStatusActive},
	}}
	conn := &fakeConnector{}
	s, sink := newService(items, conn)

	item, err := s.Disconnect(context.Background(), "u1", "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != domain.BankItemStatusDisconnected {
		t.Fatalf("status = %s", item.Status)
	}
	if len(conn.removed) != 1 || conn.removed[0] != "tok-1" {
		t.Fatalf("provider removals = %v", conn.removed)
	}
	want := serviceNow.Add(90 * 24 * time.Hour)
	if item.DeletionScheduledAt == nil || !item.DeletionScheduledAt.Equal(want) {
		t.Fatalf("deletion scheduled = %v, want %v", item.DeletionScheduledAt, want)
	}
	if len(sink.entries) != 1 || sink.entries[0] != domain.ActionBankItemDisconnected {
		t.Fatalf("audit entries = %v", sink.entries)
	}
}

func TestDisconnectRejectsForeignItem(t *testing.T) {
	items := &fakeItems{items: map[string]*domain.BankItem{
		"b1": {ID: "b1", UserID: "owner", Status: domain.BankItemStatusActive},
	}}
	s, _ := newService(items, &fakeConnector{})

	if _, err := s.Disconnect(context.Background(), "intruder", "b1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

func TestDisconnectAlreadyDisconnected(t *testing.T) {
	items := &fakeItems{items: map[string]*domain.BankItem{
		"b1": {ID: "b1", UserID: "u1", Status: domain.BankItemStatusDisconnected},
	}}
	s, _ := newService(items, &fakeConnector{})

	if _, err := s.Disconnect(context.Background(), "u1", "b1"); !errors.Is(err, domain.ErrAlreadyMarked) {
		t.Fatalf("error = %v, want ErrAlreadyMarked", err)
	}
}

func TestDisconnectSurvivesProviderOutage(t *testing.T) {
	items := &fakeItems{items: map[string]*domain.BankItem{
		"b1": {ID: "b1", UserID: "u1", AccessToken: "tok-1", Status: domain.BankItemStatusActive},
	}}
	s, _ := newService(items, &fakeConnector{err: errors.New("plaid 500")})

	item, err := s.Disconnect(context.Background(), "u1", "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != domain.BankItemStatusDisconnected {
		t.Fatal("local disconnect blocked by provider failure")
	}
}
