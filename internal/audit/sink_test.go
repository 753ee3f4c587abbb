package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

type stubExecutor struct {
	execQuery string
	execArgs  []any
	execErr   error
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQuery = query
	s.execArgs = args
	return pgconn.CommandTag{}, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestAppendWritesEntry(t *testing.T) {
	exec := &stubExecutor{}
	sink := NewSink(exec, true, zerolog.Nop())

	err := sink.Append(context.Background(), domain.ActionClosureInitiated, "u1", map[string]any{"reason": "moving on"})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if exec.execQuery == "" {
		t.Fatal("expected an insert to run")
	}
	if len(exec.execArgs) != 3 {
		t.Fatalf("insert args = %d, want 3", len(exec.execArgs))
	}
	if exec.execArgs[0] != domain.ActionClosureInitiated || exec.execArgs[1] != "u1" {
		t.Fatalf("unexpected args: %v", exec.execArgs)
	}

	var details map[string]any
	if err := json.Unmarshal(exec.execArgs[2].([]byte), &details); err != nil {
		t.Fatalf("details payload not JSON: %v", err)
	}
	if details["reason"] != "moving on" {
		t.Fatalf("details = %v", details)
	}
}

func TestAppendSubstitutesSystemActor(t *testing.T) {
	exec := &stubExecutor{}
	sink := NewSink(exec, true, zerolog.Nop())

	if err := sink.Append(context.Background(), domain.ActionAccountPurged, "", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if exec.execArgs[1] != domain.SystemActorID {
		t.Fatalf("actor = %v, want system sentinel", exec.execArgs[1])
	}
}

func TestAppendDisabledSkipsWrite(t *testing.T) {
	exec := &stubExecutor{execErr: errors.New("must not be called")}
	sink := NewSink(exec, false, zerolog.Nop())

	if err := sink.Append(context.Background(), domain.ActionAccountPurged, "u1", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if exec.execQuery != "" {
		t.Fatal("disabled sink must not touch the database")
	}
}

func TestTryAppendSwallowsFailure(t *testing.T) {
	exec := &stubExecutor{execErr: errors.New("insert failed")}
	sink := NewSink(exec, true, zerolog.Nop())

	// Must not panic or propagate.
	sink.TryAppend(context.Background(), domain.ActionClosureCancelled, "u1", nil)
}

func TestListDisabledReturnsEmpty(t *testing.T) {
	sink := NewSink(&stubExecutor{}, false, zerolog.Nop())

	entries, total, err := sink.List(context.Background(), domain.AuditFilter{Action: "account_purged"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Fatalf("expected empty result, got %d entries total %d", len(entries), total)
	}
}
