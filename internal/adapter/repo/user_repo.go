package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

func (r *UserRepositoryPG) MarkForDeletion(ctx context.Context, id string, at time.Time, reason string) (*domain.User, error) {
	u, err := scanUserFrom(r.sql.QueryRow(ctx, sqlinline.QMarkUserForDeletion, id, at, reason))
	if err == nil {
		return u, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	// The conditional update matched nothing: either the user is gone or a
	// request is already pending.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrAlreadyMarked
}

func (r *UserRepositoryPG) CancelDeletion(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUserFrom(r.sql.QueryRow(ctx, sqlinline.QCancelUserDeletion, id))
	if err == nil {
		return u, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrNotMarked
}

func (r *UserRepositoryPG) SetInactivityWarning(ctx context.Context, id string, at time.Time) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetInactivityWarning, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepositoryPG) UpdatePreferences(ctx context.Context, id string, prefs domain.RetentionPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateRetentionPreferences, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepositoryPG) ListMarkedForDeletion(ctx context.Context, page, limit int) ([]domain.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountMarkedForDeletion).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.sql.Query(ctx, sqlinline.QListMarkedForDeletion, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepositoryPG) ListForRetention(ctx context.Context) ([]domain.User, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUsersForRetention)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u, err := scanUserFrom(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUserFrom(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		prefs []byte
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Locale, &u.Status,
		&u.LastActivityAt, &u.InactivityWarningDate, &u.MarkedForDeletionAt,
		&u.DeletionReason, &prefs, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
