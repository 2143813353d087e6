package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

const userColumns = `id, uuid, name, display_name, pswd, token, avatar, role,
	banned, banned_until, ban_reason, deletion_scheduled_at, deleted_at,
	deletion_initiated_by, expires_at, system_account, system_key, registered_at`

type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, constructor.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                      models.User
		pswd, token, avatar, banReason, sysKey sql.NullString
		bannedUntil, scheduled, deleted        sql.NullInt64
		initiatedBy, expires                   sql.NullInt64
		role                                   string
		registered                             int64
	)

	err := row.Scan(
		&u.ID, &u.UUID, &u.Name, &u.DisplayName, &pswd, &token, &avatar, &role,
		&u.Banned, &bannedUntil, &banReason, &scheduled, &deleted,
		&initiatedBy, &expires, &u.SystemAccount, &sysKey, &registered,
	)
	if err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	u.Password = fromNullString(pswd)
	u.Token = fromNullString(token)
	u.Avatar = fromNullString(avatar)
	u.BanReason = fromNullString(banReason)
	u.SystemKey = fromNullString(sysKey)
	u.BannedUntil = fromNullMillis(bannedUntil)
	u.DeletionScheduledAt = fromNullMillis(scheduled)
	u.DeletedAt = fromNullMillis(deleted)
	u.DeletionInitiatedBy = fromNullInt64(initiatedBy)
	u.ExpiresAt = fromNullMillis(expires)
	u.RegisteredAt = fromMillis(registered)
	return &u, nil
}

func (r *sqliteUserRepo) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) list(ctx context.Context, where string, args ...any) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// exec runs a single-row update and maps zero affected rows to ErrNotFound.
func (r *sqliteUserRepo) exec(ctx context.Context, what, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (uuid, name, display_name, pswd, token, role, expires_at,
			system_account, system_key, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		user.UUID,
		user.Name,
		user.DisplayName,
		user.Password,
		user.Token,
		string(user.Role),
		nullMillis(user.ExpiresAt),
		user.SystemAccount,
		user.SystemKey,
		toMillis(user.RegisteredAt),
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return pkg.ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *sqliteUserRepo) GetByName(ctx context.Context, name string) (*models.User, error) {
	return r.getOne(ctx, "name = ?", name)
}

func (r *sqliteUserRepo) GetByUUID(ctx context.Context, uuid string) (*models.User, error) {
	return r.getOne(ctx, "uuid = ?", uuid)
}

func (r *sqliteUserRepo) GetByToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "token = ? AND deleted_at IS NULL", token)
}

func (r *sqliteUserRepo) IssueToken(ctx context.Context, id int64, token string, expiresAt *time.Time) error {
	return r.exec(ctx, "issue token",
		`UPDATE users SET token = ?, expires_at = ? WHERE id = ? AND deleted_at IS NULL`,
		token, nullMillis(expiresAt), id)
}

func (r *sqliteUserRepo) ExpireToken(ctx context.Context, id int64, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET token = NULL, expires_at = NULL WHERE id = ? AND token = ?`,
		id, token)
	if err != nil {
		return false, fmt.Errorf("failed to expire token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *sqliteUserRepo) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	return r.exec(ctx, "update avatar",
		`UPDATE users SET avatar = ? WHERE id = ? AND deleted_at IS NULL`, avatar, id)
}

func (r *sqliteUserRepo) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	return r.exec(ctx, "update role",
		`UPDATE users SET role = ? WHERE id = ? AND deleted_at IS NULL`, string(role), id)
}

func (r *sqliteUserRepo) SetBan(ctx context.Context, id int64, until *time.Time, reason string) error {
	var reasonArg sql.NullString
	if reason != "" {
		reasonArg = sql.NullString{String: reason, Valid: true}
	}
	return r.exec(ctx, "ban user",
		`UPDATE users SET banned = 1, banned_until = ?, ban_reason = ? WHERE id = ? AND deleted_at IS NULL`,
		nullMillis(until), reasonArg, id)
}

func (r *sqliteUserRepo) ClearBan(ctx context.Context, id int64) error {
	return r.exec(ctx, "unban user",
		`UPDATE users SET banned = 0, banned_until = NULL, ban_reason = NULL WHERE id = ?`, id)
}

func (r *sqliteUserRepo) ScheduleDeletion(ctx context.Context, id int64, at time.Time, initiatedBy int64) error {
	return r.exec(ctx, "schedule deletion",
		`UPDATE users SET deletion_scheduled_at = ?, deletion_initiated_by = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		toMillis(at), initiatedBy, id)
}

func (r *sqliteUserRepo) ClearDeletionSchedule(ctx context.Context, id int64) error {
	return r.exec(ctx, "clear deletion schedule",
		`UPDATE users SET deletion_scheduled_at = NULL, deletion_initiated_by = NULL
		 WHERE id = ? AND deleted_at IS NULL`, id)
}

func (r *sqliteUserRepo) Sanitize(ctx context.Context, id int64, s Sanitization, onlyIfDue bool) (bool, error) {
	query := `
		UPDATE users SET
			name = ?, display_name = ?,
			pswd = NULL, token = NULL, avatar = NULL,
			system_account = 0, system_key = NULL,
			banned = 0, banned_until = NULL, ban_reason = NULL,
			expires_at = NULL,
			deletion_scheduled_at = NULL,
			deletion_initiated_by = COALESCE(?, deletion_initiated_by),
			deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	args := []any{s.Name, s.DisplayName, nullInt64(s.InitiatedBy), toMillis(s.At), id}

	if onlyIfDue {
		query += ` AND deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= ?`
		args = append(args, toMillis(s.At))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to sanitize user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *sqliteUserRepo) ListExpired(ctx context.Context, now time.Time) ([]models.User, error) {
	return r.list(ctx,
		`expires_at IS NOT NULL AND expires_at <= ? AND token IS NOT NULL AND deleted_at IS NULL`,
		toMillis(now))
}

func (r *sqliteUserRepo) ListBanned(ctx context.Context, now time.Time) ([]models.User, error) {
	return r.list(ctx,
		`banned = 1 AND (banned_until IS NULL OR banned_until > ?) AND deleted_at IS NULL`,
		toMillis(now))
}

func (r *sqliteUserRepo) ListDeletionDue(ctx context.Context, now time.Time) ([]models.User, error) {
	return r.list(ctx,
		`deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= ? AND deleted_at IS NULL`,
		toMillis(now))
}

func (r *sqliteUserRepo) UpsertSystemAccount(ctx context.Context, user *models.User) error {
	existing, err := r.GetByName(ctx, user.Name)
	if errors.Is(err, pkg.ErrNotFound) {
		user.SystemAccount = true
		return r.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	user.ID = existing.ID
	return r.exec(ctx, "update system account",
		`UPDATE users SET system_account = 1, system_key = ? WHERE id = ? AND deleted_at IS NULL`,
		user.SystemKey, existing.ID)
}

func (r *sqliteUserRepo) NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user names: %w", err)
	}
	return names, nil
}
