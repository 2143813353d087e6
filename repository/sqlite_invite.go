package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

type sqliteInviteRepo struct {
	db database.TxQuerier
}

// NewSQLiteInviteRepo, constructor.
func NewSQLiteInviteRepo(db database.TxQuerier) InviteRepository {
	return &sqliteInviteRepo{db: db}
}

func (r *sqliteInviteRepo) Create(ctx context.Context, code *models.InviteCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO invite_codes (value, expires_at, created_at) VALUES (?, ?, ?) RETURNING id`,
		code.Value, nullMillis(code.ExpiresAt), toMillis(code.CreatedAt),
	).Scan(&code.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invite code already exists", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create invite code: %w", err)
	}
	return nil
}

func (r *sqliteInviteRepo) GetUsable(ctx context.Context, value string, now time.Time) (*models.InviteCode, error) {
	query := `
		SELECT id, value, expires_at, created_at
		FROM invite_codes
		WHERE value = ? AND (expires_at IS NULL OR expires_at > ?)`

	code, err := scanInvite(r.db.QueryRowContext(ctx, query, value, toMillis(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	return code, nil
}

func (r *sqliteInviteRepo) Consume(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invite_codes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to consume invite code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *sqliteInviteRepo) CountUsable(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invite_codes WHERE expires_at IS NULL OR expires_at > ?`,
		toMillis(now)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count invite codes: %w", err)
	}
	return n, nil
}

func (r *sqliteInviteRepo) List(ctx context.Context, limit int) ([]models.InviteCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, value, expires_at, created_at FROM invite_codes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	defer rows.Close()

	var codes []models.InviteCode
	for rows.Next() {
		code, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite code: %w", err)
		}
		codes = append(codes, *code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invite codes: %w", err)
	}
	return codes, nil
}

func (r *sqliteInviteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM invite_codes WHERE expires_at IS NOT NULL AND expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invite codes: %w", err)
	}
	return result.RowsAffected()
}

func scanInvite(row rowScanner) (*models.InviteCode, error) {
	var (
		code    models.InviteCode
		expires sql.NullInt64
		created int64
	)
	if err := row.Scan(&code.ID, &code.Value, &expires, &created); err != nil {
		return nil, err
	}
	code.ExpiresAt = fromNullMillis(expires)
	code.CreatedAt = fromMillis(created)
	return &code, nil
}
