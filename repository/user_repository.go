// Package repository is the record-store access layer. Services depend on
// the interfaces declared here; the sqlite_* files implement them.
//
// Constructors take a database.TxQuerier, so the same implementation runs
// against the pool or inside database.WithTx.
package repository

import (
	"context"
	"time"

	"github.com/akinalp/maelink/models"
)

// Sanitization describes the in-place anonymization of a deleted account.
type Sanitization struct {
	Name        string
	DisplayName string
	At          time.Time
	InitiatedBy *int64 // nil keeps the stored initiator
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts user and fills user.ID. A taken name or uuid returns
	// pkg.ErrUserExists.
	Create(ctx context.Context, user *models.User) error

	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByUUID(ctx context.Context, uuid string) (*models.User, error)
	// GetByToken never matches deleted accounts (their token is NULL).
	GetByToken(ctx context.Context, token string) (*models.User, error)

	// IssueToken stores a new bearer token and its expiry.
	IssueToken(ctx context.Context, id int64, token string, expiresAt *time.Time) error
	// ExpireToken clears token and expires_at only while the stored token
	// still equals token. Reports whether a row changed.
	ExpireToken(ctx context.Context, id int64, token string) (bool, error)

	UpdateAvatar(ctx context.Context, id int64, avatar string) error
	UpdateRole(ctx context.Context, id int64, role models.Role) error
	SetBan(ctx context.Context, id int64, until *time.Time, reason string) error
	ClearBan(ctx context.Context, id int64) error

	ScheduleDeletion(ctx context.Context, id int64, at time.Time, initiatedBy int64) error
	ClearDeletionSchedule(ctx context.Context, id int64) error
	// Sanitize anonymizes a non-deleted account. With onlyIfDue the update
	// also requires deletion_scheduled_at <= s.At, so a login that cleared
	// the schedule in the meantime wins. Reports whether a row changed.
	Sanitize(ctx context.Context, id int64, s Sanitization, onlyIfDue bool) (bool, error)

	// ListExpired returns live accounts with a token whose expires_at <= now.
	ListExpired(ctx context.Context, now time.Time) ([]models.User, error)
	// ListBanned returns live accounts whose ban is in force at now.
	ListBanned(ctx context.Context, now time.Time) ([]models.User, error)
	// ListDeletionDue returns accounts with deletion_scheduled_at <= now
	// and deleted_at unset.
	ListDeletionDue(ctx context.Context, now time.Time) ([]models.User, error)

	// UpsertSystemAccount makes name a system account holding keyHash,
	// creating it when missing.
	UpsertSystemAccount(ctx context.Context, user *models.User) error

	// NamesByIDs resolves ids to current names. Unknown ids are absent.
	NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}
