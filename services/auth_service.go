// Package services holds the business rules of the server. Services sit
// between the transports (ws.Dispatcher, the HTTP handlers) and the
// repositories: they never see an http.Request and never run SQL directly.
//
// Live connections are reached only through ws.EventPublisher, and every
// call into it happens after the store operation it reports has committed.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/pkg/credential"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/ws"
	"github.com/google/uuid"
)

// MaxAvatarURLLength bounds set_avatar URLs.
const MaxAvatarURLLength = ws.MaxAvatarURLLength

var avatarURLPattern = regexp.MustCompile(`(?i)^https?://\S+\.(png|jpe?g|gif|webp|svg|bmp|avif)(\?\S*)?$`)

// AuthService owns account credentials: registration, the login variants,
// token resolution for the HTTP API and system account provisioning.
type AuthService interface {
	ws.Authenticator

	// ResolveToken maps a bearer token to its live account. Banned
	// accounts resolve; callers that write check the ban themselves.
	ResolveToken(ctx context.Context, token string) (*models.User, error)

	// EnsureSystemAccount creates or re-keys the system account name.
	EnsureSystemAccount(ctx context.Context, name, key string) error
}

type authService struct {
	db      *sql.DB
	users   repository.UserRepository
	invites InviteService
	hasher  *credential.Hasher
	audit   AuditRecorder
	cfg     config.AuthConfig
	now     func() time.Time
}

// NewAuthService, constructor.
//
// db is needed in addition to the repositories because registration opens
// its own transaction and builds tx-bound repositories inside it.
func NewAuthService(
	db *sql.DB,
	users repository.UserRepository,
	invites InviteService,
	hasher *credential.Hasher,
	audit AuditRecorder,
	cfg config.AuthConfig,
) AuthService {
	return &authService{
		db:      db,
		users:   users,
		invites: invites,
		hasher:  hasher,
		audit:   audit,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Register creates an account from an invite code.
//
// Code lookup, code deletion and the user insert run in one transaction:
// for any code at most one registration commits, and a registration that
// fails on a taken name leaves the code in place.
func (s *authService) Register(ctx context.Context, name, password, code, displayName string) (*models.User, error) {
	// 1. Static checks, before anything touches the store
	if name == "" || password == "" || code == "" {
		return nil, pkg.ErrInvalidRequest
	}
	n := utf8.RuneCountInString(name)
	if n > models.MaxNameLength {
		return nil, pkg.ErrUsernameTooLong
	}
	if n < models.MinNameLength {
		return nil, pkg.ErrUsernameTooShort
	}
	if s.cfg.ReservedName != "" && strings.EqualFold(name, s.cfg.ReservedName) {
		return nil, pkg.ErrReservedName
	}

	// 2. Credentials (bcrypt is slow; keep it outside the transaction)
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	token, err := credential.NewToken(name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	display := strings.TrimSpace(displayName)
	if display == "" {
		display = name
	}
	user := &models.User{
		UUID:         uuid.New().String(),
		Name:         name,
		DisplayName:  display,
		Password:     &hash,
		Token:        &token,
		Role:         models.RoleUser,
		ExpiresAt:    s.expiryFrom(now),
		RegisteredAt: now,
	}

	// 3. Consume the code and insert the user atomically
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txInvites := repository.NewSQLiteInviteRepo(tx)
		txUsers := repository.NewSQLiteUserRepo(tx)

		invite, err := txInvites.GetUsable(ctx, code, now)
		if errors.Is(err, pkg.ErrNotFound) {
			return pkg.ErrBadCode
		}
		if err != nil {
			return err
		}

		consumed, err := txInvites.Consume(ctx, invite.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return pkg.ErrBadCode
		}

		return txUsers.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	// 4. Regenerate the pool outside the transaction; failure only delays it.
	if err := s.invites.Replenish(ctx); err != nil {
		log.Printf("[auth] invite replenish after registration failed: %v", err)
	}

	log.Printf("[auth] registered %s", user.Name)
	return user, nil
}

// LoginPassword authenticates a regular account. Success clears a pending
// deletion schedule and issues a token when the account holds none.
func (s *authService) LoginPassword(ctx context.Context, name, password string) (*models.User, error) {
	user, err := s.users.GetByName(ctx, name)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, pkg.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.now()

	if user.IsDeleted() {
		return nil, pkg.ErrUserNotFound
	}
	if user.SystemAccount {
		return nil, pkg.ErrSystemAccountUseKey
	}
	if user.Password == nil {
		return nil, pkg.ErrBadPassword
	}
	ok, err := s.hasher.Verify(*user.Password, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkg.ErrBadPassword
	}
	// The ban is only reported to callers holding the password.
	if err := s.checkLoginAllowed(user, now); err != nil {
		return nil, err
	}

	if user.DeletionScheduledAt != nil {
		if err := s.users.ClearDeletionSchedule(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to clear deletion schedule: %w", err)
		}
		user.DeletionScheduledAt = nil
		user.DeletionInitiatedBy = nil
		log.Printf("[auth] %s logged in, pending deletion cancelled", user.Name)
	}

	if user.Token == nil || tokenExpired(user, now) {
		if err := s.issueToken(ctx, user, s.expiryFrom(now.UTC())); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// LoginToken trusts the bearer token as the only credential. It serves
// login_token and provide_token alike.
func (s *authService) LoginToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, pkg.ErrInvalidRequest
	}
	user, err := s.users.GetByToken(ctx, token)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, pkg.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.now()

	if tokenExpired(user, now) {
		return nil, pkg.ErrUserNotFound
	}
	if err := s.checkLoginAllowed(user, now); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginSystemKey authenticates a system account and rotates its token. The
// previous token is returned so the caller can revoke sessions holding it.
func (s *authService) LoginSystemKey(ctx context.Context, name, key string) (*models.User, string, error) {
	user, err := s.users.GetByName(ctx, name)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, "", pkg.ErrNotSystemAccount
	}
	if err != nil {
		return nil, "", err
	}
	if !user.SystemAccount || user.IsDeleted() {
		return nil, "", pkg.ErrNotSystemAccount
	}
	if user.SystemKey == nil {
		return nil, "", pkg.ErrNoSystemKey
	}

	ok, err := s.hasher.Verify(*user.SystemKey, key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", pkg.ErrServer, err)
	}
	if !ok {
		return nil, "", pkg.ErrBadKey
	}

	previous := user.TokenValue()
	// System accounts do not expire.
	if err := s.issueToken(ctx, user, nil); err != nil {
		return nil, "", err
	}

	s.audit.Record(ctx, idPtr(user.ID), idPtr(user.ID), models.ActionSystemLogin,
		fmt.Sprintf("system account %s logged in", user.Name))
	return user, previous, nil
}

// SetAvatar validates and stores an avatar URL. Returns the stored value.
func (s *authService) SetAvatar(ctx context.Context, userID int64, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", pkg.ErrInvalidRequest
	}
	if len(url) > MaxAvatarURLLength {
		return "", pkg.ErrURLTooLong
	}
	if !avatarURLPattern.MatchString(url) {
		return "", pkg.ErrInvalidURL
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return "", pkg.ErrUserNotFound
		}
		return "", err
	}
	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return "", pkg.ErrUserNotFound
		}
		return "", err
	}
	return url, nil
}

func (s *authService) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, pkg.ErrNotAuthenticated
	}
	user, err := s.users.GetByToken(ctx, token)
	if errors.Is(err, pkg.ErrNotFound) {
		return nil, pkg.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() || tokenExpired(user, s.now()) {
		return nil, pkg.ErrNotAuthenticated
	}
	return user, nil
}

func (s *authService) EnsureSystemAccount(ctx context.Context, name, key string) error {
	if name == "" || key == "" {
		return fmt.Errorf("%w: system account name and key are required", pkg.ErrBadRequest)
	}
	hash, err := s.hasher.Hash(key)
	if err != nil {
		return err
	}

	user := &models.User{
		UUID:         uuid.New().String(),
		Name:         name,
		DisplayName:  name,
		Role:         models.RoleSysadmin,
		SystemKey:    &hash,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.users.UpsertSystemAccount(ctx, user); err != nil {
		return fmt.Errorf("failed to provision system account %s: %w", name, err)
	}
	log.Printf("[auth] system account %s provisioned", name)
	return nil
}

// checkLoginAllowed holds the checks shared by password and token login.
func (s *authService) checkLoginAllowed(user *models.User, now time.Time) error {
	if user.IsDeleted() {
		return pkg.ErrUserNotFound
	}
	if user.SystemAccount {
		return pkg.ErrSystemAccountUseKey
	}
	if user.IsBanned(now) {
		return pkg.ErrBanned
	}
	return nil
}

func (s *authService) issueToken(ctx context.Context, user *models.User, expiresAt *time.Time) error {
	token, err := credential.NewToken(user.Name)
	if err != nil {
		return err
	}
	if err := s.users.IssueToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	user.Token = &token
	user.ExpiresAt = expiresAt
	return nil
}

// expiryFrom returns now + AccountLifetime, or nil when expiry is off.
func (s *authService) expiryFrom(now time.Time) *time.Time {
	if s.cfg.AccountLifetime <= 0 {
		return nil
	}
	exp := now.Add(s.cfg.AccountLifetime)
	return &exp
}

func tokenExpired(user *models.User, now time.Time) bool {
	return user.ExpiresAt != nil && !user.ExpiresAt.After(now)
}
