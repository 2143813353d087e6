package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
	"github.com/akinalp/maelink/repository"
)

// InviteCodePrefix starts every generated code: MLNK-XXXXXXXX-XXXXXXXX.
const InviteCodePrefix = "MLNK"

const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// InviteService generates registration codes and keeps the optional pool
// topped up. Consumption itself happens inside the registration
// transaction (see authService.Register).
type InviteService interface {
	// Generate creates count codes expiring after ttl (ttl <= 0: never).
	Generate(ctx context.Context, count int, ttl time.Duration) ([]models.InviteCode, error)
	// Replenish creates codes until PoolSize usable codes exist. No-op when
	// the pool is disabled.
	Replenish(ctx context.Context) error
	List(ctx context.Context, limit int) ([]models.InviteCode, error)
	// PurgeExpired removes codes past their expiry.
	PurgeExpired(ctx context.Context) (int64, error)
}

type inviteService struct {
	invites repository.InviteRepository
	cfg     config.InviteConfig
	now     func() time.Time
}

// NewInviteService, constructor.
func NewInviteService(invites repository.InviteRepository, cfg config.InviteConfig) InviteService {
	return &inviteService{invites: invites, cfg: cfg, now: time.Now}
}

func (s *inviteService) Generate(ctx context.Context, count int, ttl time.Duration) ([]models.InviteCode, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", pkg.ErrBadRequest)
	}

	codes := make([]models.InviteCode, 0, count)
	for len(codes) < count {
		value, err := GenerateInviteValue()
		if err != nil {
			return codes, err
		}

		now := s.now().UTC()
		code := models.InviteCode{Value: value, CreatedAt: now}
		if ttl > 0 {
			exp := now.Add(ttl)
			code.ExpiresAt = &exp
		}

		if err := s.invites.Create(ctx, &code); err != nil {
			// 36^16 values; a collision just means draw again.
			if errors.Is(err, pkg.ErrAlreadyExists) {
				continue
			}
			return codes, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *inviteService) Replenish(ctx context.Context) error {
	if s.cfg.PoolSize <= 0 {
		return nil
	}

	usable, err := s.invites.CountUsable(ctx, s.now())
	if err != nil {
		return err
	}
	missing := s.cfg.PoolSize - usable
	if missing <= 0 {
		return nil
	}

	if _, err := s.Generate(ctx, missing, s.cfg.TTL); err != nil {
		return err
	}
	log.Printf("[invite] replenished pool with %d codes", missing)
	return nil
}

func (s *inviteService) List(ctx context.Context, limit int) ([]models.InviteCode, error) {
	return s.invites.List(ctx, limit)
}

func (s *inviteService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.invites.DeleteExpired(ctx, s.now())
}

// GenerateInviteValue returns a fresh MLNK-XXXXXXXX-XXXXXXXX value drawn
// from crypto/rand.
func GenerateInviteValue() (string, error) {
	var b strings.Builder
	b.WriteString(InviteCodePrefix)

	base := big.NewInt(int64(len(inviteAlphabet)))
	for group := 0; group < 2; group++ {
		b.WriteByte('-')
		for i := 0; i < 8; i++ {
			n, err := rand.Int(rand.Reader, base)
			if err != nil {
				return "", fmt.Errorf("failed to generate invite code: %w", err)
			}
			b.WriteByte(inviteAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}
