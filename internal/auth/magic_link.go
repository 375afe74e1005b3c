package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/cache"
	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/pkg/crypto"
	"github.com/okarlsson/waitgate/pkg/logger"
)

// ErrInvalidMagicToken indicates the token is unknown, expired, or already redeemed.
var ErrInvalidMagicToken = errors.New("auth: invalid or expired magic-link token")

const (
	// MagicLinkTTL is how long an issued link stays redeemable.
	MagicLinkTTL = 15 * time.Minute

	magicLinkKeyPrefix = "magiclink:"
	magicTokenLength   = 32
)

// MagicLinkService issues and redeems passwordless sign-in tokens. Tokens live
// in the shared cache store, not process memory, so any instance can redeem a
// link issued by another and a restart invalidates nothing prematurely.
type MagicLinkService struct {
	db    *gorm.DB
	store cache.Store
	log   *zap.Logger
}

// NewMagicLinkService constructs the magic-link service.
func NewMagicLinkService(db *gorm.DB, store cache.Store) (*MagicLinkService, error) {
	if db == nil || store == nil {
		return nil, errors.New("auth: db and cache store are required")
	}
	return &MagicLinkService{
		db:    db,
		store: store,
		log:   logger.WithModule("magic-link"),
	}, nil
}

// Issue creates a one-time token bound to the email. Delivery of the link is
// the caller's concern; the service only mints and stores the token.
func (s *MagicLinkService) Issue(ctx context.Context, email string) (string, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", errors.New("auth: a valid email is required")
	}

	token, err := crypto.GenerateToken(magicTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth: generate magic token: %w", err)
	}

	if err := s.store.Set(ctx, magicLinkKeyPrefix+token, []byte(normalized), MagicLinkTTL); err != nil {
		return "", fmt.Errorf("auth: store magic token: %w", err)
	}

	s.log.Info("magic link issued", zap.String("email", normalized))
	return token, nil
}

// Redeem consumes a token and returns the signed-in user, creating the account
// on first use. A token redeems at most once: it is deleted before the user
// lookup so a concurrent redeem of the same token loses.
func (s *MagicLinkService) Redeem(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidMagicToken
	}

	key := magicLinkKeyPrefix + token
	value, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("auth: read magic token: %w", err)
	}
	if !found {
		return nil, ErrInvalidMagicToken
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("auth: consume magic token: %w", err)
	}

	email := string(value)
	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("last_login_at", now).Error; err != nil {
		s.log.Warn("record last login failed", zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	s.log.Info("magic link redeemed", zap.String("user_id", user.ID))
	return user, nil
}

func (s *MagicLinkService) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{Email: email}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Lost a create race to a concurrent redeem for the same address.
		var existing models.User
		if lookupErr := s.db.WithContext(ctx).Take(&existing, "email = ?", email).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}
