package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/pkg/crypto"
)

var (
	// ErrEmailTaken indicates a registration against an existing account.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrBadCredentials indicates a failed password sign-in.
	ErrBadCredentials = errors.New("auth: invalid email or password")
	// ErrUserNotFound indicates the user id resolves to no account.
	ErrUserNotFound = errors.New("auth: user not found")
)

const minPasswordLength = 8

// UserService manages dashboard accounts with password sign-in. Magic-link
// accounts live in the same table; registering over one simply sets a password.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs the account service.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("auth: db is required")
	}
	return &UserService{db: db}, nil
}

// Register creates an account with a password. An existing passwordless
// account for the email gains the password; an account that already has one
// is reported as taken.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, errors.New("auth: a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("auth: password must be at least %d characters", minPasswordLength)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	var existing models.User
	err = s.db.WithContext(ctx).Take(&existing, "email = ?", normalized).Error
	switch {
	case err == nil && existing.PasswordHash != nil:
		return nil, ErrEmailTaken

	case err == nil:
		updates := map[string]any{"password_hash": hash}
		if displayName != "" {
			updates["display_name"] = displayName
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		existing.PasswordHash = &hash
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		user := models.User{
			Email:        normalized,
			PasswordHash: &hash,
			DisplayName:  displayName,
		}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			return nil, ErrEmailTaken
		}
		return &user, nil

	default:
		return nil, err
	}
}

// Login verifies the password and returns the account. The same error comes
// back for an unknown email and a wrong password.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", models.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}

	if user.PasswordHash == nil || !crypto.VerifyPassword(*user.PasswordHash, password) {
		return nil, ErrBadCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login_at", now).Error; err == nil {
		user.LastLoginAt = &now
	}

	return &user, nil
}

// GetByID loads an account by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
