package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/calcapi/internal/auth"
	"github.com/isdelr/calcapi/internal/models"
	"gorm.io/gorm"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, input RegisterInput) (models.User, error)
	Authenticate(ctx context.Context, identifier, password string) (models.User, string, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	IssueToken(user models.User) (string, time.Time, error)
	TokenTTL() time.Duration
}

// RegisterInput carries the identity and credentials of a new account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService provides business logic for user management.
type UserService struct {
	db     *gorm.DB
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB, hasher *auth.PasswordHasher, tokens *auth.TokenIssuer) *UserService {
	return &UserService{db: db, hasher: hasher, tokens: tokens, now: time.Now}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active user after checking username and email are free.
// The unique indexes remain the final guard against concurrent registrations.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := NormalizeEmail(input.Email)
	if username == "" || email == "" || input.Password == "" {
		return models.User{}, fmt.Errorf("%w: username, email, and password are required", ErrValidation)
	}
	// Usernames never contain "@" and emails always do, so a login
	// identifier matches at most one account.
	if strings.Contains(username, "@") {
		return models.User{}, fmt.Errorf("%w: username must not contain @", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return models.User{}, fmt.Errorf("%w: email is invalid", ErrValidation)
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return models.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return models.User{}, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		IsActive:     true,
		IsVerified:   false,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateIdentity
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	// Don't hand the hash back to callers
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies credentials for a username or email, records the
// login time and returns a fresh access token.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (models.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return models.User{}, "", ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, NormalizeEmail(identifier)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.User{}, "", ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return models.User{}, "", fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now

	token, _, err := s.IssueToken(user)
	if err != nil {
		return models.User{}, "", err
	}

	user.PasswordHash = ""
	return user, token, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// IssueToken creates an access token keyed on the user's ID.
func (s *UserService) IssueToken(user models.User) (string, time.Time, error) {
	return s.tokens.IssueDefault(user.ID)
}

// TokenTTL is the lifetime of tokens returned by IssueToken.
func (s *UserService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
