package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"roomchat/internal/microservices/http-api/models"
	"roomchat/internal/microservices/http-api/repository"
	"roomchat/internal/middleware/auth"
)

const (
	minPasswordLength = 6
	// usernames with this prefix belong to anonymous room guests
	anonymousPrefix = "anon_"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

// AuthResult is what a successful register or login hands back.
type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type AuthService interface {
	Register(ctx context.Context, username, password string) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Authenticate resolves an access token to its user record.
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	// ChangePassword replaces the password after checking the current one.
	ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error
	ListUsers(ctx context.Context, onlineOnly bool) ([]models.User, error)
	// EnsureAdmin creates the account if missing and grants it admin rights.
	EnsureAdmin(ctx context.Context, username, password string) error
	Tokens() TokenService
}

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenService
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenService) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *authService) Tokens() TokenService {
	return s.tokens
}

// ValidateCredentials checks the registration rules for a username/password pair.
func ValidateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) || strings.HasPrefix(strings.ToLower(username), anonymousPrefix) {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func (s *authService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	// Check if user exists
	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, StorageError("find user", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, StorageError("hash password", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with another registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, StorageError("create user", err)
	}

	return s.issue(user)
}

// Login: authenticates a user and returns access and refresh tokens upon successful login.
func (s *authService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, StorageError("find user", err)
		}
		// same bcrypt cost whether or not the user exists
		auth.BurnCompare(password)
		return nil, ErrInvalidCredentials
	}
	if user.IsAnonymous || user.PasswordHash == "" {
		auth.BurnCompare(password)
		return nil, ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) issue(user *models.User) (*AuthResult, error) {
	accessToken, err := s.tokens.Issue(user.Username, AccessToken)
	if err != nil {
		return nil, StorageError("sign access token", err)
	}
	refreshToken, err := s.tokens.Issue(user.Username, RefreshToken)
	if err != nil {
		return nil, StorageError("sign refresh token", err)
	}
	return &AuthResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	username, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return "", err
	}
	// the account may have been removed since the refresh token was issued
	if _, err := s.lookup(ctx, username); err != nil {
		return "", err
	}
	accessToken, err := s.tokens.Issue(username, AccessToken)
	if err != nil {
		return "", StorageError("sign access token", err)
	}
	return accessToken, nil
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	username, err := s.tokens.Verify(accessToken, AccessToken)
	if err != nil {
		return nil, err
	}
	return s.lookup(ctx, username)
}

func (s *authService) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, StorageError("find user", err)
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	if user.IsAnonymous || user.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return WithMessage(ErrInvalidCredentials, "current password is incorrect")
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return StorageError("hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, username, hashedPassword); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return StorageError("update password", err)
	}
	return nil
}

func (s *authService) ListUsers(ctx context.Context, onlineOnly bool) ([]models.User, error) {
	users, err := s.userRepo.List(ctx, onlineOnly)
	if err != nil {
		return nil, StorageError("list users", err)
	}
	return users, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if _, err := s.Register(ctx, username, password); err != nil && !errors.Is(err, ErrUsernameTaken) {
			return err
		}
	case err != nil:
		return StorageError("find user", err)
	}
	if err := s.userRepo.SetAdmin(ctx, username, true); err != nil {
		return StorageError("grant admin", err)
	}
	return nil
}
