package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"mediashare/internal/ids"
	"mediashare/internal/models"
	"mediashare/internal/repository"
	"mediashare/internal/security"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgDuplicateUser      = "Username or email already exists"
	msgAdminExists        = "An admin already exists. Admin registration is only allowed for first-time setup."
	msgCreatorPublic      = "Creator accounts cannot be registered publicly. Please contact an administrator."
	msgInvalidRole        = "Invalid role. Allowed roles: admin (first-time only), consumer"
)

type AuthService struct {
	users  UserStore
	tokens *security.TokenIssuer
	hash   func(string) ([]byte, error)
	log    zerolog.Logger
}

func NewAuthService(users UserStore, tokens *security.TokenIssuer, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   security.HashPassword,
		log:    log,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

type AuthResult struct {
	Token string
	User  models.User
}

// Register creates a self-service account. Consumers may always register; the first
// admin may register while no admin exists; creators are provisioned by an admin.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if input.Username == "" || input.Email == "" || input.Password == "" || input.Role == "" {
		return AuthResult{}, Validation("All fields are required")
	}

	role := models.UserRole(input.Role)
	switch role {
	case models.UserRoleConsumer:
	case models.UserRoleAdmin:
		count, err := s.users.CountByRole(ctx, models.UserRoleAdmin)
		if err != nil {
			return AuthResult{}, Internal(err)
		}
		if count > 0 {
			return AuthResult{}, Forbidden(msgAdminExists)
		}
	case models.UserRoleCreator:
		return AuthResult{}, Forbidden(msgCreatorPublic)
	default:
		return AuthResult{}, Validation(msgInvalidRole)
	}

	user, err := s.createUser(ctx, input.Username, input.Email, input.Password, role)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return AuthResult{Token: token, User: user}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return AuthResult{}, Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, Unauthorized(msgInvalidCredentials)
		}
		return AuthResult{}, Internal(err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
	}
	if err != nil || !ok {
		return AuthResult{}, Unauthorized(msgInvalidCredentials)
	}

	token, err := s.issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, NotFound("User not found")
		}
		return models.User{}, Internal(err)
	}
	return user, nil
}

type CreateCreatorInput struct {
	Username string
	Email    string
	Password string
}

// CreateCreator provisions a creator account on behalf of an admin.
func (s *AuthService) CreateCreator(ctx context.Context, input CreateCreatorInput) (models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)
	if username == "" || email == "" || input.Password == "" {
		return models.User{}, Validation("Username, email, and password are required")
	}

	user, err := s.createUser(ctx, username, email, input.Password, models.UserRoleCreator)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("creator provisioned")
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, Internal(err)
	}
	return users, nil
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, role models.UserRole) (models.User, error) {
	passwordHash, err := s.hash(password)
	if err != nil {
		return models.User{}, Internal(err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           ids.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	})
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repository.ErrAdminExists):
		return models.User{}, Forbidden(msgAdminExists)
	case errors.Is(err, repository.ErrDuplicate):
		return models.User{}, Conflict(msgDuplicateUser)
	default:
		return models.User{}, Internal(err)
	}
}

func (s *AuthService) issue(user models.User) (string, error) {
	token, err := s.tokens.Issue(user.ID, user.Username, user.Email, string(user.Role))
	if err != nil {
		return "", Internal(err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
