package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type (
	// PasswordHasher is satisfied by auth.PasswordHasher.
	PasswordHasher interface {
		Hash(password string) (string, error)
		Compare(hash, password string) error
	}

	// TokenIssuer is satisfied by auth.TokenService.
	TokenIssuer interface {
		Issue(username string, roles []string) (string, time.Time, error)
	}

	// Session is the result of a successful login.
	Session struct {
		Token     string
		ExpiresAt time.Time
		User      core.User
	}
)

// AccountService registers users and exchanges credentials for tokens.
type AccountService struct {
	users  ports.UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	logger *log.Logger
}

func NewAccountService(users ports.UserStore, hasher PasswordHasher, tokens TokenIssuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAccount),
	}
}

// Register creates a user with the USER role.
func (s *AccountService) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return core.User{}, err
	}

	user, err := s.users.CreateUser(ctx, core.User{
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{core.RoleUser},
	})
	if err != nil {
		if errors.Is(err, core.ErrUsernameTaken) {
			s.logger.WarnContext(ctx, "Registration rejected: username taken", log.FieldUser, username)
		}
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldOperation, log.OpRegister, log.FieldUser, user.Username, log.FieldUserID, user.ID)
	return user, nil
}

// Login verifies the credentials and issues a bearer token. Unknown users and
// wrong passwords both yield core.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, core.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, core.ErrUserNotFound) {
		s.logger.WarnContext(ctx, "Login failed: unknown user", log.FieldUser, username)
		return Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.WarnContext(ctx, "Login failed: wrong password", log.FieldUser, username)
			return Session{}, core.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("verify password: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.Username, user.Roles)
	if err != nil {
		return Session{}, err
	}

	s.logger.InfoContext(ctx, "User logged in", log.FieldOperation, log.OpLogin, log.FieldUser, user.Username)
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Current returns the user behind the request identity.
func (s *AccountService) Current(ctx context.Context) (core.User, error) {
	return resolveCaller(ctx, s.users)
}

func validateCredentials(username, password string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return fmt.Errorf("%w: username must be between %d and %d characters",
			core.ErrInvalidArgument, MinUsernameLength, MaxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may only contain letters, digits, '.', '_' and '-'", core.ErrInvalidArgument)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", core.ErrInvalidArgument, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", core.ErrInvalidArgument, MaxPasswordLength)
	}
	return nil
}
