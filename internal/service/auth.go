package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Skotchmaster/tasktracker/internal/hash"
	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/repo"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
	"github.com/Skotchmaster/tasktracker/pkg/tokens"
)

type CredentialStore interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	CountUsers(ctx context.Context) (int64, error)
}

type RevocationLedger interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PruneRevoked(ctx context.Context, before time.Time) (int64, error)
}

type AuthService struct {
	Users  CredentialStore
	Ledger RevocationLedger
	Tokens *tokens.Issuer
	Hasher hash.Hasher
	Events Publisher

	dummyOnce sync.Once
	dummyHash string
}

type LoginResult struct {
	AccessToken string
	UserID      uint
	ExpiresAt   time.Time
	IsAdmin     bool
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// fallbackDummyHash is a well formed bcrypt hash (cost 10) used when the
// hasher cannot produce one.
const fallbackDummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// dummy returns a real hash of a throwaway password so that logins for
// unknown usernames spend the same bcrypt time as wrong passwords.
func (s *AuthService) dummy(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("tasktracker-dummy-password")
		if err != nil {
			logging.FromContext(ctx).Error("dummy_hash_failed", "error", err)
			h = fallbackDummyHash
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, validationf("username and password are required")
	}

	user, err := s.Users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Hasher.Verify(s.dummy(ctx), password)
			l.Warn("login_failed", "status", 401, "reason", "unknown username")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.Hasher.Verify(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	tok, err := s.Tokens.Issue(user.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot issue token", "error", err)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	publish(ctx, s.Events, TopicUserEvents, Event{Type: "user_logged_in", UserID: user.ID, Username: user.Username})
	l.Info("login_ok", "user_id", user.ID)

	return &LoginResult{
		AccessToken: tok.Raw,
		UserID:      user.ID,
		ExpiresAt:   tok.ExpiresAt,
		IsAdmin:     user.Role == models.RoleAdmin,
	}, nil
}

// Authenticate turns a raw token into an Identity. The role is read from
// the store on every call so demotions take effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (Identity, error) {
	v, err := s.Tokens.Verify(raw)
	if err != nil {
		return Identity{}, err
	}

	revoked, err := s.Ledger.IsRevoked(ctx, v.JTI)
	if err != nil {
		return Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Identity{}, ErrTokenRevoked
	}

	user, err := s.Users.FindUserByID(ctx, v.SubjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Identity{}, ErrUnknownSubject
		}
		return Identity{}, fmt.Errorf("load subject: %w", err)
	}

	return Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		JTI:       v.JTI,
		ExpiresAt: v.ExpiresAt,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, raw string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	id, err := s.Authenticate(ctx, raw)
	if err != nil {
		l.Warn("logout_failed", "status", 401, "error", err)
		return err
	}
	if err := s.Ledger.Revoke(ctx, id.JTI, id.ExpiresAt); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return fmt.Errorf("revoke token: %w", err)
	}

	publish(ctx, s.Events, TopicUserEvents, Event{Type: "user_logged_out", UserID: id.UserID, Username: id.Username})
	l.Info("logout_ok", "user_id", id.UserID)
	return nil
}

// Register creates an account. Anyone may create a plain User; creating an
// Administrator requires an authenticated Administrator requester. The
// requester is checked before the body.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, requester *Identity) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if in.Role == models.RoleAdmin {
		if requester == nil {
			l.Warn("register_denied", "status", 401, "reason", "administrator role without token")
			return nil, ErrAuthRequired
		}
		if err := RequireAdmin(*requester); err != nil {
			l.Warn("register_denied", "status", 403, "requester_id", requester.UserID)
			return nil, err
		}
	}

	user, err := s.createUser(ctx, in)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			l.Warn("register_failed", "status", 409, "reason", "username or email taken")
		} else if !errors.Is(err, ErrValidation) {
			l.Error("register_failed", "status", 500, "error", err)
		}
		return nil, err
	}

	ev := Event{Type: "user_registered", UserID: user.ID, Username: user.Username}
	if requester != nil {
		ev.ActorID = requester.UserID
	}
	publish(ctx, s.Events, TopicUserEvents, ev)
	l.Info("register_ok", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// CreateAdmin is the operator path used by the CLI and bootstrap. It skips
// the requester check.
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
}

// BootstrapAdmin seeds the first Administrator when no users exist yet.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username, email, password string) (bool, error) {
	n, err := s.Users.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateAdmin(ctx, username, email, password); err != nil {
		return false, err
	}
	logging.FromContext(ctx).Info("admin_bootstrapped", "username", username)
	return true, nil
}

func (s *AuthService) PruneRevoked(ctx context.Context) (int64, error) {
	n, err := s.Ledger.PruneRevoked(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune revoked tokens: %w", err)
	}
	return n, nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := checkRules(in); err != nil {
		return nil, err
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: pwHash,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
