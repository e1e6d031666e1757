package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/tasktracker/internal/hash"
	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/repo"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

type UserStore interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	UpdateUser(ctx context.Context, id uint, mutate func(u *models.User) error) (*models.User, error)
	DeleteUser(ctx context.Context, id uint) error
	ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error)
}

type UserService struct {
	Repo   UserStore
	Hasher hash.Hasher
	Events Publisher
	// Index is optional; when set, a deleted user's tasks are dropped from it.
	Index TaskIndex
}

// UpdateUserInput holds the editable fields. A nil field was not sent.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Role     *models.Role
	Password *string
}

func (in UpdateUserInput) complete() bool {
	return in.Username != nil && in.Email != nil && in.Role != nil && in.Password != nil
}

func (s *UserService) Get(ctx context.Context, actor Identity, id uint) (*models.User, error) {
	if err := RequireOwnerOrAdmin(actor, id); err != nil {
		return nil, err
	}
	user, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "find user")
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, actor Identity, offset, limit int) (int64, []models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return 0, nil, err
	}
	total, items, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list users: %w", err)
	}
	return total, items, nil
}

// Update applies in to user id. full selects replace semantics, where every
// editable field must be present. Access is checked first, then existence,
// and only then the body.
func (s *UserService) Update(ctx context.Context, actor Identity, id uint, in UpdateUserInput, full bool) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.update", "user_id", id, "actor_id", actor.UserID)

	if err := RequireOwnerOrAdmin(actor, id); err != nil {
		l.Warn("user_update_denied", "status", 403)
		return nil, err
	}
	if in.Role != nil && *in.Role == models.RoleAdmin {
		if err := RequireAdmin(actor); err != nil {
			l.Warn("user_update_denied", "status", 403, "reason", "role escalation")
			return nil, err
		}
	}
	if _, err := s.Repo.FindUserByID(ctx, id); err != nil {
		return nil, mapRepoErr(err, "find user")
	}
	if full && !in.complete() {
		return nil, validationf("username, email, role and password are all required")
	}
	if err := checkRules(in); err != nil {
		l.Warn("user_update_failed", "status", 400, "error", err)
		return nil, err
	}

	var pwHash string
	if in.Password != nil {
		h, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		pwHash = h
	}

	user, err := s.Repo.UpdateUser(ctx, id, func(u *models.User) error {
		if in.Username != nil {
			u.Username = strings.TrimSpace(*in.Username)
		}
		if in.Email != nil {
			u.Email = strings.TrimSpace(*in.Email)
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.Password != nil {
			u.PasswordHash = pwHash
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			l.Warn("user_update_failed", "status", 409)
			return nil, ErrConflict
		}
		return nil, mapRepoErr(err, "update user")
	}

	publish(ctx, s.Events, TopicUserEvents, Event{Type: "user_updated", UserID: user.ID, Username: user.Username, ActorID: actor.UserID})
	l.Info("user_updated")
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor Identity, id uint) error {
	l := logging.FromContext(ctx).With("svc", "users.delete", "user_id", id, "actor_id", actor.UserID)

	if err := RequireOwnerOrAdmin(actor, id); err != nil {
		l.Warn("user_delete_denied", "status", 403)
		return err
	}
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		return mapRepoErr(err, "delete user")
	}

	if s.Index != nil {
		if err := s.Index.DeleteByOwner(ctx, id); err != nil {
			l.Error("index_delete_failed", "error", err)
		}
	}
	publish(ctx, s.Events, TopicUserEvents, Event{Type: "user_deleted", UserID: id, ActorID: actor.UserID})
	l.Info("user_deleted")
	return nil
}

func mapRepoErr(err error, op string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrValidation):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
