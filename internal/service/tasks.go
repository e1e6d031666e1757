package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
)

const MaxTitleLen = 100

type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	FindTaskByID(ctx context.Context, id uint) (*models.Task, error)
	UpdateTask(ctx context.Context, id uint, mutate func(t *models.Task) error) (*models.Task, error)
	DeleteTask(ctx context.Context, id uint, authorize func(t models.Task) error) (*models.Task, error)
	ListTasks(ctx context.Context, offset, limit int) (int64, []models.Task, error)
	ListTasksByOwner(ctx context.Context, ownerID uint, offset, limit int) (int64, []models.Task, error)
}

// TaskIndex is the full text side of tasks. ownerID 0 in Search means all owners.
type TaskIndex interface {
	Put(ctx context.Context, t models.Task) error
	Delete(ctx context.Context, id uint) error
	DeleteByOwner(ctx context.Context, ownerID uint) error
	Search(ctx context.Context, query string, ownerID uint, offset, limit int) (int64, []models.Task, error)
}

type TaskService struct {
	Repo   TaskStore
	Index  TaskIndex
	Events Publisher
}

type CreateTaskInput struct {
	Title       string
	Description string
	Done        bool
	DueDate     *time.Time
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Done        *bool
	DueDate     *time.Time
}

func (in UpdateTaskInput) complete() bool {
	return in.Title != nil && in.Description != nil && in.Done != nil && in.DueDate != nil
}

func checkTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return validationf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return validationf("title must be at most %d characters", MaxTitleLen)
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, actor Identity, in CreateTaskInput) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "tasks.create", "actor_id", actor.UserID)

	if err := checkTitle(in.Title); err != nil {
		return nil, err
	}
	task := &models.Task{
		Title:       in.Title,
		Description: in.Description,
		Done:        in.Done,
		DueDate:     in.DueDate,
		UserID:      actor.UserID,
	}
	if err := s.Repo.CreateTask(ctx, task); err != nil {
		l.Error("task_create_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.mirror(ctx, "task_created", *task, actor)
	l.Info("task_created", "task_id", task.ID)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, actor Identity, id uint) (*models.Task, error) {
	task, err := s.Repo.FindTaskByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "find task")
	}
	if err := RequireOwnerOrAdmin(actor, task.UserID); err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies in to task id. The task is loaded and its owner checked
// before the body, so callers without access never see validation errors.
func (s *TaskService) Update(ctx context.Context, actor Identity, id uint, in UpdateTaskInput, full bool) (*models.Task, error) {
	l := logging.FromContext(ctx).With("svc", "tasks.update", "task_id", id, "actor_id", actor.UserID)

	task, err := s.Repo.UpdateTask(ctx, id, func(t *models.Task) error {
		if err := RequireOwnerOrAdmin(actor, t.UserID); err != nil {
			return err
		}
		if full && !in.complete() {
			return validationf("title, description, done and due_date are all required")
		}
		if err := checkRules(in); err != nil {
			return err
		}
		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Done != nil {
			t.Done = *in.Done
		}
		if in.DueDate != nil {
			due := *in.DueDate
			t.DueDate = &due
		}
		return nil
	})
	if err != nil {
		l.Warn("task_update_failed", "error", err)
		return nil, mapRepoErr(err, "update task")
	}

	s.mirror(ctx, "task_updated", *task, actor)
	l.Info("task_updated")
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, actor Identity, id uint) error {
	l := logging.FromContext(ctx).With("svc", "tasks.delete", "task_id", id, "actor_id", actor.UserID)

	task, err := s.Repo.DeleteTask(ctx, id, func(t models.Task) error {
		return RequireOwnerOrAdmin(actor, t.UserID)
	})
	if err != nil {
		l.Warn("task_delete_failed", "error", err)
		return mapRepoErr(err, "delete task")
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, task.ID); err != nil {
			l.Error("index_delete_failed", "error", err)
		}
	}
	publish(ctx, s.Events, TopicTaskEvents, Event{Type: "task_deleted", UserID: task.UserID, TaskID: task.ID, ActorID: actor.UserID})
	l.Info("task_deleted")
	return nil
}

func (s *TaskService) ListAll(ctx context.Context, actor Identity, offset, limit int) (int64, []models.Task, error) {
	if err := RequireAdmin(actor); err != nil {
		return 0, nil, err
	}
	total, items, err := s.Repo.ListTasks(ctx, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list tasks: %w", err)
	}
	return total, items, nil
}

func (s *TaskService) ListByOwner(ctx context.Context, actor Identity, ownerID uint, offset, limit int) (int64, []models.Task, error) {
	if err := RequireOwnerOrAdmin(actor, ownerID); err != nil {
		return 0, nil, err
	}
	total, items, err := s.Repo.ListTasksByOwner(ctx, ownerID, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("list tasks by owner: %w", err)
	}
	return total, items, nil
}

// Search queries the index. Administrators search every task, everyone
// else only their own.
func (s *TaskService) Search(ctx context.Context, actor Identity, query string, offset, limit int) (int64, []models.Task, error) {
	if s.Index == nil {
		return 0, nil, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil, validationf("query parameter q is required")
	}

	owner := actor.UserID
	if actor.IsAdmin() {
		owner = 0
	}
	total, items, err := s.Index.Search(ctx, query, owner, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Error("task_search_failed", "status", 500, "error", err)
		return 0, nil, fmt.Errorf("search tasks: %w", err)
	}
	return total, items, nil
}

func (s *TaskService) mirror(ctx context.Context, eventType string, task models.Task, actor Identity) {
	if s.Index != nil {
		if err := s.Index.Put(ctx, task); err != nil {
			logging.FromContext(ctx).Error("index_put_failed", "task_id", task.ID, "error", err)
		}
	}
	publish(ctx, s.Events, TopicTaskEvents, Event{Type: eventType, UserID: task.UserID, TaskID: task.ID, ActorID: actor.UserID})
}
