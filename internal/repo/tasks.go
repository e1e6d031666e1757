package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

func (r *GormRepo) CreateTask(ctx context.Context, t *models.Task) error {
	return translate(r.DB.WithContext(ctx).Create(t).Error)
}

func (r *GormRepo) FindTaskByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// UpdateTask runs mutate against the stored task inside a transaction.
// mutate sees the current owner, so it is also the place for access checks.
func (r *GormRepo) UpdateTask(ctx context.Context, id uint, mutate func(t *models.Task) error) (*models.Task, error) {
	var task models.Task
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			return translate(err)
		}
		if err := mutate(&task); err != nil {
			return err
		}
		return translate(tx.Save(&task).Error)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes the task once authorize accepts it.
func (r *GormRepo) DeleteTask(ctx context.Context, id uint, authorize func(t models.Task) error) (*models.Task, error) {
	var task models.Task
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			return translate(err)
		}
		if err := authorize(task); err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, task.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *GormRepo) ListTasks(ctx context.Context, offset, limit int) (int64, []models.Task, error) {
	return r.listTasks(r.DB.WithContext(ctx), offset, limit)
}

func (r *GormRepo) ListTasksByOwner(ctx context.Context, ownerID uint, offset, limit int) (int64, []models.Task, error) {
	return r.listTasks(r.DB.WithContext(ctx).Where("user_id = ?", ownerID), offset, limit)
}

func (r *GormRepo) listTasks(q *gorm.DB, offset, limit int) (int64, []models.Task, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Model(&models.Task{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Task, 0, limit)
	if err := q.Session(&gorm.Session{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
