package task

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a task is not found.
	ErrNotFound = errors.New("task not found")
	// ErrStaleAggregate is returned when a concurrent write invalidated the
	// loaded task version. Mutate retries on it; callers only see it after
	// retries are exhausted.
	ErrStaleAggregate = errors.New("task was modified concurrently")
)

// mutateRetries bounds optimistic-lock retries in Mutate.
const mutateRetries = 3

// Repository provides access to task storage using GORM. The whole task
// aggregate (offers and comments included) is read and written as a unit.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new task repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the task tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Task{}, &Offer{}, &Comment{}, &ProfessionalStats{})
}

// Create saves a new task to the database.
func (r *Repository) Create(ctx context.Context, task *Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindByID retrieves a task with its offers and comments.
func (r *Repository) FindByID(ctx context.Context, id string) (*Task, error) {
	var task Task
	err := r.db.WithContext(ctx).
		Preload("Offers").
		Preload("Comments").
		First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

// FindByOwner retrieves all tasks owned by the given user.
func (r *Repository) FindByOwner(ctx context.Context, owner string) ([]*Task, error) {
	var tasks []*Task
	err := r.db.WithContext(ctx).
		Preload("Offers").
		Preload("Comments").
		Where("owner = ?", owner).
		Order("created_at").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks by owner: %w", err)
	}
	return tasks, nil
}

// FindAll retrieves all tasks.
func (r *Repository) FindAll(ctx context.Context) ([]*Task, error) {
	var tasks []*Task
	err := r.db.WithContext(ctx).
		Preload("Offers").
		Preload("Comments").
		Order("created_at").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

// Mutate performs a transactional read-modify-write on a task aggregate.
// The mutation function receives the freshly loaded task; if it returns an
// error the transaction is rolled back and the error is returned unchanged.
// An optimistic version guard serializes concurrent mutations of the same
// task: on a version conflict the whole read-modify-write is retried, so
// every mutation is evaluated against a consistent snapshot.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(*Task) error) (*Task, error) {
	var lastErr error
	for attempt := 0; attempt < mutateRetries; attempt++ {
		task, err := r.mutateOnce(ctx, id, fn)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, ErrStaleAggregate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Repository) mutateOnce(ctx context.Context, id string, fn func(*Task) error) (*Task, error) {
	var out *Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := tx.Preload("Offers").Preload("Comments").First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}

		if err := fn(&task); err != nil {
			return err
		}

		if err := saveAggregate(tx, &task); err != nil {
			return err
		}
		out = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteWithStats mutates a task and increments the completed-task counter
// of the professional returned by the mutation function, in one transaction.
// If either write fails, neither is applied.
func (r *Repository) CompleteWithStats(ctx context.Context, id string, fn func(*Task) (string, error)) (*Task, error) {
	var out *Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := tx.Preload("Offers").Preload("Comments").First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}

		professionalID, err := fn(&task)
		if err != nil {
			return err
		}

		if err := saveAggregate(tx, &task); err != nil {
			return err
		}

		stats := ProfessionalStats{ProfessionalID: professionalID, CompletedTasks: 1}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "professional_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"completed_tasks": gorm.Expr("completed_tasks + 1"),
			}),
		}).Create(&stats).Error
		if err != nil {
			return fmt.Errorf("failed to update professional stats: %w", err)
		}

		out = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// saveAggregate persists the task row with a version guard, then its offers
// and comments. Must run inside a transaction.
func saveAggregate(tx *gorm.DB, task *Task) error {
	prev := task.Version
	task.Version++

	res := tx.Model(&Task{}).
		Where("id = ? AND version = ?", task.ID, prev).
		Select("title", "description", "comment", "due_date", "category",
			"location", "urgency", "status", "version", "updated_at").
		Updates(task)
	if res.Error != nil {
		return fmt.Errorf("failed to save task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleAggregate
	}

	// Offers and comments are upserted: the mutation function may have
	// appended new rows or changed existing ones.
	for i := range task.Offers {
		err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&task.Offers[i]).Error
		if err != nil {
			return fmt.Errorf("failed to save offer: %w", err)
		}
	}
	for i := range task.Comments {
		err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&task.Comments[i]).Error
		if err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}
	}
	return nil
}

// Delete permanently removes a task and its offers and comments. The guard
// function, if non-nil, sees the loaded aggregate inside the same
// transaction; returning an error aborts the deletion. This keeps
// eligibility checks and the removal on one consistent snapshot.
func (r *Repository) Delete(ctx context.Context, id string, guard func(*Task) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := tx.Preload("Offers").Preload("Comments").First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load task: %w", err)
		}

		if guard != nil {
			if err := guard(&task); err != nil {
				return err
			}
		}

		if err := tx.Delete(&Offer{}, "task_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete offers: %w", err)
		}
		if err := tx.Delete(&Comment{}, "task_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		if err := tx.Delete(&Task{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}

// StatsFor returns the stats row for a professional. A professional with no
// completed tasks yet has a zero-valued row.
func (r *Repository) StatsFor(ctx context.Context, professionalID string) (*ProfessionalStats, error) {
	var stats ProfessionalStats
	err := r.db.WithContext(ctx).First(&stats, "professional_id = ?", professionalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ProfessionalStats{ProfessionalID: professionalID}, nil
		}
		return nil, fmt.Errorf("failed to load professional stats: %w", err)
	}
	return &stats, nil
}
