package task

import (
	"context"

	domain "github.com/example/task-marketplace/domain/task"
	"github.com/example/task-marketplace/domain/user"
)

// Port defines the task lifecycle operations consumed by the api module.
// *Service implements it; handler tests substitute a mock.
type Port interface {
	CreateTask(ctx context.Context, actor user.Claims, req CreateTaskRequest) (*domain.Task, error)
	ListTasks(ctx context.Context, actor user.Claims) ([]TaskSummary, error)
	GetTask(ctx context.Context, actor user.Claims, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, actor user.Claims, id string, req UpdateTaskRequest) (*domain.Task, error)
	DeleteTask(ctx context.Context, actor user.Claims, id string) error
	SubmitOffer(ctx context.Context, actor user.Claims, taskID string, req SubmitOfferRequest) error
	DecideOffer(ctx context.Context, actor user.Claims, taskID, offerID, decision string) error
	CompleteTask(ctx context.Context, actor user.Claims, taskID string) error
	AddComment(ctx context.Context, actor user.Claims, taskID, text string) error
	StatsFor(ctx context.Context, professionalID string) (*domain.ProfessionalStats, error)
}

var _ Port = (*Service)(nil)
