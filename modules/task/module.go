package task

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-monolith/mono"
	gonanoid "github.com/jaevor/go-nanoid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/task-marketplace/domain/task"
	"github.com/example/task-marketplace/domain/user"
	"github.com/example/task-marketplace/modules/auth"
	"github.com/example/task-marketplace/modules/cache"
)

// embeddedIDLength is the nanoid length for offer and comment IDs.
const embeddedIDLength = 21

// Module provides the task lifecycle engine as a mono module. It owns the
// task store and the professional stats counters.
type Module struct {
	db      *gorm.DB
	repo    *domain.Repository
	service *Service
	auth    auth.AuthPort
	cache   cache.CacheService
	dbPath  string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)
var _ Port = (*Module)(nil)

// NewModule creates a new task module.
func NewModule() *Module {
	dbPath := os.Getenv("TASKS_DB_PATH")
	if dbPath == "" {
		dbPath = "marketplace_tasks.db"
	}
	return &Module{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "task"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.auth = auth.NewAuthAdapter(container)
	}
}

// SetCache wires the optional listing cache. May be called after Start;
// the app runs uncached until then.
func (m *Module) SetCache(c cache.CacheService) {
	m.cache = c
	if m.service != nil {
		m.service.cache = c
	}
}

// Start opens the task database and builds the lifecycle service.
func (m *Module) Start(_ context.Context) error {
	if m.auth == nil {
		return fmt.Errorf("auth dependency not set")
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db
	m.repo = domain.NewRepository(db)

	if err := m.repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	newID, err := gonanoid.Standard(embeddedIDLength)
	if err != nil {
		return fmt.Errorf("failed to create id generator: %w", err)
	}

	m.service = NewService(m.repo, m.auth, m.cache, newID)

	log.Printf("[task] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[task] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
			"cached":   m.cache != nil,
		},
	}
}

// Port returns the lifecycle engine port. The module itself is the port:
// it delegates to the service built in Start, so the handle is stable and
// may be wired into consumers before the application starts.
func (m *Module) Port() Port {
	return m
}

// CreateTask implements Port.
func (m *Module) CreateTask(ctx context.Context, actor user.Claims, req CreateTaskRequest) (*domain.Task, error) {
	return m.service.CreateTask(ctx, actor, req)
}

// ListTasks implements Port.
func (m *Module) ListTasks(ctx context.Context, actor user.Claims) ([]TaskSummary, error) {
	return m.service.ListTasks(ctx, actor)
}

// GetTask implements Port.
func (m *Module) GetTask(ctx context.Context, actor user.Claims, id string) (*domain.Task, error) {
	return m.service.GetTask(ctx, actor, id)
}

// UpdateTask implements Port.
func (m *Module) UpdateTask(ctx context.Context, actor user.Claims, id string, req UpdateTaskRequest) (*domain.Task, error) {
	return m.service.UpdateTask(ctx, actor, id, req)
}

// DeleteTask implements Port.
func (m *Module) DeleteTask(ctx context.Context, actor user.Claims, id string) error {
	return m.service.DeleteTask(ctx, actor, id)
}

// SubmitOffer implements Port.
func (m *Module) SubmitOffer(ctx context.Context, actor user.Claims, taskID string, req SubmitOfferRequest) error {
	return m.service.SubmitOffer(ctx, actor, taskID, req)
}

// DecideOffer implements Port.
func (m *Module) DecideOffer(ctx context.Context, actor user.Claims, taskID, offerID, decision string) error {
	return m.service.DecideOffer(ctx, actor, taskID, offerID, decision)
}

// CompleteTask implements Port.
func (m *Module) CompleteTask(ctx context.Context, actor user.Claims, taskID string) error {
	return m.service.CompleteTask(ctx, actor, taskID)
}

// AddComment implements Port.
func (m *Module) AddComment(ctx context.Context, actor user.Claims, taskID, text string) error {
	return m.service.AddComment(ctx, actor, taskID, text)
}

// StatsFor implements Port.
func (m *Module) StatsFor(ctx context.Context, professionalID string) (*domain.ProfessionalStats, error) {
	return m.service.StatsFor(ctx, professionalID)
}
