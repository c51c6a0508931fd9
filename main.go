package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/task-marketplace/modules/api"
	"github.com/example/task-marketplace/modules/auth"
	"github.com/example/task-marketplace/modules/cache"
	"github.com/example/task-marketplace/modules/task"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Task Marketplace ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	authModule := auth.NewModule()
	taskModule := task.NewModule()
	apiModule := api.NewModule()

	// Listing cache is optional: only wired when a Redis address is given.
	var cacheModule *cache.Module
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cacheModule = cache.NewModule(addr)
	}

	// Register modules with the framework
	// Order: independent modules first, then dependent modules
	app.Register(authModule)
	if cacheModule != nil {
		app.Register(cacheModule)
	}
	app.Register(taskModule)
	app.Register(apiModule)

	// Direct wiring for typed in-process calls. The task port is a stable
	// handle onto the module, so it can be wired before Start; the module
	// framework starts task before api.
	apiModule.SetTaskPort(taskModule.Port())

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// The cache is optional infrastructure and only usable once its Redis
	// connection is up, so it is attached after Start.
	if cacheModule != nil {
		taskModule.SetCache(cacheModule.GetCache())
	}

	printStartupInfo(cacheModule != nil)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cacheEnabled bool) {
	log.Println("")
	log.Println("Application started successfully!")
	if cacheEnabled {
		log.Println("Task listing cache: Redis")
	} else {
		log.Println("Task listing cache: disabled (set REDIS_ADDR to enable)")
	}
	log.Println("")
	log.Println("REST API Endpoints (http://localhost:3000):")
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  POST   /api/v1/auth/register  - Register a new user or professional")
	log.Println("  POST   /api/v1/auth/login     - Login and get tokens")
	log.Println("  POST   /api/v1/auth/refresh   - Refresh access token")
	log.Println("  GET    /health                - Health check")
	log.Println("")
	log.Println("  Protected Endpoints (require Bearer token):")
	log.Println("  GET    /api/v1/profile                                - Current user profile")
	log.Println("  GET    /api/v1/users/:id                              - Own account details")
	log.Println("  POST   /api/v1/tasks                                  - Post a task (users)")
	log.Println("  GET    /api/v1/tasks                                  - List tasks")
	log.Println("  GET    /api/v1/tasks/:id                              - Task details")
	log.Println("  PUT    /api/v1/tasks/:id                              - Edit an open task (owner)")
	log.Println("  DELETE /api/v1/tasks/:id                              - Delete a task (owner)")
	log.Println("  POST   /api/v1/tasks/:id/offers                       - Submit an offer (professionals)")
	log.Println("  POST   /api/v1/tasks/:taskId/offers/:offerId/decision - Accept or reject an offer (owner)")
	log.Println("  POST   /api/v1/tasks/:taskId/complete                 - Mark task complete (assigned professional)")
	log.Println("  POST   /api/v1/tasks/:id/comments                     - Comment on a task")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
