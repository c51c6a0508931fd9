package task

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/task-marketplace/domain/task"
	"github.com/example/task-marketplace/domain/user"
)

// stubAuthPort resolves owner names from a fixed map.
type stubAuthPort struct {
	users map[string]string
}

func (s *stubAuthPort) ValidateToken(_ context.Context, _ string) (*user.Claims, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAuthPort) GetUser(_ context.Context, userID string) (*user.User, error) {
	name, ok := s.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &user.User{ID: userID, Name: name}, nil
}

func setupService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	repo := domain.NewRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	authPort := &stubAuthPort{users: map[string]string{
		"user-1": "Alice Owner",
		"user-2": "Bob Owner",
		"pro-1":  "Paula Pro",
		"pro-2":  "Pete Pro",
	}}

	var seq int
	newID := func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	return NewService(repo, authPort, nil, newID)
}

// recordingCache records invalidations; reads always miss.
type recordingCache struct {
	deletedPatterns []string
}

func (c *recordingCache) Get(_ context.Context, _ string, _ any) (bool, error) { return false, nil }
func (c *recordingCache) Set(_ context.Context, _ string, _ any) error         { return nil }
func (c *recordingCache) Delete(_ context.Context, _ string) error             { return nil }

func (c *recordingCache) DeletePattern(_ context.Context, pattern string) error {
	c.deletedPatterns = append(c.deletedPatterns, pattern)
	return nil
}

func ownerClaims(id, name string) user.Claims {
	return user.Claims{UserID: id, Name: name, Role: user.RoleUser}
}

func proClaims(id, name string) user.Claims {
	return user.Claims{UserID: id, Name: name, IsProfessional: true, Role: user.RoleProfessional}
}

func mustCreate(t *testing.T, svc *Service, owner user.Claims, title string) *domain.Task {
	t.Helper()
	task, err := svc.CreateTask(context.Background(), owner, CreateTaskRequest{
		Title:       title,
		Description: "description of " + title,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func mustOffer(t *testing.T, svc *Service, pro user.Claims, taskID string, price float64) string {
	t.Helper()
	if err := svc.SubmitOffer(context.Background(), pro, taskID, SubmitOfferRequest{Price: price}); err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	task, err := svc.repo.FindByID(context.Background(), taskID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	for _, o := range task.Offers {
		if o.Professional == pro.UserID && o.Price == price {
			return o.ID
		}
	}
	t.Fatalf("offer by %s not found on task %s", pro.UserID, taskID)
	return ""
}

func TestCreateTask(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	t.Run("owner creates open task", func(t *testing.T) {
		task, err := svc.CreateTask(ctx, ownerClaims("user-1", "Alice Owner"), CreateTaskRequest{
			Title:       "  Fix the sink  ",
			Description: "Kitchen sink is leaking",
		})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		if task.Status != domain.StatusOpen {
			t.Errorf("status = %v, want %v", task.Status, domain.StatusOpen)
		}
		if task.Owner != "user-1" {
			t.Errorf("owner = %v, want user-1", task.Owner)
		}
		if task.Title != "Fix the sink" {
			t.Errorf("title = %q, want trimmed title", task.Title)
		}
		if task.ID == "" {
			t.Error("expected generated task ID")
		}
	})

	t.Run("professional cannot create", func(t *testing.T) {
		_, err := svc.CreateTask(ctx, proClaims("pro-1", "Paula Pro"), CreateTaskRequest{
			Title:       "t",
			Description: "d",
		})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := svc.CreateTask(ctx, ownerClaims("user-1", "Alice Owner"), CreateTaskRequest{
			Description: "d",
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("missing description", func(t *testing.T) {
		_, err := svc.CreateTask(ctx, ownerClaims("user-1", "Alice Owner"), CreateTaskRequest{
			Title: "t",
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestListTasks_Scoping(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")

	mustCreate(t, svc, alice, "Alice task 1")
	mustCreate(t, svc, alice, "Alice task 2")
	mustCreate(t, svc, bob, "Bob task")

	aliceList, err := svc.ListTasks(ctx, alice)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(aliceList) != 2 {
		t.Errorf("owner listing len = %d, want 2", len(aliceList))
	}
	for _, s := range aliceList {
		if s.OwnerID != "user-1" {
			t.Errorf("owner listing contains foreign task %v", s.ID)
		}
	}

	proList, err := svc.ListTasks(ctx, paula)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(proList) != 3 {
		t.Errorf("professional listing len = %d, want 3", len(proList))
	}
}

func TestListTasks_Projection(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	paula := proClaims("pro-1", "Paula Pro")

	task := mustCreate(t, svc, alice, "Paint fence")
	offerID := mustOffer(t, svc, paula, task.ID, 300)

	list, err := svc.ListTasks(ctx, paula)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("listing len = %d, want 1", len(list))
	}

	s := list[0]
	if s.OwnerName != "Alice Owner" {
		t.Errorf("owner name = %q, want resolved name", s.OwnerName)
	}
	if len(s.Offers) != 1 {
		t.Fatalf("offer stamps = %d, want 1", len(s.Offers))
	}
	if s.Offers[0].ID != offerID {
		t.Errorf("stamp ID = %v, want %v", s.Offers[0].ID, offerID)
	}
	if s.Offers[0].CreatedAt.IsZero() {
		t.Error("stamp CreatedAt is zero")
	}
}

func TestListTasks_OwnerNameFallback(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	ghost := ownerClaims("ghost-1", "")
	paula := proClaims("pro-1", "Paula Pro")

	task := mustCreate(t, svc, ghost, "Orphan task")

	// Owner is unknown to auth; the listing falls back to the raw ID.
	list, err := svc.ListTasks(ctx, paula)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("listing len = %d, want 1", len(list))
	}
	if list[0].OwnerName != task.Owner {
		t.Errorf("owner name = %q, want fallback to owner ID %q", list[0].OwnerName, task.Owner)
	}
}

func TestGetTask(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")

	task := mustCreate(t, svc, alice, "Alice task")

	if _, err := svc.GetTask(ctx, alice, task.ID); err != nil {
		t.Errorf("owner GetTask() error = %v", err)
	}
	if _, err := svc.GetTask(ctx, paula, task.ID); err != nil {
		t.Errorf("professional GetTask() error = %v", err)
	}
	if _, err := svc.GetTask(ctx, bob, task.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign owner GetTask() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetTask(ctx, alice, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing GetTask() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateTask(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")

	t.Run("partial update keeps other fields", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Original title")

		title := "New title"
		updated, err := svc.UpdateTask(ctx, alice, task.ID, UpdateTaskRequest{Title: &title})
		if err != nil {
			t.Fatalf("UpdateTask() error = %v", err)
		}
		if updated.Title != "New title" {
			t.Errorf("title = %q, want New title", updated.Title)
		}
		if updated.Description != task.Description {
			t.Errorf("description changed: %q", updated.Description)
		}
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Alice task")
		title := "hijacked"
		if _, err := svc.UpdateTask(ctx, bob, task.ID, UpdateTaskRequest{Title: &title}); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("blocked after accepted offer", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Soon in progress")
		offerID := mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.DecideOffer(ctx, alice, task.ID, offerID, DecisionAccept); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}

		title := "too late"
		if _, err := svc.UpdateTask(ctx, alice, task.ID, UpdateTaskRequest{Title: &title}); !errors.Is(err, ErrInvalidState) {
			t.Errorf("error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("empty title rejected", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Valid task")
		empty := "   "
		if _, err := svc.UpdateTask(ctx, alice, task.ID, UpdateTaskRequest{Title: &empty}); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")

	t.Run("owner deletes with pending offers", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Deletable")
		mustOffer(t, svc, paula, task.ID, 50)

		if err := svc.DeleteTask(ctx, alice, task.ID); err != nil {
			t.Fatalf("DeleteTask() error = %v", err)
		}
		if _, err := svc.repo.FindByID(ctx, task.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("FindByID after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Not yours")
		if err := svc.DeleteTask(ctx, bob, task.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("blocked after accepted offer", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Committed")
		offerID := mustOffer(t, svc, paula, task.ID, 80)
		if err := svc.DecideOffer(ctx, alice, task.ID, offerID, DecisionAccept); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}

		if err := svc.DeleteTask(ctx, alice, task.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("missing task", func(t *testing.T) {
		if err := svc.DeleteTask(ctx, alice, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestSubmitOffer(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	paula := proClaims("pro-1", "Paula Pro")

	task := mustCreate(t, svc, alice, "Open task")

	t.Run("professional submits pending offer", func(t *testing.T) {
		err := svc.SubmitOffer(ctx, paula, task.ID, SubmitOfferRequest{Price: 150, Message: "Tomorrow"})
		if err != nil {
			t.Fatalf("SubmitOffer() error = %v", err)
		}

		loaded, err := svc.repo.FindByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if len(loaded.Offers) != 1 {
			t.Fatalf("offers = %d, want 1", len(loaded.Offers))
		}
		o := loaded.Offers[0]
		if o.Status != domain.OfferPending {
			t.Errorf("offer status = %v, want %v", o.Status, domain.OfferPending)
		}
		if o.Professional != "pro-1" {
			t.Errorf("offer professional = %v, want pro-1", o.Professional)
		}
	})

	t.Run("user cannot offer", func(t *testing.T) {
		err := svc.SubmitOffer(ctx, alice, task.ID, SubmitOfferRequest{Price: 10})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		err := svc.SubmitOffer(ctx, paula, task.ID, SubmitOfferRequest{Price: 0})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("missing task", func(t *testing.T) {
		err := svc.SubmitOffer(ctx, paula, "missing", SubmitOfferRequest{Price: 10})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDecideOffer(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")
	pete := proClaims("pro-2", "Pete Pro")

	offerStatus := func(t *testing.T, taskID, offerID string) string {
		t.Helper()
		loaded, err := svc.repo.FindByID(ctx, taskID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		o := loaded.FindOffer(offerID)
		if o == nil {
			t.Fatalf("offer %s not found", offerID)
		}
		return o.Status
	}

	t.Run("accept moves task in progress", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Accept target")
		offerA := mustOffer(t, svc, paula, task.ID, 100)
		offerB := mustOffer(t, svc, pete, task.ID, 90)

		if err := svc.DecideOffer(ctx, alice, task.ID, offerA, DecisionAccept); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}

		loaded, err := svc.repo.FindByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if loaded.Status != domain.StatusInProgress {
			t.Errorf("task status = %v, want %v", loaded.Status, domain.StatusInProgress)
		}
		if got := offerStatus(t, task.ID, offerA); got != domain.OfferAccepted {
			t.Errorf("offer A status = %v, want accepted", got)
		}
		// Other pending offers stay pending.
		if got := offerStatus(t, task.ID, offerB); got != domain.OfferPending {
			t.Errorf("offer B status = %v, want pending", got)
		}
	})

	t.Run("accepting another offer demotes the previous one", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Reassign")
		offerA := mustOffer(t, svc, paula, task.ID, 100)
		offerB := mustOffer(t, svc, pete, task.ID, 90)

		if err := svc.DecideOffer(ctx, alice, task.ID, offerA, DecisionAccept); err != nil {
			t.Fatalf("accept A error = %v", err)
		}
		if err := svc.DecideOffer(ctx, alice, task.ID, offerB, DecisionAccept); err != nil {
			t.Fatalf("accept B error = %v", err)
		}

		if got := offerStatus(t, task.ID, offerA); got != domain.OfferRejected {
			t.Errorf("offer A status = %v, want rejected after reassignment", got)
		}
		if got := offerStatus(t, task.ID, offerB); got != domain.OfferAccepted {
			t.Errorf("offer B status = %v, want accepted", got)
		}

		loaded, _ := svc.repo.FindByID(ctx, task.ID)
		accepted := 0
		for _, o := range loaded.Offers {
			if o.Status == domain.OfferAccepted {
				accepted++
			}
		}
		if accepted != 1 {
			t.Errorf("accepted offers = %d, want exactly 1", accepted)
		}
	})

	t.Run("reject touches only the target", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Reject one")
		offerA := mustOffer(t, svc, paula, task.ID, 100)
		offerB := mustOffer(t, svc, pete, task.ID, 90)

		if err := svc.DecideOffer(ctx, alice, task.ID, offerA, DecisionReject); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}
		if got := offerStatus(t, task.ID, offerA); got != domain.OfferRejected {
			t.Errorf("offer A status = %v, want rejected", got)
		}
		if got := offerStatus(t, task.ID, offerB); got != domain.OfferPending {
			t.Errorf("offer B status = %v, want pending", got)
		}

		loaded, _ := svc.repo.FindByID(ctx, task.ID)
		if loaded.Status != domain.StatusOpen {
			t.Errorf("task status = %v, want still open", loaded.Status)
		}
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Guarded")
		offerID := mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.DecideOffer(ctx, bob, task.ID, offerID, DecisionAccept); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown offer", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "No such offer")
		if err := svc.DecideOffer(ctx, alice, task.ID, "missing", DecisionAccept); !errors.Is(err, ErrOfferNotFound) {
			t.Errorf("error = %v, want ErrOfferNotFound", err)
		}
	})

	t.Run("invalid decision", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Maybe later")
		offerID := mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.DecideOffer(ctx, alice, task.ID, offerID, "maybe"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestCompleteTask(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	paula := proClaims("pro-1", "Paula Pro")
	pete := proClaims("pro-2", "Pete Pro")

	t.Run("assigned professional completes and counter increments", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Complete me")
		offerID := mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.DecideOffer(ctx, alice, task.ID, offerID, DecisionAccept); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}

		if err := svc.CompleteTask(ctx, paula, task.ID); err != nil {
			t.Fatalf("CompleteTask() error = %v", err)
		}

		loaded, err := svc.repo.FindByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if loaded.Status != domain.StatusCompleted {
			t.Errorf("task status = %v, want %v", loaded.Status, domain.StatusCompleted)
		}

		stats, err := svc.StatsFor(ctx, "pro-1")
		if err != nil {
			t.Fatalf("StatsFor() error = %v", err)
		}
		if stats.CompletedTasks != 1 {
			t.Errorf("completed tasks = %d, want 1", stats.CompletedTasks)
		}
	})

	t.Run("non-professional forbidden", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Owner cannot complete")
		if err := svc.CompleteTask(ctx, alice, task.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("role check precedes lookup", func(t *testing.T) {
		if err := svc.CompleteTask(ctx, alice, "missing"); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden before not-found", err)
		}
	})

	t.Run("no accepted offer", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Still open")
		mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.CompleteTask(ctx, paula, task.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("wrong professional forbidden", func(t *testing.T) {
		task := mustCreate(t, svc, alice, "Assigned to Paula")
		offerID := mustOffer(t, svc, paula, task.ID, 100)
		if err := svc.DecideOffer(ctx, alice, task.ID, offerID, DecisionAccept); err != nil {
			t.Fatalf("DecideOffer() error = %v", err)
		}

		if err := svc.CompleteTask(ctx, pete, task.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}

		// Failed completion must not bump Pete's counter.
		stats, err := svc.StatsFor(ctx, "pro-2")
		if err != nil {
			t.Fatalf("StatsFor() error = %v", err)
		}
		if stats.CompletedTasks != 0 {
			t.Errorf("completed tasks = %d, want 0", stats.CompletedTasks)
		}
	})
}

func TestAddComment(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	bob := ownerClaims("user-2", "Bob Owner")
	paula := proClaims("pro-1", "Paula Pro")

	task := mustCreate(t, svc, alice, "Discussion")

	t.Run("owner comments", func(t *testing.T) {
		if err := svc.AddComment(ctx, alice, task.ID, "any takers?"); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
	})

	t.Run("professional comments on any task", func(t *testing.T) {
		if err := svc.AddComment(ctx, paula, task.ID, "I can help"); err != nil {
			t.Fatalf("AddComment() error = %v", err)
		}
	})

	t.Run("foreign user forbidden", func(t *testing.T) {
		if err := svc.AddComment(ctx, bob, task.ID, "me too"); !errors.Is(err, ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if err := svc.AddComment(ctx, alice, task.ID, "   "); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("comments persisted with author", func(t *testing.T) {
		loaded, err := svc.repo.FindByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if len(loaded.Comments) != 2 {
			t.Fatalf("comments = %d, want 2", len(loaded.Comments))
		}
		authors := map[string]bool{}
		for _, c := range loaded.Comments {
			authors[c.Author] = true
		}
		if !authors["user-1"] || !authors["pro-1"] {
			t.Errorf("comment authors = %v, want user-1 and pro-1", authors)
		}
	})
}

// Every mutation must drop the cached listings, comments included: the
// list projection may grow, and a stale cache would hide new rows.
func TestMutationsInvalidateListings(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	paula := proClaims("pro-1", "Paula Pro")

	rc := &recordingCache{}
	svc.cache = rc

	task := mustCreate(t, svc, alice, "Watched task")

	tests := []struct {
		name   string
		mutate func() error
	}{
		{
			name: "submit offer",
			mutate: func() error {
				return svc.SubmitOffer(ctx, paula, task.ID, SubmitOfferRequest{Price: 40})
			},
		},
		{
			name: "update task",
			mutate: func() error {
				title := "Renamed task"
				_, err := svc.UpdateTask(ctx, alice, task.ID, UpdateTaskRequest{Title: &title})
				return err
			},
		},
		{
			name: "add comment",
			mutate: func() error {
				return svc.AddComment(ctx, alice, task.ID, "still open")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc.deletedPatterns = nil
			if err := tt.mutate(); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			if len(rc.deletedPatterns) == 0 || rc.deletedPatterns[0] != "list:*" {
				t.Errorf("invalidations = %v, want list:*", rc.deletedPatterns)
			}
		})
	}
}

// TestMarketplaceFlow walks a task through its whole lifecycle: two
// professionals bid, the owner accepts one, the assigned professional
// completes, and the counter reflects it.
func TestMarketplaceFlow(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	alice := ownerClaims("user-1", "Alice Owner")
	paula := proClaims("pro-1", "Paula Pro")
	pete := proClaims("pro-2", "Pete Pro")

	task := mustCreate(t, svc, alice, "Assemble wardrobe")
	offerPaula := mustOffer(t, svc, paula, task.ID, 120)
	offerPete := mustOffer(t, svc, pete, task.ID, 95)

	if err := svc.DecideOffer(ctx, alice, task.ID, offerPete, DecisionAccept); err != nil {
		t.Fatalf("accept error = %v", err)
	}

	// Paula is not assigned and cannot complete.
	if err := svc.CompleteTask(ctx, paula, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned completion error = %v, want ErrForbidden", err)
	}

	if err := svc.CompleteTask(ctx, pete, task.ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	loaded, err := svc.repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if loaded.Status != domain.StatusCompleted {
		t.Errorf("task status = %v, want completed", loaded.Status)
	}
	if o := loaded.FindOffer(offerPaula); o == nil || o.Status != domain.OfferPending {
		t.Errorf("Paula's offer should remain pending, got %+v", o)
	}
	if o := loaded.FindOffer(offerPete); o == nil || o.Status != domain.OfferAccepted {
		t.Errorf("Pete's offer should be accepted, got %+v", o)
	}

	stats, err := svc.StatsFor(ctx, "pro-2")
	if err != nil {
		t.Fatalf("StatsFor() error = %v", err)
	}
	if stats.CompletedTasks != 1 {
		t.Errorf("completed tasks = %d, want 1", stats.CompletedTasks)
	}
}
