package task

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domain "github.com/example/task-marketplace/domain/task"
	"github.com/example/task-marketplace/domain/user"
	"github.com/example/task-marketplace/modules/auth"
	"github.com/example/task-marketplace/modules/cache"
)

// Service is the task lifecycle engine. It enforces who may mutate a task
// and when, and persists every change through the task repository. All
// methods take the verified identity of the acting user; token verification
// happens upstream in the api module.
type Service struct {
	repo    *domain.Repository
	auth    auth.AuthPort
	cache   cache.CacheService // nil when Redis is not configured
	sfGroup singleflight.Group
	newID   func() string
}

// NewService creates a new task service. newID generates IDs for embedded
// offers and comments.
func NewService(repo *domain.Repository, authPort auth.AuthPort, c cache.CacheService, newID func() string) *Service {
	return &Service{
		repo:  repo,
		auth:  authPort,
		cache: c,
		newID: newID,
	}
}

// CreateTask creates a new open task owned by the actor. Professionals may
// not post tasks.
func (s *Service) CreateTask(ctx context.Context, actor user.Claims, req CreateTaskRequest) (*domain.Task, error) {
	if actor.IsProfessional {
		return nil, fmt.Errorf("%w: only users can create tasks", ErrForbidden)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidArgument)
	}

	t := &domain.Task{
		ID:          uuid.New().String(),
		Owner:       actor.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Comment:     req.Comment,
		DueDate:     req.DueDate,
		Status:      domain.StatusOpen,
		Offers:      []domain.Offer{},
		Comments:    []domain.Comment{},
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return t, nil
}

// ListTasks returns the task listing for the actor: owners see their own
// tasks, professionals see every task. The projection exposes offer
// identities and timestamps only. Listings are served cache-aside when a
// cache is configured, with singleflight guarding the rebuild.
func (s *Service) ListTasks(ctx context.Context, actor user.Claims) ([]TaskSummary, error) {
	key := listingKey(actor)

	if s.cache != nil {
		var cached []TaskSummary
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Printf("[task] Cache error for %s: %v", key, err)
		}
		if found {
			return cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do(key, func() (any, error) {
		return s.buildListing(ctx, actor)
	})
	if err != nil {
		return nil, err
	}
	summaries := val.([]TaskSummary)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summaries); err != nil {
			log.Printf("[task] Failed to cache %s: %v", key, err)
		}
	}

	return summaries, nil
}

// GetTask returns a full task aggregate, for owners and professionals. An
// owner may only fetch their own tasks.
func (s *Service) GetTask(ctx context.Context, actor user.Claims, id string) (*domain.Task, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsProfessional && t.Owner != actor.UserID {
		return nil, fmt.Errorf("%w: not the task owner", ErrForbidden)
	}
	return t, nil
}

// UpdateTask applies a partial update to a task. Only the owner may edit,
// and only while the task is open with no accepted offer.
func (s *Service) UpdateTask(ctx context.Context, actor user.Claims, id string, req UpdateTaskRequest) (*domain.Task, error) {
	t, err := s.repo.Mutate(ctx, id, func(t *domain.Task) error {
		if t.Owner != actor.UserID {
			return fmt.Errorf("%w: not the task owner", ErrForbidden)
		}
		if t.HasAcceptedOffer() || t.Status != domain.StatusOpen {
			return fmt.Errorf("%w: cannot edit task once in progress or an offer was accepted", ErrInvalidState)
		}

		if req.Title != nil {
			if strings.TrimSpace(*req.Title) == "" {
				return fmt.Errorf("%w: title cannot be empty", ErrInvalidArgument)
			}
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Comment != nil {
			t.Comment = *req.Comment
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Category != nil {
			t.Category = *req.Category
		}
		if req.Location != nil {
			t.Location = *req.Location
		}
		if req.Urgency != nil {
			t.Urgency = *req.Urgency
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListings(ctx)
	return t, nil
}

// DeleteTask permanently removes a task. Only the owner may delete, and
// never after an offer was accepted. An in-progress status alone does not
// block deletion; the accepted offer does.
func (s *Service) DeleteTask(ctx context.Context, actor user.Claims, id string) error {
	err := s.repo.Delete(ctx, id, func(t *domain.Task) error {
		if t.Owner != actor.UserID {
			return fmt.Errorf("%w: not the task owner", ErrForbidden)
		}
		if t.HasAcceptedOffer() {
			return fmt.Errorf("%w: cannot delete task after an offer was accepted", ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// SubmitOffer appends a pending offer from a professional to a task.
func (s *Service) SubmitOffer(ctx context.Context, actor user.Claims, taskID string, req SubmitOfferRequest) error {
	if !actor.IsProfessional {
		return fmt.Errorf("%w: only professionals can send offers", ErrForbidden)
	}
	if req.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}

	now := time.Now()
	_, err := s.repo.Mutate(ctx, taskID, func(t *domain.Task) error {
		t.Offers = append(t.Offers, domain.Offer{
			ID:           s.newID(),
			TaskID:       t.ID,
			Professional: actor.UserID,
			Price:        req.Price,
			Message:      req.Message,
			Status:       domain.OfferPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// DecideOffer accepts or rejects an offer on behalf of the task owner.
// Accepting promotes the target offer, demotes any other currently accepted
// offer to rejected, and moves the task to in_progress; offers that were
// not accepted keep their status. Rejecting touches only the target offer.
// Offer and task status change in one transaction.
func (s *Service) DecideOffer(ctx context.Context, actor user.Claims, taskID, offerID, decision string) error {
	_, err := s.repo.Mutate(ctx, taskID, func(t *domain.Task) error {
		if t.Owner != actor.UserID {
			return fmt.Errorf("%w: not the task owner", ErrForbidden)
		}
		target := t.FindOffer(offerID)
		if target == nil {
			return ErrOfferNotFound
		}

		switch decision {
		case DecisionAccept:
			for i := range t.Offers {
				o := &t.Offers[i]
				switch {
				case o.ID == target.ID:
					o.Status = domain.OfferAccepted
				case o.Status == domain.OfferAccepted:
					o.Status = domain.OfferRejected
				}
			}
			t.Status = domain.StatusInProgress
			return nil
		case DecisionReject:
			target.Status = domain.OfferRejected
			return nil
		default:
			return fmt.Errorf("%w: invalid decision %q", ErrInvalidArgument, decision)
		}
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// CompleteTask marks a task completed. The actor's derived role must be
// professional and the accepted offer must be theirs. The task status and
// the professional's completed-task counter are written in one
// transaction: either both apply or neither does.
func (s *Service) CompleteTask(ctx context.Context, actor user.Claims, taskID string) error {
	if user.RoleFor(actor.IsProfessional) != user.RoleProfessional {
		return fmt.Errorf("%w: professional role required", ErrForbidden)
	}

	_, err := s.repo.CompleteWithStats(ctx, taskID, func(t *domain.Task) (string, error) {
		accepted := t.AcceptedOffer()
		if accepted == nil {
			return "", fmt.Errorf("%w: no accepted offer", ErrInvalidState)
		}
		if accepted.Professional != actor.UserID {
			return "", fmt.Errorf("%w: you are not assigned to this task", ErrForbidden)
		}
		t.Status = domain.StatusCompleted
		return accepted.Professional, nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// AddComment appends a comment to a task. Any professional may comment;
// non-professionals only on their own tasks.
func (s *Service) AddComment(ctx context.Context, actor user.Claims, taskID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: missing text", ErrInvalidArgument)
	}

	now := time.Now()
	_, err := s.repo.Mutate(ctx, taskID, func(t *domain.Task) error {
		if !actor.IsProfessional && t.Owner != actor.UserID {
			return fmt.Errorf("%w: users can comment only on their own tasks", ErrForbidden)
		}
		t.Comments = append(t.Comments, domain.Comment{
			ID:        s.newID(),
			TaskID:    t.ID,
			Author:    actor.UserID,
			Text:      text,
			CreatedAt: now,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateListings(ctx)
	return nil
}

// StatsFor returns the completed-task counter for a professional.
func (s *Service) StatsFor(ctx context.Context, professionalID string) (*domain.ProfessionalStats, error) {
	return s.repo.StatsFor(ctx, professionalID)
}

// buildListing loads the actor-scoped tasks and projects them, resolving
// owner display names through the auth port.
func (s *Service) buildListing(ctx context.Context, actor user.Claims) ([]TaskSummary, error) {
	var (
		tasks []*domain.Task
		err   error
	)
	if actor.IsProfessional {
		tasks, err = s.repo.FindAll(ctx)
	} else {
		tasks, err = s.repo.FindByOwner(ctx, actor.UserID)
	}
	if err != nil {
		return nil, err
	}

	names := map[string]string{actor.UserID: actor.Name}
	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		name, ok := names[t.Owner]
		if !ok {
			name = s.resolveOwnerName(ctx, t.Owner)
			names[t.Owner] = name
		}

		stamps := make([]OfferStamp, 0, len(t.Offers))
		for _, o := range t.Offers {
			stamps = append(stamps, OfferStamp{ID: o.ID, CreatedAt: o.CreatedAt})
		}

		summaries = append(summaries, TaskSummary{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			DueDate:     t.DueDate,
			Status:      t.Status,
			OwnerID:     t.Owner,
			OwnerName:   name,
			Offers:      stamps,
			CreatedAt:   t.CreatedAt,
		})
	}
	return summaries, nil
}

// resolveOwnerName looks up a display name, falling back to the raw ID when
// the auth module cannot resolve it.
func (s *Service) resolveOwnerName(ctx context.Context, ownerID string) string {
	u, err := s.auth.GetUser(ctx, ownerID)
	if err != nil {
		log.Printf("[task] Failed to resolve owner %s: %v", ownerID, err)
		return ownerID
	}
	return u.Name
}

// invalidateListings drops every cached listing after a mutation.
func (s *Service) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, "list:*"); err != nil {
		log.Printf("[task] Failed to invalidate listings: %v", err)
	}
}

// listingKey returns the cache/singleflight key for an actor's listing scope.
func listingKey(actor user.Claims) string {
	if actor.IsProfessional {
		return "list:all"
	}
	return "list:owner:" + actor.UserID
}
