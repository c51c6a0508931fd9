package api

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/fiber/v2"

	domain "github.com/example/task-marketplace/domain/task"
	"github.com/example/task-marketplace/domain/user"
	"github.com/example/task-marketplace/modules/auth"
	taskmod "github.com/example/task-marketplace/modules/task"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	authContainer mono.ServiceContainer
	authAdapter   auth.AuthPort
	tasks         taskmod.Port
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authContainer mono.ServiceContainer, authAdapter auth.AuthPort, tasks taskmod.Port) *Handlers {
	return &Handlers{
		authContainer: authContainer,
		authAdapter:   authAdapter,
		tasks:         tasks,
	}
}

// actor extracts the verified identity placed in the context by
// AuthMiddleware.
func actor(c *fiber.Ctx) (user.Claims, bool) {
	claims, ok := c.Locals(UserContextKey).(*user.Claims)
	if !ok || claims == nil {
		return user.Claims{}, false
	}
	return *claims, true
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Name, email and password are required",
		})
	}

	// Call auth service
	authReq := auth.RegisterRequest{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		IsProfessional: req.IsProfessional,
	}
	var resp auth.RegisterResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"register",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		User: UserResponse{
			ID:             resp.ID,
			Name:           resp.Name,
			Email:          resp.Email,
			IsProfessional: resp.IsProfessional,
			Role:           resp.Role,
			CreatedAt:      resp.CreatedAt,
		},
		Token: TokenResponse{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
			TokenType:    resp.TokenType,
		},
	})
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	// Call auth service
	authReq := auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	}
	var resp auth.LoginResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"login",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Refresh token is required",
		})
	}

	// Call auth service
	authReq := auth.RefreshRequest{
		RefreshToken: req.RefreshToken,
	}
	var resp auth.RefreshResponse

	if err := helper.CallRequestReplyService(
		c.UserContext(),
		h.authContainer,
		"refresh-token",
		json.Marshal,
		json.Unmarshal,
		&authReq,
		&resp,
	); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired refresh token",
		})
	}

	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
	})
}

// Profile returns the authenticated user's profile, including the
// completed-task counter for professionals.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
	}

	u, err := h.authAdapter.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to retrieve user profile",
		})
	}

	var completed int64
	if u.IsProfessional {
		stats, err := h.tasks.StatsFor(c.UserContext(), u.ID)
		if err != nil {
			log.Printf("[api] Failed to load stats for %s: %v", u.ID, err)
		} else {
			completed = stats.CompletedTasks
		}
	}

	return c.Status(fiber.StatusOK).JSON(ProfileResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		IsProfessional: u.IsProfessional,
		Role:           u.Role(),
		CompletedTasks: completed,
		CreatedAt:      u.CreatedAt,
	})
}

// GetUser returns a user's account details. Users may only fetch their own.
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
	}

	userID := c.Params("id")
	if claims.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "You may only view your own account",
		})
	}

	u, err := h.authAdapter.GetUser(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "User not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		IsProfessional: u.IsProfessional,
		Role:           u.Role(),
		CreatedAt:      u.CreatedAt,
	})
}

// CreateTask handles task creation by a non-professional user.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	var req taskmod.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	t, err := h.tasks.CreateTask(c.UserContext(), claims, req)
	if err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(t)
}

// ListTasks returns the actor-scoped task listing.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	summaries, err := h.tasks.ListTasks(c.UserContext(), claims)
	if err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(summaries)
}

// GetTask returns a single task with its offers and comments.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	t, err := h.tasks.GetTask(c.UserContext(), claims, c.Params("id"))
	if err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(t)
}

// UpdateTask applies a partial edit to an open task.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	var req taskmod.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	t, err := h.tasks.UpdateTask(c.UserContext(), claims, c.Params("id"), req)
	if err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(t)
}

// DeleteTask removes a task before any offer was accepted.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	if err := h.tasks.DeleteTask(c.UserContext(), claims, c.Params("id")); err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(MessageResponse{Message: "Task deleted"})
}

// SubmitOffer lets a professional bid on a task.
func (h *Handlers) SubmitOffer(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	var req taskmod.SubmitOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if err := h.tasks.SubmitOffer(c.UserContext(), claims, c.Params("id"), req); err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(MessageResponse{Message: "Offer sent successfully"})
}

// DecideOffer records the owner's accept/reject verdict on an offer.
func (h *Handlers) DecideOffer(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	var req DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	err := h.tasks.DecideOffer(c.UserContext(), claims, c.Params("taskId"), c.Params("offerId"), req.Decision)
	if err != nil {
		return h.handleTaskError(c, err)
	}

	msg := "Offer rejected"
	if req.Decision == taskmod.DecisionAccept {
		msg = "Offer accepted"
	}
	return c.Status(fiber.StatusOK).JSON(MessageResponse{Message: msg})
}

// CompleteTask marks an assigned task as done.
func (h *Handlers) CompleteTask(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	if err := h.tasks.CompleteTask(c.UserContext(), claims, c.Params("taskId")); err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(MessageResponse{Message: "Task marked as complete"})
}

// AddComment appends a comment to a task.
func (h *Handlers) AddComment(c *fiber.Ctx) error {
	claims, ok := actor(c)
	if !ok {
		return unauthenticated(c)
	}

	var req CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	if err := h.tasks.AddComment(c.UserContext(), claims, c.Params("id"), req.Text); err != nil {
		return h.handleTaskError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(MessageResponse{Message: "Comment added"})
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}

// handleTaskError maps lifecycle errors onto the HTTP taxonomy: missing
// aggregates to 404, role/ownership violations to 403, state and argument
// violations to 400, everything else to 500.
func (h *Handlers) handleTaskError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Task not found",
		})
	case errors.Is(err, taskmod.ErrOfferNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Offer not found",
		})
	case errors.Is(err, taskmod.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, taskmod.ErrInvalidState):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_state",
			Message: err.Error(),
		})
	case errors.Is(err, taskmod.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// handleAuthError handles authentication errors and returns appropriate
// responses. Auth errors arrive over the service container as strings, so
// they are matched by message.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, "user with this email already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, "invalid email format"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid email format",
		})
	case strings.Contains(errStr, "name is required"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Name is required",
		})
	case strings.Contains(errStr, "password must be at least"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Password must be at least 8 characters",
		})
	case strings.Contains(errStr, "password must be at most"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Password must be at most 72 characters",
		})
	default:
		// Log the actual error but don't expose it to the client
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
