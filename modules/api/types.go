package api

import "time"

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	IsProfessional bool   `json:"is_professional"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse represents an authentication token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RegisterResponse couples the created account with its first token pair.
type RegisterResponse struct {
	User  UserResponse  `json:"user"`
	Token TokenResponse `json:"token"`
}

// UserResponse represents a user response.
type UserResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	IsProfessional bool      `json:"is_professional"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProfileResponse represents the authenticated user's profile.
type ProfileResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	IsProfessional bool      `json:"is_professional"`
	Role           string    `json:"role"`
	CompletedTasks int64     `json:"completed_tasks"`
	CreatedAt      time.Time `json:"created_at"`
}

// DecisionRequest carries the owner's verdict on an offer.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// CommentRequest carries a new task comment.
type CommentRequest struct {
	Text string `json:"text"`
}

// MessageResponse is a minimal confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
