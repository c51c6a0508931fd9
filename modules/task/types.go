package task

import (
	"time"
)

// Offer decision values.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// CreateTaskRequest carries the fields a task owner supplies at creation.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Comment     string     `json:"comment,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateTaskRequest carries a partial update: nil fields are left untouched.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Comment     *string    `json:"comment,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Urgency     *string    `json:"urgency,omitempty"`
}

// SubmitOfferRequest carries a professional's bid.
type SubmitOfferRequest struct {
	Price   float64 `json:"price"`
	Message string  `json:"message,omitempty"`
}

// OfferStamp is the offer projection exposed in list views: identity and
// timing only, never price or message.
type OfferStamp struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskSummary is the list-view projection of a task. The owner is resolved
// to a display name.
type TaskSummary struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Status      string       `json:"status"`
	OwnerID     string       `json:"owner_id"`
	OwnerName   string       `json:"owner_name"`
	Offers      []OfferStamp `json:"offers"`
	CreatedAt   time.Time    `json:"created_at"`
}
