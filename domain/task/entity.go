package task

import (
	"time"
)

// Task statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Offer statuses.
const (
	OfferPending   = "pending"
	OfferAccepted  = "accepted"
	OfferRejected  = "rejected"
	OfferWithdrawn = "withdrawn"
)

// Task represents a unit of work posted by a non-professional user.
// Offers and Comments are part of the task aggregate and are always
// loaded and persisted together with it.
type Task struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	Owner       string     `gorm:"index;not null;type:text" json:"owner"`
	Title       string     `gorm:"not null;type:text" json:"title"`
	Description string     `gorm:"not null;type:text" json:"description"`
	Comment     string     `gorm:"type:text" json:"comment,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Category    string     `gorm:"type:text" json:"category,omitempty"`
	Location    string     `gorm:"type:text" json:"location,omitempty"`
	Urgency     string     `gorm:"type:text" json:"urgency,omitempty"`
	Status      string     `gorm:"not null;default:open;type:text" json:"status"`
	Version     int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Offers   []Offer   `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"offers"`
	Comments []Comment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Offer represents a professional's bid on a task.
type Offer struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	TaskID       string    `gorm:"index;not null;type:text" json:"-"`
	Professional string    `gorm:"index;not null;type:text" json:"professional"`
	Price        float64   `gorm:"not null" json:"price"`
	Message      string    `gorm:"type:text" json:"message,omitempty"`
	Status       string    `gorm:"not null;default:pending;type:text" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for the Offer entity.
func (Offer) TableName() string {
	return "offers"
}

// Comment represents a comment left on a task.
type Comment struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	TaskID    string    `gorm:"index;not null;type:text" json:"-"`
	Author    string    `gorm:"not null;type:text" json:"author"`
	Text      string    `gorm:"not null;type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Comment entity.
func (Comment) TableName() string {
	return "comments"
}

// ProfessionalStats tracks per-professional counters that live outside the
// task aggregate but are updated in the same transaction as task completion.
type ProfessionalStats struct {
	ProfessionalID string    `gorm:"primaryKey;type:text" json:"professional_id"`
	CompletedTasks int64     `gorm:"not null;default:0" json:"completed_tasks"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the table name for the ProfessionalStats entity.
func (ProfessionalStats) TableName() string {
	return "professional_stats"
}

// AcceptedOffer returns the task's accepted offer, or nil if none.
func (t *Task) AcceptedOffer() *Offer {
	for i := range t.Offers {
		if t.Offers[i].Status == OfferAccepted {
			return &t.Offers[i]
		}
	}
	return nil
}

// HasAcceptedOffer reports whether any offer on the task is accepted.
func (t *Task) HasAcceptedOffer() bool {
	return t.AcceptedOffer() != nil
}

// FindOffer returns the offer with the given ID, or nil if absent.
func (t *Task) FindOffer(offerID string) *Offer {
	for i := range t.Offers {
		if t.Offers[i].ID == offerID {
			return &t.Offers[i]
		}
	}
	return nil
}
