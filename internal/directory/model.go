package directory

import (
	"errors"
	"time"
)

var (
	ErrTutorNotFound       = errors.New("tutor not found")
	ErrRequirementNotFound = errors.New("requirement not found")
)

// TutorContact is the contact information revealed by a contact_tutor unlock.
type TutorContact struct {
	TutorID string `json:"tutor_id"`
	Name    string `json:"name,omitempty"`
	Mobile  string `json:"mobile"`
	Email   string `json:"email"`
}

// Requirement is a student's posted tutoring requirement, revealed in full by a
// view_requirement unlock.
type Requirement struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	Subject      string    `json:"subject"`
	Grade        string    `json:"grade"`
	Location     string    `json:"location"`
	Budget       string    `json:"budget"`
	Description  string    `json:"description"`
	ContactPhone string    `json:"contact_phone"`
	ContactEmail string    `json:"contact_email"`
	CreatedAt    time.Time `json:"created_at"`
}
