package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus for course access.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment grants a user access to a course. Unique per (user, course).
type Enrollment struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	CourseID    uuid.UUID        `json:"course_id"`
	Status      EnrollmentStatus `json:"status"`
	Progress    int              `json:"progress"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
