package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/campus/internal/coursekey"
)

// Service is the course store consulted by enrollment and access checks.
type Service interface {
	Get(ctx context.Context, key coursekey.Key) (*Course, error)
	Create(ctx context.Context, req CreateRequest) (*Course, error)
	ListByOrg(ctx context.Context, org string) ([]Course, error)
}

type CreateRequest struct {
	CourseID                     string     `json:"course_id"`
	DisplayName                  string     `json:"display_name"`
	EnrollmentStart              *time.Time `json:"enrollment_start"`
	EnrollmentEnd                *time.Time `json:"enrollment_end"`
	InvitationOnly               bool       `json:"invitation_only"`
	MaxStudentEnrollmentsAllowed *int       `json:"max_student_enrollments_allowed"`
	Modes                        []string   `json:"modes"`
}

var (
	ErrNotFound          = errors.New("course_not_found")
	ErrAlreadyExists     = errors.New("course_already_exists")
	ErrInvalidName       = errors.New("invalid_display_name")
	ErrInvalidMaxAllowed = errors.New("invalid_max_student_enrollments_allowed")
	ErrInvalidWindow     = errors.New("invalid_enrollment_window")
	ErrInvalidModes      = errors.New("invalid_modes")
)
