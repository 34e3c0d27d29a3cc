package domain

import (
	"context"
	"errors"

	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/identity"
)

const (
	ActionEnroll = "enroll"
	ActionLoad   = "load"
	ActionStaff  = "staff"
)

const (
	RoleStaff      = "staff"
	RoleInstructor = "instructor"

	// GlobalScope grants a role across every organization.
	GlobalScope = "*"
)

// Policy answers access questions about a course for a user.
type Policy interface {
	CanEnroll(ctx context.Context, user identity.User, course *coursedomain.Course) bool
	HasAccess(ctx context.Context, user identity.User, action string, course *coursedomain.Course) bool
	IsStaff(ctx context.Context, user identity.User, org string) bool
}

// Service is the policy plus administration of roles and the allow list.
type Service interface {
	Policy

	GrantRole(ctx context.Context, userID int64, role, org string) error
	RevokeRole(ctx context.Context, userID int64, role, org string) error

	Allow(ctx context.Context, req AllowRequest) (*CourseEnrollmentAllowed, error)
	Disallow(ctx context.Context, email, courseID string) (bool, error)
	FindAllowed(ctx context.Context, email, courseID string) (*CourseEnrollmentAllowed, error)
	ListAutoEnroll(ctx context.Context, email string) ([]CourseEnrollmentAllowed, error)
	LinkUser(ctx context.Context, email string, userID int64) error
}

type AllowRequest struct {
	Email      string `json:"email"`
	CourseID   string `json:"course_id"`
	AutoEnroll bool   `json:"auto_enroll"`
}

var (
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidOrg   = errors.New("invalid_org")
	ErrInvalidEmail = errors.New("invalid_email")
)
