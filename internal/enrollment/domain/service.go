package domain

import (
	"context"

	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/pkg/db/pagination"
)

// Service owns the enrollment lifecycle of (user, course) pairs.
type Service interface {
	GetOrCreateEnrollment(ctx context.Context, user identity.User, key coursekey.Key) (*Enrollment, error)
	Enroll(ctx context.Context, req EnrollRequest) (*Enrollment, error)
	Unenroll(ctx context.Context, user identity.User, key coursekey.Key, skipRefund bool) error
	// UpdateEnrollment applies the non-nil fields. Nothing is written and no
	// event is emitted unless a value actually changes.
	UpdateEnrollment(ctx context.Context, enrollment *Enrollment, mode *string, isActive *bool, skipRefund bool) error

	IsEnrolled(ctx context.Context, user identity.User, key coursekey.Key) (bool, error)
	EnrollmentModeForUser(ctx context.Context, user identity.User, key coursekey.Key) (*ModeState, error)
	NumEnrolledIn(ctx context.Context, key coursekey.Key) (int64, error)
	IsCourseFull(ctx context.Context, course *coursedomain.Course) (bool, error)

	ListEnrollments(ctx context.Context, user identity.User, req ListRequest) (ListResponse, error)
	SetAttribute(ctx context.Context, enrollmentID int64, namespace, name, value string) error
	Attributes(ctx context.Context, enrollmentID int64) ([]EnrollmentAttribute, error)

	ManualEnroll(ctx context.Context, req ManualRequest) (*ManualResult, error)
	ManualUnenroll(ctx context.Context, req ManualRequest) (*ManualResult, error)
	ProcessAutoEnrollments(ctx context.Context, user identity.User) ([]Enrollment, error)
}

type EnrollRequest struct {
	User        identity.User
	Key         coursekey.Key
	Mode        string
	CheckAccess bool
}

type ListRequest struct {
	pagination.Pagination
	ActiveOnly bool `form:"active_only"`
}

type ListResponse struct {
	pagination.PageInfo
	Enrollments []Enrollment `json:"enrollments"`
}

type ManualRequest struct {
	Actor      identity.User
	Role       string
	Email      string
	Key        coursekey.Key
	Reason     string
	AutoEnroll bool
}

type ManualResult struct {
	Email           string      `json:"email"`
	StateTransition string      `json:"state_transition"`
	Enrollment      *Enrollment `json:"enrollment,omitempty"`
	AuditID         int64       `json:"audit_id,string"`
}

// CourseStore looks up the course an enrollment refers to.
type CourseStore interface {
	Get(ctx context.Context, key coursekey.Key) (*coursedomain.Course, error)
}

// AccessPolicy decides whether a user may enroll.
type AccessPolicy interface {
	CanEnroll(ctx context.Context, user identity.User, course *coursedomain.Course) bool
	IsStaff(ctx context.Context, user identity.User, org string) bool
}

// AllowList manages CourseEnrollmentAllowed rows.
type AllowList interface {
	Allow(ctx context.Context, req accessdomain.AllowRequest) (*accessdomain.CourseEnrollmentAllowed, error)
	Disallow(ctx context.Context, email, courseID string) (bool, error)
	FindAllowed(ctx context.Context, email, courseID string) (*accessdomain.CourseEnrollmentAllowed, error)
	ListAutoEnroll(ctx context.Context, email string) ([]accessdomain.CourseEnrollmentAllowed, error)
	LinkUser(ctx context.Context, email string, userID int64) error
}

// Counter is the monitoring sink. Failures are never fatal to the caller.
type Counter interface {
	Increment(ctx context.Context, name string, tags map[string]string) error
}
