package domain

import "errors"

// ErrCourseEnrollment is the root of every enrollment business-rule error.
var ErrCourseEnrollment = errors.New("course_enrollment_error")

type enrollmentError struct {
	code string
}

func (e *enrollmentError) Error() string { return e.code }

func (e *enrollmentError) Unwrap() error { return ErrCourseEnrollment }

var (
	ErrNonExistentCourse = &enrollmentError{code: "non_existent_course"}
	ErrEnrollmentClosed  = &enrollmentError{code: "enrollment_closed"}
	ErrCourseFull        = &enrollmentError{code: "course_full"}
	ErrAlreadyEnrolled   = &enrollmentError{code: "already_enrolled"}
	ErrModeUnavailable   = &enrollmentError{code: "mode_unavailable"}
)

var (
	ErrInvalidMode      = errors.New("invalid_mode")
	ErrAnonymousUser    = errors.New("anonymous_user")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidAttribute = errors.New("invalid_attribute")
	ErrNotFound         = errors.New("enrollment_not_found")
)
