package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Course is the course-store view of an offering: enough to decide whether
// and how a learner may enroll.
type Course struct {
	ID                           int64      `json:"id" gorm:"primaryKey"`
	CourseID                     string     `json:"course_id" gorm:"column:course_id;type:varchar(255);not null;uniqueIndex:ux_course_overviews_course_id"`
	Org                          string     `json:"org" gorm:"type:varchar(255);not null;index"`
	DisplayName                  string     `json:"display_name" gorm:"type:text;not null"`
	EnrollmentStart              *time.Time `json:"enrollment_start,omitempty"`
	EnrollmentEnd                *time.Time `json:"enrollment_end,omitempty"`
	InvitationOnly               bool       `json:"invitation_only" gorm:"not null;default:false"`
	MaxStudentEnrollmentsAllowed *int       `json:"max_student_enrollments_allowed,omitempty" gorm:"column:max_student_enrollments_allowed"`
	// Modes lists the enrollment modes on offer. Empty means any known mode.
	Modes     datatypes.JSONSlice[string] `json:"modes"`
	CreatedAt time.Time                   `json:"created_at" gorm:"not null"`
}

func (Course) TableName() string { return "course_overviews" }

// EnrollmentOpen reports whether now falls inside [EnrollmentStart, EnrollmentEnd).
// A missing bound is treated as open on that side.
func (c *Course) EnrollmentOpen(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.EnrollmentStart != nil && now.Before(*c.EnrollmentStart) {
		return false
	}
	if c.EnrollmentEnd != nil && !now.Before(*c.EnrollmentEnd) {
		return false
	}
	return true
}
