package domain

import "time"

// CourseEnrollmentAllowed lets an email enroll in a course outside the
// enrollment window, or at all when the course is invitation only.
type CourseEnrollmentAllowed struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	Email      string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:ux_courseenrollmentallowed_email_course,priority:1"`
	CourseID   string    `json:"course_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_courseenrollmentallowed_email_course,priority:2"`
	AutoEnroll bool      `json:"auto_enroll" gorm:"not null;default:false"`
	UserID     *int64    `json:"user_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
}

func (CourseEnrollmentAllowed) TableName() string { return "student_courseenrollmentallowed" }
