package domain

import "time"

// Enrollment links one user to one course offering. Rows are deactivated,
// never deleted.
type Enrollment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:ux_courseenrollment_user_course,priority:1"`
	CourseID  string    `json:"course_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_courseenrollment_user_course,priority:2;index"`
	Org       string    `json:"org" gorm:"type:varchar(255);not null;index"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:false"`
	Mode      string    `json:"mode" gorm:"type:varchar(100);not null;default:'honor'"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Enrollment) TableName() string { return "student_courseenrollment" }

// EnrollmentAttribute is mode specific metadata, e.g. credit/provider_id.
type EnrollmentAttribute struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	EnrollmentID int64  `json:"enrollment_id" gorm:"not null;uniqueIndex:ux_courseenrollmentattribute_key,priority:1"`
	Namespace    string `json:"namespace" gorm:"type:varchar(255);not null;uniqueIndex:ux_courseenrollmentattribute_key,priority:2"`
	Name         string `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:ux_courseenrollmentattribute_key,priority:3"`
	Value        string `json:"value" gorm:"type:varchar(255);not null"`
}

func (EnrollmentAttribute) TableName() string { return "student_courseenrollmentattribute" }

// ModeState is the enrollment state reported for a (user, course) pair.
// A nil *ModeState means the user was never enrolled.
type ModeState struct {
	Mode     string `json:"mode"`
	IsActive bool   `json:"is_active"`
}

// UnenrollSignal is the Subject of the unenroll_done event.
type UnenrollSignal struct {
	Enrollment Enrollment
	SkipRefund bool
}

type ListFilter struct {
	UserID     int64
	ActiveOnly bool
	Cursor     *Cursor
	Limit      int
}

type Cursor struct {
	ID        int64
	CreatedAt time.Time
}
