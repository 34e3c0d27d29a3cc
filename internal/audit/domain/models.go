package domain

import "time"

// Manual enrollment state transitions.
const (
	UnenrolledToAllowedToEnroll = "from unenrolled to allowed to enroll"
	AllowedToEnrollToEnrolled   = "from allowed to enroll to enrolled"
	EnrolledToEnrolled          = "from enrolled to enrolled"
	EnrolledToUnenrolled        = "from enrolled to unenrolled"
	UnenrolledToEnrolled        = "from unenrolled to enrolled"
	AllowedToEnrollToUnenrolled = "from allowed to enroll to unenrolled"
	UnenrolledToUnenrolled      = "from unenrolled to unenrolled"
	DefaultTransitionState      = "N/A"
)

var transitionStates = map[string]struct{}{
	UnenrolledToAllowedToEnroll: {},
	AllowedToEnrollToEnrolled:   {},
	EnrolledToEnrolled:          {},
	EnrolledToUnenrolled:        {},
	UnenrolledToEnrolled:        {},
	AllowedToEnrollToUnenrolled: {},
	UnenrolledToUnenrolled:      {},
	DefaultTransitionState:      {},
}

// ValidTransition reports whether state is one of the known transition states.
func ValidTransition(state string) bool {
	_, ok := transitionStates[state]
	return ok
}

// ManualEnrollmentAudit records who changed a learner's enrollment by hand and why.
// Rows are written once and never updated.
type ManualEnrollmentAudit struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	EnrollmentID    *int64    `json:"enrollment_id,omitempty" gorm:"index"`
	EnrolledBy      string    `json:"enrolled_by" gorm:"type:varchar(255);not null"`
	EnrolledEmail   string    `json:"enrolled_email" gorm:"type:varchar(255);not null;index"`
	TimeStamp       time.Time `json:"time_stamp" gorm:"column:time_stamp;not null"`
	StateTransition string    `json:"state_transition" gorm:"type:varchar(255);not null;default:'N/A'"`
	Reason          *string   `json:"reason,omitempty" gorm:"type:text"`
	Role            *string   `json:"role,omitempty" gorm:"type:varchar(64)"`
}

func (ManualEnrollmentAudit) TableName() string { return "student_manualenrollmentaudit" }

type ListFilter struct {
	EnrollmentID *int64
	Email        string
	Cursor       *Cursor
	Limit        int
}

type Cursor struct {
	ID        int64
	TimeStamp time.Time
}
