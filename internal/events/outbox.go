package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrackingEvent is an analytics row awaiting shipment to the tracking pipeline.
type TrackingEvent struct {
	ID        string         `json:"id" gorm:"primaryKey;type:char(26)"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null;index"`
	UserID    string         `json:"user_id" gorm:"type:varchar(255);not null"`
	CourseID  string         `json:"course_id" gorm:"type:varchar(255);not null"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
}

func (TrackingEvent) TableName() string { return "tracking_events" }

type outboxHandler struct {
	db *gorm.DB
}

// NewOutboxHandler persists tracking events for later shipment.
func NewOutboxHandler(db *gorm.DB) Handler {
	return &outboxHandler{db: db}
}

func (h *outboxHandler) Handle(ctx context.Context, ev Event) error {
	if !IsTrackingEvent(ev.Name) {
		return nil
	}
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}

	return h.db.WithContext(ctx).Exec(
		`INSERT INTO tracking_events (id, name, user_id, course_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(),
		ev.Name,
		ev.UserID,
		ev.CourseID,
		datatypes.JSON(payload),
		ev.Time,
	).Error
}
