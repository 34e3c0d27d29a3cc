package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/campus/pkg/db/pagination"
)

type RecordRequest struct {
	EnrollmentID    *int64
	EnrolledBy      string
	EnrolledEmail   string
	StateTransition string
	Reason          string
	Role            string
}

type ListRequest struct {
	pagination.Pagination
	EnrollmentID *int64 `form:"-"`
	Email        string `form:"email"`
}

type ListResponse struct {
	pagination.PageInfo
	Audits []ManualEnrollmentAudit `json:"audits"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*ManualEnrollmentAudit, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidTransition = errors.New("invalid_state_transition")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrInvalidFilter     = errors.New("invalid_filter")
)
