package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/audit/domain"
	"github.com/smallbiznis/campus/internal/audit/masking"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.ManualEnrollmentAudit, error) {
	email := strings.ToLower(strings.TrimSpace(req.EnrolledEmail))
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	enrolledBy := strings.TrimSpace(req.EnrolledBy)
	if enrolledBy == "" {
		return nil, domain.ErrInvalidActor
	}
	state := strings.TrimSpace(req.StateTransition)
	if state == "" {
		state = domain.DefaultTransitionState
	}
	if !domain.ValidTransition(state) {
		return nil, domain.ErrInvalidTransition
	}

	entry := &domain.ManualEnrollmentAudit{
		ID:              s.genID.Generate().Int64(),
		EnrollmentID:    req.EnrollmentID,
		EnrolledBy:      enrolledBy,
		EnrolledEmail:   email,
		TimeStamp:       s.clock.Now(),
		StateTransition: state,
		Reason:          optional(req.Reason),
		Role:            optional(req.Role),
	}

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to write manual enrollment audit",
			zap.String("enrolled_email", masking.MaskEmail(email)),
			zap.String("state_transition", state),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("manual enrollment audited",
		zap.String("enrolled_by", enrolledBy),
		zap.String("enrolled_email", masking.MaskEmail(email)),
		zap.String("state_transition", state),
	)
	return entry, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if req.EnrollmentID == nil && email == "" {
		return domain.ListResponse{}, domain.ErrInvalidFilter
	}

	var cursor *domain.Cursor
	decoded, ts, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if decoded != nil {
		id, err := strconv.ParseInt(decoded.ID, 10, 64)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, TimeStamp: ts}
	}

	limit := req.Size()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		EnrollmentID: req.EnrollmentID,
		Email:        email,
		Cursor:       cursor,
		Limit:        limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(item domain.ManualEnrollmentAudit) string {
		return pagination.EncodeCursor(strconv.FormatInt(item.ID, 10), item.TimeStamp)
	})
	return domain.ListResponse{PageInfo: pageInfo, Audits: items}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
