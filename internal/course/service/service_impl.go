package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("course.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, key coursekey.Key) (*domain.Course, error) {
	if key.IsZero() {
		return nil, coursekey.ErrInvalidKey
	}
	item, err := s.repo.FindByCourseID(ctx, s.db, key.String())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Course, error) {
	key, err := coursekey.Parse(req.CourseID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.MaxStudentEnrollmentsAllowed != nil && *req.MaxStudentEnrollmentsAllowed < 0 {
		return nil, domain.ErrInvalidMaxAllowed
	}
	if req.EnrollmentStart != nil && req.EnrollmentEnd != nil && !req.EnrollmentEnd.After(*req.EnrollmentStart) {
		return nil, domain.ErrInvalidWindow
	}

	modes, err := normalizeModes(req.Modes)
	if err != nil {
		return nil, err
	}

	course := &domain.Course{
		ID:                           s.genID.Generate().Int64(),
		CourseID:                     key.String(),
		Org:                          key.Org,
		DisplayName:                  name,
		EnrollmentStart:              req.EnrollmentStart,
		EnrollmentEnd:                req.EnrollmentEnd,
		InvitationOnly:               req.InvitationOnly,
		MaxStudentEnrollmentsAllowed: req.MaxStudentEnrollmentsAllowed,
		Modes:                        modes,
		CreatedAt:                    s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, course); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("course created", zap.String("course_id", course.CourseID), zap.String("org", course.Org))
	return course, nil
}

func (s *Service) ListByOrg(ctx context.Context, org string) ([]domain.Course, error) {
	return s.repo.ListByOrg(ctx, s.db, strings.TrimSpace(org))
}

func normalizeModes(in []string) (datatypes.JSONSlice[string], error) {
	out := datatypes.JSONSlice[string]{}
	seen := map[string]struct{}{}
	for _, mode := range in {
		mode = strings.ToLower(strings.TrimSpace(mode))
		if mode == "" {
			return nil, domain.ErrInvalidModes
		}
		if _, ok := seen[mode]; ok {
			continue
		}
		seen[mode] = struct{}{}
		out = append(out, mode)
	}
	return out, nil
}
