package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/config"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/events"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/internal/observability/logger"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"github.com/smallbiznis/campus/pkg/db"
	"github.com/smallbiznis/campus/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Courses   domain.CourseStore
	Access    domain.AccessPolicy
	AllowList domain.AllowList
	Directory identity.Directory
	Audit     auditdomain.Service
	Events    events.Publisher
	Counter   domain.Counter       `optional:"true"`
	Features  config.FeatureSource `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	courses   domain.CourseStore
	access    domain.AccessPolicy
	allowList domain.AllowList
	directory identity.Directory
	audit     auditdomain.Service
	events    events.Publisher
	counter   domain.Counter
	features  config.FeatureSource
}

func NewService(p Params) domain.Service {
	features := p.Features
	if features == nil {
		features = config.NewStaticFeatures(config.DefaultFeatures())
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("enrollment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		courses:   p.Courses,
		access:    p.Access,
		allowList: p.AllowList,
		directory: p.Directory,
		audit:     p.Audit,
		events:    p.Events,
		counter:   p.Counter,
		features:  features,
	}
}

func (s *Service) GetOrCreateEnrollment(ctx context.Context, user identity.User, key coursekey.Key) (*domain.Enrollment, error) {
	if !user.IsAuthenticated() {
		return nil, domain.ErrAnonymousUser
	}
	if key.IsZero() {
		return nil, coursekey.ErrInvalidKey
	}
	courseID := key.String()

	existing, err := s.repo.FindByUserAndCourse(ctx, s.db, user.ID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	enrollment := &domain.Enrollment{
		ID:        s.genID.Generate().Int64(),
		UserID:    user.ID,
		CourseID:  courseID,
		Org:       key.Org,
		IsActive:  false,
		Mode:      domain.DefaultMode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, enrollment); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// A concurrent request created the row first; its row is authoritative.
		winner, findErr := s.repo.FindByUserAndCourse(ctx, s.db, user.ID, courseID)
		if findErr != nil {
			return nil, findErr
		}
		if winner == nil {
			return nil, err
		}
		return winner, nil
	}
	return enrollment, nil
}

func (s *Service) Enroll(ctx context.Context, req domain.EnrollRequest) (*domain.Enrollment, error) {
	mode := domain.NormalizeMode(req.Mode)
	if err := domain.ValidateMode(mode); err != nil {
		return nil, err
	}
	if !req.User.IsAuthenticated() {
		return nil, domain.ErrAnonymousUser
	}

	log := logger.WithOrg(s.log, req.Key.Org).With(
		zap.Int64("user_id", req.User.ID),
		zap.String("course_id", req.Key.String()),
		zap.String("mode", mode),
	)

	course, err := s.courses.Get(ctx, req.Key)
	if err != nil {
		if errors.Is(err, coursedomain.ErrNotFound) {
			log.Warn("enrollment in non-existent course")
			return nil, domain.ErrNonExistentCourse
		}
		return nil, err
	}

	if req.CheckAccess {
		if len(course.Modes) > 0 && !slices.Contains(domain.SelectableModes(course.Modes), mode) {
			log.Warn("mode not offered", zap.Strings("modes", course.Modes))
			return nil, domain.ErrModeUnavailable
		}
		if !s.access.CanEnroll(ctx, req.User, course) {
			log.Warn("enrollment closed")
			return nil, domain.ErrEnrollmentClosed
		}
		full, err := s.IsCourseFull(ctx, course)
		if err != nil {
			return nil, err
		}
		if full {
			log.Warn("course full", zap.Intp("max_student_enrollments_allowed", course.MaxStudentEnrollmentsAllowed))
			return nil, domain.ErrCourseFull
		}
	}

	enrolled, err := s.IsEnrolled(ctx, req.User, req.Key)
	if err != nil {
		return nil, err
	}
	if enrolled {
		log.Warn("user already enrolled")
		if req.CheckAccess {
			return nil, domain.ErrAlreadyEnrolled
		}
	}

	enrollment, err := s.GetOrCreateEnrollment(ctx, req.User, req.Key)
	if err != nil {
		return nil, err
	}

	active := true
	if err := s.UpdateEnrollment(ctx, enrollment, &mode, &active, false); err != nil {
		return nil, err
	}

	s.incrementCounter(ctx, metrics.CourseEnrollment, req.Key, mode)
	return enrollment, nil
}

func (s *Service) Unenroll(ctx context.Context, user identity.User, key coursekey.Key, skipRefund bool) error {
	if !user.IsAuthenticated() {
		return domain.ErrAnonymousUser
	}

	enrollment, err := s.repo.FindByUserAndCourse(ctx, s.db, user.ID, key.String())
	if err != nil {
		return err
	}
	if enrollment == nil {
		s.log.Error("tried to unenroll student from a course they were not enrolled in",
			zap.Int64("user_id", user.ID),
			zap.String("course_id", key.String()),
		)
		return nil
	}

	wasActive := enrollment.IsActive
	inactive := false
	if err := s.UpdateEnrollment(ctx, enrollment, nil, &inactive, skipRefund); err != nil {
		return err
	}
	if wasActive {
		s.incrementCounter(ctx, metrics.CourseUnenrollment, key, enrollment.Mode)
	}
	return nil
}

func (s *Service) UpdateEnrollment(ctx context.Context, enrollment *domain.Enrollment, mode *string, isActive *bool, skipRefund bool) error {
	if enrollment == nil {
		return domain.ErrNotFound
	}

	newMode := enrollment.Mode
	if mode != nil {
		newMode = domain.NormalizeMode(*mode)
		if err := domain.ValidateMode(newMode); err != nil {
			return err
		}
	}
	newActive := enrollment.IsActive
	if isActive != nil {
		newActive = *isActive
	}

	activationChanged := newActive != enrollment.IsActive
	modeChanged := newMode != enrollment.Mode
	if !activationChanged && !modeChanged {
		return nil
	}

	now := s.clock.Now()
	if err := s.repo.UpdateState(ctx, s.db, enrollment.ID, newActive, newMode, now); err != nil {
		return err
	}
	enrollment.IsActive = newActive
	enrollment.Mode = newMode
	enrollment.UpdatedAt = now

	if activationChanged {
		if newActive {
			s.emit(ctx, events.EnrollmentActivated, enrollment)
		} else {
			s.events.Publish(ctx, events.Event{
				Name:     events.UnenrollDone,
				UserID:   strconv.FormatInt(enrollment.UserID, 10),
				CourseID: enrollment.CourseID,
				Subject:  domain.UnenrollSignal{Enrollment: *enrollment, SkipRefund: skipRefund},
			})
			s.emit(ctx, events.EnrollmentDeactivated, enrollment)
		}
	}
	if modeChanged {
		s.emit(ctx, events.EnrollmentModeChanged, enrollment)
	}
	return nil
}

func (s *Service) IsEnrolled(ctx context.Context, user identity.User, key coursekey.Key) (bool, error) {
	if !user.IsAuthenticated() {
		return false, nil
	}
	enrollment, err := s.repo.FindByUserAndCourse(ctx, s.db, user.ID, key.String())
	if err != nil {
		return false, err
	}
	return enrollment != nil && enrollment.IsActive, nil
}

func (s *Service) EnrollmentModeForUser(ctx context.Context, user identity.User, key coursekey.Key) (*domain.ModeState, error) {
	if !user.IsAuthenticated() {
		return nil, nil
	}
	enrollment, err := s.repo.FindByUserAndCourse(ctx, s.db, user.ID, key.String())
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, nil
	}
	return &domain.ModeState{Mode: enrollment.Mode, IsActive: enrollment.IsActive}, nil
}

func (s *Service) NumEnrolledIn(ctx context.Context, key coursekey.Key) (int64, error) {
	if key.IsZero() {
		return 0, coursekey.ErrInvalidKey
	}
	return s.repo.CountActive(ctx, s.db, key.String())
}

func (s *Service) IsCourseFull(ctx context.Context, course *coursedomain.Course) (bool, error) {
	if course == nil || course.MaxStudentEnrollmentsAllowed == nil {
		return false, nil
	}
	count, err := s.repo.CountActive(ctx, s.db, course.CourseID)
	if err != nil {
		return false, err
	}
	return count >= int64(*course.MaxStudentEnrollmentsAllowed), nil
}

func (s *Service) ListEnrollments(ctx context.Context, user identity.User, req domain.ListRequest) (domain.ListResponse, error) {
	if !user.IsAuthenticated() {
		return domain.ListResponse{Enrollments: []domain.Enrollment{}}, nil
	}

	var cursor *domain.Cursor
	decoded, createdAt, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if decoded != nil {
		id, err := strconv.ParseInt(decoded.ID, 10, 64)
		if err != nil {
			return domain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Size()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		UserID:     user.ID,
		ActiveOnly: req.ActiveOnly,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(item domain.Enrollment) string {
		return pagination.EncodeCursor(strconv.FormatInt(item.ID, 10), item.CreatedAt)
	})
	if items == nil {
		items = []domain.Enrollment{}
	}
	return domain.ListResponse{PageInfo: pageInfo, Enrollments: items}, nil
}

func (s *Service) SetAttribute(ctx context.Context, enrollmentID int64, namespace, name, value string) error {
	namespace = strings.TrimSpace(namespace)
	name = strings.TrimSpace(name)
	if namespace == "" || name == "" {
		return domain.ErrInvalidAttribute
	}

	enrollment, err := s.repo.FindByID(ctx, s.db, enrollmentID)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return domain.ErrNotFound
	}

	return s.repo.UpsertAttribute(ctx, s.db, &domain.EnrollmentAttribute{
		ID:           s.genID.Generate().Int64(),
		EnrollmentID: enrollmentID,
		Namespace:    namespace,
		Name:         name,
		Value:        value,
	})
}

func (s *Service) Attributes(ctx context.Context, enrollmentID int64) ([]domain.EnrollmentAttribute, error) {
	return s.repo.ListAttributes(ctx, s.db, enrollmentID)
}

func (s *Service) emit(ctx context.Context, name string, enrollment *domain.Enrollment) {
	userID := strconv.FormatInt(enrollment.UserID, 10)
	s.events.Publish(ctx, events.Event{
		Name:     name,
		UserID:   userID,
		CourseID: enrollment.CourseID,
		Data: map[string]any{
			"user_id":   userID,
			"course_id": enrollment.CourseID,
			"mode":      enrollment.Mode,
		},
	})
}

// incrementCounter never fails the enrollment: errors and panics from the
// monitoring sink are logged and dropped.
func (s *Service) incrementCounter(ctx context.Context, name string, key coursekey.Key, mode string) {
	if s.counter == nil || !s.features.Features().EnableEnrollmentMetrics {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("monitoring counter panicked", zap.String("metric", name), zap.Any("panic", r))
		}
	}()

	err := s.counter.Increment(ctx, name, map[string]string{
		"org":      key.Org,
		"offering": key.Offering(),
		"mode":     mode,
	})
	if err != nil {
		s.log.Error("unable to increment monitoring counter",
			zap.String("metric", name),
			zap.Error(fmt.Errorf("increment %s: %w", name, err)),
		)
	}
}
