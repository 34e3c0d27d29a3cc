package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/internal/observability/logger"
	"go.uber.org/zap"
)

// ManualEnroll enrolls a registered learner, or puts an unknown email on the
// allow list so the learner is enrolled on registration when autoEnroll is set.
func (s *Service) ManualEnroll(ctx context.Context, req domain.ManualRequest) (*domain.ManualResult, error) {
	email, err := s.authorizeManual(ctx, req)
	if err != nil {
		return nil, err
	}
	courseID := req.Key.String()

	learner, found, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var (
		state      string
		enrollment *domain.Enrollment
	)
	if found {
		wasEnrolled, err := s.IsEnrolled(ctx, learner, req.Key)
		if err != nil {
			return nil, err
		}
		wasAllowed, err := s.allowList.FindAllowed(ctx, email, courseID)
		if err != nil {
			return nil, err
		}

		enrollment, err = s.Enroll(ctx, domain.EnrollRequest{User: learner, Key: req.Key, Mode: domain.DefaultMode})
		if err != nil {
			return nil, err
		}

		switch {
		case wasEnrolled:
			state = auditdomain.EnrolledToEnrolled
		case wasAllowed != nil:
			state = auditdomain.AllowedToEnrollToEnrolled
		default:
			state = auditdomain.UnenrolledToEnrolled
		}
	} else {
		if _, err := s.courses.Get(ctx, req.Key); err != nil {
			return nil, s.courseErr(err)
		}
		if _, err := s.allowList.Allow(ctx, accessdomain.AllowRequest{
			Email:      email,
			CourseID:   courseID,
			AutoEnroll: req.AutoEnroll,
		}); err != nil {
			return nil, err
		}
		state = auditdomain.UnenrolledToAllowedToEnroll
	}

	return s.recordManual(ctx, req, email, state, enrollment)
}

// ManualUnenroll deactivates the learner's enrollment and drops any allow-list row.
func (s *Service) ManualUnenroll(ctx context.Context, req domain.ManualRequest) (*domain.ManualResult, error) {
	email, err := s.authorizeManual(ctx, req)
	if err != nil {
		return nil, err
	}
	courseID := req.Key.String()

	learner, found, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	wasEnrolled := false
	var enrollment *domain.Enrollment
	if found {
		wasEnrolled, err = s.IsEnrolled(ctx, learner, req.Key)
		if err != nil {
			return nil, err
		}
		if wasEnrolled {
			if err := s.Unenroll(ctx, learner, req.Key, false); err != nil {
				return nil, err
			}
		}
		enrollment, err = s.repo.FindByUserAndCourse(ctx, s.db, learner.ID, courseID)
		if err != nil {
			return nil, err
		}
	}

	wasAllowed, err := s.allowList.Disallow(ctx, email, courseID)
	if err != nil {
		return nil, err
	}

	var state string
	switch {
	case wasEnrolled:
		state = auditdomain.EnrolledToUnenrolled
	case wasAllowed:
		state = auditdomain.AllowedToEnrollToUnenrolled
	default:
		state = auditdomain.UnenrolledToUnenrolled
	}

	return s.recordManual(ctx, req, email, state, enrollment)
}

// ProcessAutoEnrollments registers the learner locally and enrolls them in
// every course their email was pre-enrolled in with auto_enroll set.
func (s *Service) ProcessAutoEnrollments(ctx context.Context, user identity.User) ([]domain.Enrollment, error) {
	if !user.IsAuthenticated() {
		return nil, domain.ErrAnonymousUser
	}
	if err := s.directory.Register(ctx, user); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return []domain.Enrollment{}, nil
	}
	if err := s.allowList.LinkUser(ctx, email, user.ID); err != nil {
		return nil, err
	}

	pending, err := s.allowList.ListAutoEnroll(ctx, email)
	if err != nil {
		return nil, err
	}

	enrolled := make([]domain.Enrollment, 0, len(pending))
	for _, row := range pending {
		key, err := coursekey.Parse(row.CourseID)
		if err != nil {
			s.log.Warn("skipping auto enrollment with invalid course key", zap.String("course_id", row.CourseID))
			continue
		}
		enrollment, err := s.Enroll(ctx, domain.EnrollRequest{User: user, Key: key, Mode: domain.DefaultMode})
		if err != nil {
			if errors.Is(err, domain.ErrNonExistentCourse) {
				s.log.Warn("skipping auto enrollment in missing course", zap.String("course_id", row.CourseID))
				continue
			}
			return nil, err
		}
		enrolled = append(enrolled, *enrollment)
	}

	return enrolled, nil
}

func (s *Service) authorizeManual(ctx context.Context, req domain.ManualRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}
	if req.Key.IsZero() {
		return "", coursekey.ErrInvalidKey
	}
	if !s.access.IsStaff(ctx, req.Actor, req.Key.Org) {
		return "", domain.ErrForbidden
	}
	return email, nil
}

func (s *Service) recordManual(ctx context.Context, req domain.ManualRequest, email, state string, enrollment *domain.Enrollment) (*domain.ManualResult, error) {
	enrolledBy := req.Actor.Username
	if enrolledBy == "" {
		enrolledBy = strconv.FormatInt(req.Actor.ID, 10)
	}

	var enrollmentID *int64
	if enrollment != nil {
		id := enrollment.ID
		enrollmentID = &id
	}

	entry, err := s.audit.Record(ctx, auditdomain.RecordRequest{
		EnrollmentID:    enrollmentID,
		EnrolledBy:      enrolledBy,
		EnrolledEmail:   email,
		StateTransition: state,
		Reason:          req.Reason,
		Role:            req.Role,
	})
	if err != nil {
		return nil, err
	}

	logger.WithActor(logger.WithOrg(s.log, req.Key.Org), "user", strconv.FormatInt(req.Actor.ID, 10)).Info("manual enrollment recorded",
		zap.String("course_id", req.Key.String()),
		zap.String("state_transition", state),
		zap.Int64("audit_id", entry.ID),
	)

	return &domain.ManualResult{
		Email:           email,
		StateTransition: state,
		Enrollment:      enrollment,
		AuditID:         entry.ID,
	}, nil
}

func (s *Service) courseErr(err error) error {
	if errors.Is(err, coursedomain.ErrNotFound) {
		return domain.ErrNonExistentCourse
	}
	return err
}
