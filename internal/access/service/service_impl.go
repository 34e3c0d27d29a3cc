package service

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/campus/internal/access/domain"
	"github.com/smallbiznis/campus/internal/clock"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const objectCourse = "course"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Enforcer *casbin.SyncedEnforcer
	Repo     domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	enforcer *casbin.SyncedEnforcer
	repo     domain.Repository
}

// NewEnforcer loads role assignments from the casbin_rule table.
func NewEnforcer(conn *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(conn)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// NewMemoryEnforcer keeps policies in memory only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter *gormadapter.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("access.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		enforcer: p.Enforcer,
		repo:     p.Repo,
	}
}

// CanEnroll applies, in order: staff override, invitation only, enrollment
// window, allow list.
func (s *Service) CanEnroll(ctx context.Context, user identity.User, course *coursedomain.Course) bool {
	if course == nil {
		return false
	}
	if s.IsStaff(ctx, user, course.Org) {
		return true
	}

	if course.InvitationOnly {
		return s.isAllowed(ctx, user, course.CourseID)
	}
	if course.EnrollmentOpen(s.clock.Now()) {
		return true
	}
	return s.isAllowed(ctx, user, course.CourseID)
}

func (s *Service) HasAccess(ctx context.Context, user identity.User, action string, course *coursedomain.Course) bool {
	if course == nil {
		return false
	}
	switch action {
	case domain.ActionEnroll:
		return s.CanEnroll(ctx, user, course)
	case domain.ActionStaff:
		return s.IsStaff(ctx, user, course.Org)
	case domain.ActionLoad:
		if s.IsStaff(ctx, user, course.Org) {
			return true
		}
		if !course.InvitationOnly {
			return true
		}
		return s.isAllowed(ctx, user, course.CourseID)
	default:
		s.log.Warn("unknown access action", zap.String("action", action))
		return false
	}
}

func (s *Service) IsStaff(ctx context.Context, user identity.User, org string) bool {
	if !user.IsAuthenticated() {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject(user.ID), scope(org), objectCourse, domain.ActionStaff)
	if err != nil {
		s.log.Error("enforce failed", zap.Int64("user_id", user.ID), zap.String("org", org), zap.Error(err))
		return false
	}
	return allowed
}

func (s *Service) GrantRole(ctx context.Context, userID int64, role, org string) error {
	subj, roleName, dom, err := s.roleArgs(userID, role, org)
	if err != nil {
		return err
	}
	has, err := s.enforcer.HasGroupingPolicy(subj, roleName, dom)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if _, err := s.enforcer.AddGroupingPolicy(subj, roleName, dom); err != nil {
		return err
	}
	s.log.Info("role granted", zap.Int64("user_id", userID), zap.String("role", roleName), zap.String("scope", dom))
	return nil
}

func (s *Service) RevokeRole(ctx context.Context, userID int64, role, org string) error {
	subj, roleName, dom, err := s.roleArgs(userID, role, org)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveGroupingPolicy(subj, roleName, dom); err != nil {
		return err
	}
	s.log.Info("role revoked", zap.Int64("user_id", userID), zap.String("role", roleName), zap.String("scope", dom))
	return nil
}

// Allow creates the allow-list row, or updates auto_enroll when it already exists.
func (s *Service) Allow(ctx context.Context, req domain.AllowRequest) (*domain.CourseEnrollmentAllowed, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	key, err := coursekey.Parse(req.CourseID)
	if err != nil {
		return nil, err
	}
	courseID := key.String()

	existing, err := s.repo.Find(ctx, s.db, email, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.AutoEnroll != req.AutoEnroll {
			if err := s.repo.UpdateAutoEnroll(ctx, s.db, existing.ID, req.AutoEnroll); err != nil {
				return nil, err
			}
			existing.AutoEnroll = req.AutoEnroll
		}
		return existing, nil
	}

	row := &domain.CourseEnrollmentAllowed{
		ID:         s.genID.Generate().Int64(),
		Email:      email,
		CourseID:   courseID,
		AutoEnroll: req.AutoEnroll,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.Find(ctx, s.db, email, courseID)
		}
		return nil, err
	}
	return row, nil
}

func (s *Service) Disallow(ctx context.Context, email, courseID string) (bool, error) {
	key, err := coursekey.Parse(courseID)
	if err != nil {
		return false, err
	}
	affected, err := s.repo.Delete(ctx, s.db, normalizeEmail(email), key.String())
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Service) FindAllowed(ctx context.Context, email, courseID string) (*domain.CourseEnrollmentAllowed, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.repo.Find(ctx, s.db, email, courseID)
}

func (s *Service) ListAutoEnroll(ctx context.Context, email string) ([]domain.CourseEnrollmentAllowed, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.repo.ListAutoEnroll(ctx, s.db, email)
}

func (s *Service) LinkUser(ctx context.Context, email string, userID int64) error {
	email = normalizeEmail(email)
	if email == "" || userID <= 0 {
		return nil
	}
	return s.repo.LinkUser(ctx, s.db, email, userID)
}

func (s *Service) isAllowed(ctx context.Context, user identity.User, courseID string) bool {
	row, err := s.FindAllowed(ctx, user.Email, courseID)
	if err != nil {
		s.log.Error("allow list lookup failed", zap.String("course_id", courseID), zap.Error(err))
		return false
	}
	return row != nil
}

func (s *Service) roleArgs(userID int64, role, org string) (string, string, string, error) {
	if userID <= 0 {
		return "", "", "", domain.ErrInvalidUser
	}
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case domain.RoleStaff, domain.RoleInstructor:
	default:
		return "", "", "", domain.ErrInvalidRole
	}
	org = strings.TrimSpace(org)
	if org == "" {
		return "", "", "", domain.ErrInvalidOrg
	}
	return subject(userID), "role:" + role, scope(org), nil
}

func subject(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

func scope(org string) string {
	org = strings.TrimSpace(org)
	if org == domain.GlobalScope {
		return domain.GlobalScope
	}
	return fmt.Sprintf("org:%s", org)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:staff", objectCourse, domain.ActionStaff},
		{"role:staff", objectCourse, domain.ActionLoad},
		{"role:staff", objectCourse, domain.ActionEnroll},

		{"role:instructor", objectCourse, domain.ActionStaff},
		{"role:instructor", objectCourse, domain.ActionLoad},
		{"role:instructor", objectCourse, domain.ActionEnroll},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
