package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/access/domain"
	"github.com/smallbiznis/campus/internal/access/repository"
	"github.com/smallbiznis/campus/internal/clock"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)

	svc := NewService(Params{
		DB:       dbtest.New(t, &domain.CourseEnrollmentAllowed{}),
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Enforcer: enforcer,
		Repo:     repository.Provide(),
	})
	return svc, clk
}

func closedCourse() *coursedomain.Course {
	start := now.Add(-48 * time.Hour)
	end := now.Add(-24 * time.Hour)
	return &coursedomain.Course{
		CourseID:        "course-v1:MITx+6.002x+2024",
		Org:             "MITx",
		EnrollmentStart: &start,
		EnrollmentEnd:   &end,
	}
}

func TestCanEnrollWindow(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	learner := identity.User{ID: 10, Email: "learner@example.com"}
	course := closedCourse()

	assert.False(t, svc.CanEnroll(ctx, learner, course))

	clk.Set(now.Add(-36 * time.Hour))
	assert.True(t, svc.CanEnroll(ctx, learner, course))
	assert.False(t, svc.CanEnroll(ctx, learner, nil))
}

func TestCanEnrollAllowList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	learner := identity.User{ID: 10, Email: "learner@example.com"}
	course := closedCourse()

	_, err := svc.Allow(ctx, domain.AllowRequest{Email: "Learner@Example.com", CourseID: course.CourseID})
	require.NoError(t, err)
	assert.True(t, svc.CanEnroll(ctx, learner, course))

	removed, err := svc.Disallow(ctx, learner.Email, course.CourseID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, svc.CanEnroll(ctx, learner, course))
}

func TestInvitationOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	learner := identity.User{ID: 10, Email: "learner@example.com"}
	course := &coursedomain.Course{CourseID: "course-v1:MITx+private+2024", Org: "MITx", InvitationOnly: true}

	assert.False(t, svc.CanEnroll(ctx, learner, course))
	assert.False(t, svc.HasAccess(ctx, learner, domain.ActionLoad, course))

	_, err := svc.Allow(ctx, domain.AllowRequest{Email: learner.Email, CourseID: course.CourseID})
	require.NoError(t, err)
	assert.True(t, svc.CanEnroll(ctx, learner, course))
	assert.True(t, svc.HasAccess(ctx, learner, domain.ActionLoad, course))
}

func TestStaffBypassesRules(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	staff := identity.User{ID: 1}
	global := identity.User{ID: 2}
	course := closedCourse()

	require.NoError(t, svc.GrantRole(ctx, staff.ID, domain.RoleInstructor, "MITx"))
	require.NoError(t, svc.GrantRole(ctx, global.ID, domain.RoleStaff, domain.GlobalScope))

	assert.True(t, svc.CanEnroll(ctx, staff, course))
	assert.True(t, svc.HasAccess(ctx, staff, domain.ActionStaff, course))
	assert.True(t, svc.IsStaff(ctx, global, "HarvardX"))
	assert.False(t, svc.IsStaff(ctx, staff, "HarvardX"))
	assert.False(t, svc.IsStaff(ctx, identity.Anonymous, "MITx"))

	require.NoError(t, svc.RevokeRole(ctx, staff.ID, domain.RoleInstructor, "MITx"))
	assert.False(t, svc.CanEnroll(ctx, staff, course))

	assert.ErrorIs(t, svc.GrantRole(ctx, staff.ID, "owner", "MITx"), domain.ErrInvalidRole)
	assert.ErrorIs(t, svc.GrantRole(ctx, 0, domain.RoleStaff, "MITx"), domain.ErrInvalidUser)
	assert.ErrorIs(t, svc.GrantRole(ctx, 1, domain.RoleStaff, " "), domain.ErrInvalidOrg)
}

func TestAllowUpdatesAutoEnroll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Allow(ctx, domain.AllowRequest{Email: "new@example.com", CourseID: "course-v1:a+b+c"})
	require.NoError(t, err)
	assert.False(t, first.AutoEnroll)

	second, err := svc.Allow(ctx, domain.AllowRequest{Email: "new@example.com", CourseID: "course-v1:a+b+c", AutoEnroll: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.AutoEnroll)

	rows, err := svc.ListAutoEnroll(ctx, "NEW@example.com")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, svc.LinkUser(ctx, "new@example.com", 55))
	linked, err := svc.FindAllowed(ctx, "new@example.com", "course-v1:a+b+c")
	require.NoError(t, err)
	require.NotNil(t, linked.UserID)
	assert.Equal(t, int64(55), *linked.UserID)

	_, err = svc.Allow(ctx, domain.AllowRequest{Email: " ", CourseID: "course-v1:a+b+c"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestHasAccessUnknownAction(t *testing.T) {
	svc, _ := newTestService(t)
	assert.False(t, svc.HasAccess(context.Background(), identity.User{ID: 1}, "teleport", closedCourse()))
}
