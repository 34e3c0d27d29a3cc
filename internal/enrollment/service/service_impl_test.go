package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	accessrepo "github.com/smallbiznis/campus/internal/access/repository"
	accessservice "github.com/smallbiznis/campus/internal/access/service"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	auditrepo "github.com/smallbiznis/campus/internal/audit/repository"
	auditservice "github.com/smallbiznis/campus/internal/audit/service"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/config"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	courserepo "github.com/smallbiznis/campus/internal/course/repository"
	courseservice "github.com/smallbiznis/campus/internal/course/service"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/internal/enrollment/repository"
	"github.com/smallbiznis/campus/internal/events"
	"github.com/smallbiznis/campus/internal/identity"
	"github.com/smallbiznis/campus/internal/observability/metrics"
	"github.com/smallbiznis/campus/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	now       = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	courseKey = coursekey.MustParse("course-v1:MITx+6.002x+2024_Fall")
	learner   = identity.User{ID: 100, Username: "learner", Email: "learner@example.com"}
)

type counterMock struct {
	mock.Mock
}

func (m *counterMock) Increment(ctx context.Context, name string, tags map[string]string) error {
	args := m.Called(ctx, name, tags)
	return args.Error(0)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Handle(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type testEnv struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	courses  coursedomain.Service
	access   accessdomain.Service
	audit    auditdomain.Service
	dir      identity.Directory
	recorder *recorder
	counter  *counterMock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := dbtest.New(t,
		&domain.Enrollment{},
		&domain.EnrollmentAttribute{},
		&coursedomain.Course{},
		&accessdomain.CourseEnrollmentAllowed{},
		&auditdomain.ManualEnrollmentAudit{},
		&identity.Account{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)
	log := zap.NewNop()

	courses := courseservice.New(courseservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: courserepo.Provide(),
	})
	enforcer, err := accessservice.NewMemoryEnforcer()
	require.NoError(t, err)
	access := accessservice.NewService(accessservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Enforcer: enforcer, Repo: accessrepo.Provide(),
	})
	audit := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
	})
	dir := identity.NewDirectory(conn)

	rec := &recorder{}
	bus := events.NewBus(log)
	bus.Subscribe(events.Wildcard, "recorder", rec)

	counter := &counterMock{}
	counter.On("Increment", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewService(Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Courses:   courses,
		Access:    access,
		AllowList: access,
		Directory: dir,
		Audit:     audit,
		Events:    bus,
		Counter:   counter,
		Features:  config.NewStaticFeatures(config.DefaultFeatures()),
	})

	return &testEnv{
		svc:      svc,
		db:       conn,
		clock:    clk,
		courses:  courses,
		access:   access,
		audit:    audit,
		dir:      dir,
		recorder: rec,
		counter:  counter,
	}
}

func (e *testEnv) createCourse(t *testing.T, key coursekey.Key, maxAllowed *int) *coursedomain.Course {
	t.Helper()
	course, err := e.courses.Create(context.Background(), coursedomain.CreateRequest{
		CourseID:                     key.String(),
		DisplayName:                  "Circuits and Electronics",
		MaxStudentEnrollmentsAllowed: maxAllowed,
	})
	require.NoError(t, err)
	return course
}

func (e *testEnv) countRows(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&domain.Enrollment{}).Count(&count).Error)
	return count
}

func TestEnrollThenQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCourse(t, courseKey, nil)

	enrollment, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeVerified})
	require.NoError(t, err)
	assert.True(t, enrollment.IsActive)
	assert.Equal(t, domain.ModeVerified, enrollment.Mode)
	assert.Equal(t, "MITx", enrollment.Org)

	enrolled, err := env.svc.IsEnrolled(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.True(t, enrolled)

	state, err := env.svc.EnrollmentModeForUser(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.Equal(t, &domain.ModeState{Mode: domain.ModeVerified, IsActive: true}, state)

	count, err := env.svc.NumEnrolledIn(ctx, courseKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEnrollTwiceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCourse(t, courseKey, nil)

	for i := 0; i < 2; i++ {
		_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeHonor})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), env.countRows(t))
	assert.Equal(t, 1, env.recorder.count(events.EnrollmentActivated))
	assert.Equal(t, 0, env.recorder.count(events.EnrollmentModeChanged))
}

func TestEnrollmentScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCourse(t, courseKey, nil)

	_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeHonor})
	require.NoError(t, err)
	enrolled, err := env.svc.IsEnrolled(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.True(t, enrolled)

	env.recorder.reset()
	enrollment, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeVerified})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeVerified, enrollment.Mode)
	assert.True(t, enrollment.IsActive)
	assert.Equal(t, []string{events.EnrollmentModeChanged}, env.recorder.names())

	env.recorder.reset()
	require.NoError(t, env.svc.Unenroll(ctx, learner, courseKey, false))
	enrolled, err = env.svc.IsEnrolled(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.Equal(t, []string{events.UnenrollDone, events.EnrollmentDeactivated}, env.recorder.names())

	env.recorder.reset()
	require.NoError(t, env.svc.Unenroll(ctx, learner, courseKey, false))
	assert.Empty(t, env.recorder.names())

	state, err := env.svc.EnrollmentModeForUser(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.Equal(t, &domain.ModeState{Mode: domain.ModeVerified, IsActive: false}, state)
}

func TestUnenrollWithoutRowIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Unenroll(ctx, learner, courseKey, true))
	assert.Empty(t, env.recorder.names())
	assert.Equal(t, int64(0), env.countRows(t))
}

func TestUnenrollSignalCarriesSkipRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCourse(t, courseKey, nil)

	_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey})
	require.NoError(t, err)
	env.recorder.reset()

	require.NoError(t, env.svc.Unenroll(ctx, learner, courseKey, true))

	env.recorder.mu.Lock()
	defer env.recorder.mu.Unlock()
	require.NotEmpty(t, env.recorder.events)
	signal, ok := env.recorder.events[0].Subject.(domain.UnenrollSignal)
	require.True(t, ok)
	assert.True(t, signal.SkipRefund)
	assert.False(t, signal.Enrollment.IsActive)
	assert.Equal(t, learner.ID, signal.Enrollment.UserID)
}

func TestUpdateEnrollmentTriState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	enrollment, err := env.svc.GetOrCreateEnrollment(ctx, learner, courseKey)
	require.NoError(t, err)
	updatedAt := enrollment.UpdatedAt

	env.clock.Advance(time.Hour)
	require.NoError(t, env.svc.UpdateEnrollment(ctx, enrollment, nil, nil, false))
	assert.Empty(t, env.recorder.names())
	assert.Equal(t, updatedAt, enrollment.UpdatedAt)

	mode := domain.ModeAudit
	active := true
	require.NoError(t, env.svc.UpdateEnrollment(ctx, enrollment, &mode, &active, false))
	assert.ElementsMatch(t, []string{events.EnrollmentActivated, events.EnrollmentModeChanged}, env.recorder.names())

	env.recorder.reset()
	sameMode := domain.ModeAudit
	require.NoError(t, env.svc.UpdateEnrollment(ctx, enrollment, &sameMode, nil, false))
	assert.Empty(t, env.recorder.names())

	bogus := "platinum"
	assert.ErrorIs(t, env.svc.UpdateEnrollment(ctx, enrollment, &bogus, nil, false), domain.ErrInvalidMode)
	assert.ErrorIs(t, env.svc.UpdateEnrollment(ctx, nil, nil, nil, false), domain.ErrNotFound)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]int64, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enrollment, err := env.svc.GetOrCreateEnrollment(ctx, learner, courseKey)
			errs[i] = err
			if enrollment != nil {
				ids[i] = enrollment.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), env.countRows(t))

	enrollment, err := env.svc.GetOrCreateEnrollment(ctx, learner, courseKey)
	require.NoError(t, err)
	assert.False(t, enrollment.IsActive)
	assert.Equal(t, domain.ModeHonor, enrollment.Mode)
}

func TestCourseFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	limit := 1
	course := env.createCourse(t, courseKey, &limit)

	userA := identity.User{ID: 1, Email: "a@example.com"}
	userB := identity.User{ID: 2, Email: "b@example.com"}

	_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: userA, Key: courseKey, CheckAccess: true})
	require.NoError(t, err)

	full, err := env.svc.IsCourseFull(ctx, course)
	require.NoError(t, err)
	assert.True(t, full)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: userB, Key: courseKey, CheckAccess: true})
	assert.ErrorIs(t, err, domain.ErrCourseFull)
	assert.ErrorIs(t, err, domain.ErrCourseEnrollment)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: userB, Key: courseKey})
	assert.NoError(t, err)

	uncapped, err := env.svc.IsCourseFull(ctx, &coursedomain.Course{CourseID: courseKey.String()})
	require.NoError(t, err)
	assert.False(t, uncapped)
}

func TestEnrollGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey})
	assert.ErrorIs(t, err, domain.ErrNonExistentCourse)
	assert.ErrorIs(t, err, domain.ErrCourseEnrollment)

	start := now.Add(-72 * time.Hour)
	end := now.Add(-24 * time.Hour)
	_, err = env.courses.Create(ctx, coursedomain.CreateRequest{
		CourseID:        courseKey.String(),
		DisplayName:     "Closed",
		EnrollmentStart: &start,
		EnrollmentEnd:   &end,
	})
	require.NoError(t, err)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, CheckAccess: true})
	assert.ErrorIs(t, err, domain.ErrEnrollmentClosed)

	_, err = env.access.Allow(ctx, accessdomain.AllowRequest{Email: learner.Email, CourseID: courseKey.String()})
	require.NoError(t, err)
	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, CheckAccess: true})
	require.NoError(t, err)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, CheckAccess: true})
	assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: "platinum"})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: identity.Anonymous, Key: courseKey})
	assert.ErrorIs(t, err, domain.ErrAnonymousUser)
}

func TestAnonymousShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	enrolled, err := env.svc.IsEnrolled(ctx, identity.Anonymous, courseKey)
	require.NoError(t, err)
	assert.False(t, enrolled)

	state, err := env.svc.EnrollmentModeForUser(ctx, identity.Anonymous, courseKey)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestEnrollmentModeForUserNeverEnrolled(t *testing.T) {
	env := newTestEnv(t)
	state, err := env.svc.EnrollmentModeForUser(context.Background(), learner, courseKey)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestCounterFailureDoesNotFailEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCourse(t, courseKey, nil)

	env.counter.ExpectedCalls = nil
	env.counter.On("Increment", mock.Anything, metrics.CourseEnrollment, map[string]string{
		"org":      "MITx",
		"offering": "6.002x/2024_Fall",
		"mode":     domain.ModeHonor,
	}).Return(errors.New("statsd down")).Once()

	enrollment, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey})
	require.NoError(t, err)
	assert.True(t, enrollment.IsActive)
	env.counter.AssertExpectations(t)
}

type panickingCounter struct{}

func (panickingCounter) Increment(context.Context, string, map[string]string) error {
	panic("sink exploded")
}

func TestCounterPanicDoesNotFailEnrollment(t *testing.T) {
	env := newTestEnv(t)
	env.createCourse(t, courseKey, nil)
	svc := env.svc.(*Service)
	svc.counter = panickingCounter{}

	_, err := svc.Enroll(context.Background(), domain.EnrollRequest{User: learner, Key: courseKey})
	assert.NoError(t, err)
}

func TestListEnrollmentsAndAttributes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	keys := []coursekey.Key{
		coursekey.MustParse("course-v1:MITx+A+1"),
		coursekey.MustParse("course-v1:MITx+B+1"),
		coursekey.MustParse("course-v1:MITx+C+1"),
	}
	for _, key := range keys {
		env.createCourse(t, key, nil)
		_, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: key})
		require.NoError(t, err)
		env.clock.Advance(time.Minute)
	}
	require.NoError(t, env.svc.Unenroll(ctx, learner, keys[0], false))

	page, err := env.svc.ListEnrollments(ctx, learner, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Enrollments, 3)
	assert.Equal(t, keys[2].String(), page.Enrollments[0].CourseID)

	active, err := env.svc.ListEnrollments(ctx, learner, domain.ListRequest{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active.Enrollments, 2)

	enrollment := page.Enrollments[0]
	require.NoError(t, env.svc.SetAttribute(ctx, enrollment.ID, "credit", "provider_id", "asu"))
	require.NoError(t, env.svc.SetAttribute(ctx, enrollment.ID, "credit", "provider_id", "mit"))
	attrs, err := env.svc.Attributes(ctx, enrollment.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "mit", attrs[0].Value)

	assert.ErrorIs(t, env.svc.SetAttribute(ctx, enrollment.ID, "", "x", "y"), domain.ErrInvalidAttribute)
	assert.ErrorIs(t, env.svc.SetAttribute(ctx, 42, "credit", "x", "y"), domain.ErrNotFound)

	anon, err := env.svc.ListEnrollments(ctx, identity.Anonymous, domain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, anon.Enrollments)
}

func TestEnrollRespectsExclusiveModes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.courses.Create(ctx, coursedomain.CreateRequest{
		CourseID:    courseKey.String(),
		DisplayName: "Circuits and Electronics",
		Modes:       []string{domain.ModeVerified, domain.ModeProfessional},
	})
	require.NoError(t, err)

	_, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeVerified, CheckAccess: true})
	assert.ErrorIs(t, err, domain.ErrModeUnavailable)
	assert.ErrorIs(t, err, domain.ErrCourseEnrollment)
	assert.Equal(t, int64(0), env.countRows(t))

	enrollment, err := env.svc.Enroll(ctx, domain.EnrollRequest{User: learner, Key: courseKey, Mode: domain.ModeProfessional, CheckAccess: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProfessional, enrollment.Mode)

	staffEnrolled := identity.User{ID: 101, Username: "other", Email: "other@example.com"}
	enrollment, err = env.svc.Enroll(ctx, domain.EnrollRequest{User: staffEnrolled, Key: courseKey, Mode: domain.ModeHonor})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHonor, enrollment.Mode)
}
