package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/course/repository"
	"github.com/smallbiznis/campus/internal/coursekey"
	"github.com/smallbiznis/campus/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:    dbtest.New(t, &domain.Course{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	limit := 10

	created, err := svc.Create(ctx, domain.CreateRequest{
		CourseID:                     "course-v1:MITx+6.002x+2024",
		DisplayName:                  "Circuits",
		MaxStudentEnrollmentsAllowed: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "MITx", created.Org)

	got, err := svc.Get(ctx, coursekey.MustParse("course-v1:MITx+6.002x+2024"))
	require.NoError(t, err)
	assert.Equal(t, "Circuits", got.DisplayName)
	require.NotNil(t, got.MaxStudentEnrollmentsAllowed)
	assert.Equal(t, 10, *got.MaxStudentEnrollmentsAllowed)

	_, err = svc.Create(ctx, domain.CreateRequest{CourseID: "course-v1:MITx+6.002x+2024", DisplayName: "Again"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), coursekey.MustParse("course-v1:MITx+nope+2024"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), coursekey.Key{})
	assert.ErrorIs(t, err, coursekey.ErrInvalidKey)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	negative := -1
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.Create(ctx, domain.CreateRequest{CourseID: "bogus", DisplayName: "x"})
	assert.ErrorIs(t, err, coursekey.ErrInvalidKey)

	_, err = svc.Create(ctx, domain.CreateRequest{CourseID: "course-v1:a+b+c", DisplayName: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{CourseID: "course-v1:a+b+c", DisplayName: "x", MaxStudentEnrollmentsAllowed: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxAllowed)

	_, err = svc.Create(ctx, domain.CreateRequest{CourseID: "course-v1:a+b+c", DisplayName: "x", EnrollmentStart: &start, EnrollmentEnd: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestEnrollmentOpen(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	c := &domain.Course{EnrollmentStart: &start, EnrollmentEnd: &end}

	assert.False(t, c.EnrollmentOpen(start.Add(-time.Second)))
	assert.True(t, c.EnrollmentOpen(start))
	assert.False(t, c.EnrollmentOpen(end))
	assert.True(t, (&domain.Course{}).EnrollmentOpen(start))
}

func TestCreateNormalizesModes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{
		CourseID:    "course-v1:MITx+Pro+2024",
		DisplayName: "Pro",
		Modes:       []string{" Professional ", "verified", "verified"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, coursekey.MustParse("course-v1:MITx+Pro+2024"))
	require.NoError(t, err)
	assert.Equal(t, []string{"professional", "verified"}, []string(got.Modes))

	_, err = svc.Create(ctx, domain.CreateRequest{CourseID: "course-v1:MITx+Bad+2024", DisplayName: "x", Modes: []string{"honor", " "}})
	assert.ErrorIs(t, err, domain.ErrInvalidModes)
}
