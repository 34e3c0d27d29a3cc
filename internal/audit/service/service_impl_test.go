package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/audit/domain"
	"github.com/smallbiznis/campus/internal/audit/repository"
	"github.com/smallbiznis/campus/internal/clock"
	"github.com/smallbiznis/campus/pkg/db/dbtest"
	"github.com/smallbiznis/campus/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    dbtest.New(t, &domain.ManualEnrollmentAudit{}),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestRecordDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Record(ctx, domain.RecordRequest{
		EnrolledBy:    "staff:1",
		EnrolledEmail: " Learner@Example.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTransitionState, entry.StateTransition)
	assert.Equal(t, "learner@example.com", entry.EnrolledEmail)
	assert.Nil(t, entry.Reason)

	_, err = svc.Record(ctx, domain.RecordRequest{EnrolledBy: "staff:1", EnrolledEmail: "a@b.c", StateTransition: "sideways"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Record(ctx, domain.RecordRequest{EnrolledBy: "staff:1"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Record(ctx, domain.RecordRequest{EnrolledEmail: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrInvalidActor)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	enrollmentID := int64(77)

	states := []string{
		domain.UnenrolledToAllowedToEnroll,
		domain.AllowedToEnrollToEnrolled,
		domain.EnrolledToUnenrolled,
	}
	for _, state := range states {
		_, err := svc.Record(ctx, domain.RecordRequest{
			EnrollmentID:    &enrollmentID,
			EnrolledBy:      "staff:1",
			EnrolledEmail:   "learner@example.com",
			StateTransition: state,
			Reason:          "roster sync",
		})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListRequest{
		Pagination:   pagination.Pagination{PageSize: 2},
		EnrollmentID: &enrollmentID,
	})
	require.NoError(t, err)
	require.Len(t, first.Audits, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, domain.EnrolledToUnenrolled, first.Audits[0].StateTransition)

	second, err := svc.List(ctx, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		Email:      "learner@example.com",
	})
	require.NoError(t, err)
	require.Len(t, second.Audits, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, domain.UnenrolledToAllowedToEnroll, second.Audits[0].StateTransition)

	_, err = svc.List(ctx, domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = svc.List(ctx, domain.ListRequest{Email: "x@y.z", Pagination: pagination.Pagination{PageToken: "!!"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
