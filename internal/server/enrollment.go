package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	enrollmentdomain "github.com/smallbiznis/campus/internal/enrollment/domain"
	"github.com/smallbiznis/campus/pkg/db/pagination"
)

type enrollRequest struct {
	CourseID string `json:"course_id"`
	Mode     string `json:"mode"`
}

func (s *Server) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	key, err := coursekey.Parse(req.CourseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	enrollment, err := s.enrollmentSvc.Enroll(c.Request.Context(), enrollmentdomain.EnrollRequest{
		User:        currentUser(c),
		Key:         key,
		Mode:        strings.TrimSpace(req.Mode),
		CheckAccess: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": enrollment})
}

func (s *Server) GetEnrollment(c *gin.Context) {
	key, err := coursekey.Parse(c.Param("course_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	state, err := s.enrollmentSvc.EnrollmentModeForUser(c.Request.Context(), currentUser(c), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if state == nil {
		AbortWithError(c, enrollmentdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"course_id": key.String(),
		"mode":      state.Mode,
		"is_active": state.IsActive,
	}})
}

func (s *Server) Unenroll(c *gin.Context) {
	key, err := coursekey.Parse(c.Param("course_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	skipRefund, err := parseOptionalBool(c.Query("skip_refund"))
	if err != nil {
		AbortWithError(c, newValidationError("skip_refund", "invalid_skip_refund", "invalid skip_refund"))
		return
	}

	if err := s.enrollmentSvc.Unenroll(c.Request.Context(), currentUser(c), key, skipRefund != nil && *skipRefund); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"course_id": key.String(), "is_active": false}})
}

func (s *Server) ListEnrollments(c *gin.Context) {
	var query enrollmentdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.enrollmentSvc.ListEnrollments(c.Request.Context(), currentUser(c), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Enrollments, "page_info": resp.PageInfo})
}

type setAttributeRequest struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Value     string `json:"value"`
}

func (s *Server) SetEnrollmentAttribute(c *gin.Context) {
	key, err := coursekey.Parse(c.Param("course_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req setAttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	enrolled, err := s.enrollmentSvc.IsEnrolled(ctx, user, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !enrolled {
		AbortWithError(c, enrollmentdomain.ErrNotFound)
		return
	}

	enrollment, err := s.enrollmentSvc.GetOrCreateEnrollment(ctx, user, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.enrollmentSvc.SetAttribute(ctx, enrollment.ID, req.Namespace, req.Name, req.Value); err != nil {
		AbortWithError(c, err)
		return
	}
	attrs, err := s.enrollmentSvc.Attributes(ctx, enrollment.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attrs})
}

type manualEnrollmentRequest struct {
	Action     string `json:"action"`
	Email      string `json:"email"`
	CourseID   string `json:"course_id"`
	Reason     string `json:"reason"`
	Role       string `json:"role"`
	AutoEnroll bool   `json:"auto_enroll"`
}

func (s *Server) ManualEnrollment(c *gin.Context) {
	var req manualEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	key, err := coursekey.Parse(req.CourseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	manual := enrollmentdomain.ManualRequest{
		Actor:      currentUser(c),
		Role:       strings.TrimSpace(req.Role),
		Email:      req.Email,
		Key:        key,
		Reason:     strings.TrimSpace(req.Reason),
		AutoEnroll: req.AutoEnroll,
	}

	var result *enrollmentdomain.ManualResult
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "enroll":
		result, err = s.enrollmentSvc.ManualEnroll(c.Request.Context(), manual)
	case "unenroll":
		result, err = s.enrollmentSvc.ManualUnenroll(c.Request.Context(), manual)
	default:
		AbortWithError(c, newValidationError("action", "invalid_action", "action must be enroll or unenroll"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListManualAudits(c *gin.Context) {
	var query struct {
		pagination.Pagination
		EnrollmentID string `form:"enrollment_id"`
		Email        string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	enrollmentID, err := parseOptionalInt64(query.EnrollmentID)
	if err != nil {
		AbortWithError(c, newValidationError("enrollment_id", "invalid_enrollment_id", "invalid enrollment_id"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Pagination:   query.Pagination,
		EnrollmentID: enrollmentID,
		Email:        strings.TrimSpace(query.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Audits, "page_info": resp.PageInfo})
}

// RegisterAccount materializes pending auto-enrollments for a newly seen learner.
func (s *Server) RegisterAccount(c *gin.Context) {
	enrollments, err := s.enrollmentSvc.ProcessAutoEnrollments(c.Request.Context(), currentUser(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"enrollments": enrollments}})
}
