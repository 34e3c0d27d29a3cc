package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	enrollmentdomain "github.com/smallbiznis/campus/internal/enrollment/domain"
)

type courseMode struct {
	Mode                string `json:"mode"`
	Paid                bool   `json:"paid"`
	VerifiedIdentity    bool   `json:"verified_identity"`
	CertificateEligible bool   `json:"certificate_eligible"`
}

// selectableModes lists the modes a learner may choose for course.
// A course without configured modes offers every known mode.
func selectableModes(course *coursedomain.Course) []courseMode {
	selectable := enrollmentdomain.KnownModes()
	if len(course.Modes) > 0 {
		selectable = enrollmentdomain.SelectableModes(course.Modes)
	}
	out := make([]courseMode, 0, len(selectable))
	for _, mode := range selectable {
		policy, _ := enrollmentdomain.PolicyFor(mode)
		out = append(out, courseMode{
			Mode:                mode,
			Paid:                policy.Paid,
			VerifiedIdentity:    policy.VerifiedIdentity,
			CertificateEligible: policy.CertificateEligible,
		})
	}
	return out
}

func (s *Server) CreateCourse(c *gin.Context) {
	var req coursedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	course, err := s.courseSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": course})
}

func (s *Server) GetCourse(c *gin.Context) {
	key, err := coursekey.Parse(c.Param("course_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	course, err := s.courseSvc.Get(ctx, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	enrolled, err := s.enrollmentSvc.NumEnrolledIn(ctx, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	full, err := s.enrollmentSvc.IsCourseFull(ctx, course)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"course":         course,
		"enrolled_count": enrolled,
		"is_full":        full,
		"can_enroll":     s.accessSvc.CanEnroll(ctx, currentUser(c), course),
		"modes":          selectableModes(course),
	}})
}

// CoursePage stands in for the course about page. It only runs once the org
// filter has admitted the course for this microsite.
func (s *Server) CoursePage(c *gin.Context) {
	key, ok := coursekey.FromPath(c.Request.URL.Path)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	ctx := c.Request.Context()
	course, err := s.courseSvc.Get(ctx, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	user := currentUser(c)
	if !s.accessSvc.HasAccess(ctx, user, accessdomain.ActionLoad, course) {
		AbortWithError(c, ErrNotFound)
		return
	}

	state, err := s.enrollmentSvc.EnrollmentModeForUser(ctx, user, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"course_id":     course.CourseID,
		"display_name":  course.DisplayName,
		"platform_name": s.micrositeSvc.GetValue(ctx, "platform_name", s.cfg.DefaultSiteName),
		"enrollment":    state,
	}})
}

func (s *Server) CertificatePage(c *gin.Context) {
	key, ok := coursekey.FromPath(c.Request.URL.Path)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	course, err := s.courseSvc.Get(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"course_id":     course.CourseID,
		"display_name":  course.DisplayName,
		"platform_name": s.micrositeSvc.GetValue(c.Request.Context(), "platform_name", s.cfg.DefaultSiteName),
	}})
}

type roleRequest struct {
	UserID int64  `json:"user_id,string"`
	Role   string `json:"role"`
	Org    string `json:"org"`
}

func (s *Server) GrantRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.accessSvc.GrantRole(c.Request.Context(), req.UserID, req.Role, req.Org); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": req})
}

func (s *Server) RevokeRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.accessSvc.RevokeRole(c.Request.Context(), req.UserID, req.Role, req.Org); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": req})
}
