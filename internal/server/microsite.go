package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	micrositedomain "github.com/smallbiznis/campus/internal/microsite/domain"
)

// GetMicrositeConfig returns the overlay resolved for this request's Host.
func (s *Server) GetMicrositeConfig(c *gin.Context) {
	ctx := c.Request.Context()
	overlay := s.micrositeSvc.Current(ctx)

	var key *string
	if !overlay.IsDefault() {
		key = &overlay.Key
	}
	values := overlay.Values
	if values == nil {
		values = map[string]any{}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"microsite":     key,
		"platform_name": s.micrositeSvc.GetValue(ctx, "platform_name", s.cfg.DefaultSiteName),
		"values":        values,
	}})
}

func (s *Server) ListMicrosites(c *gin.Context) {
	items, err := s.micrositeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateMicrosite(c *gin.Context) {
	var req micrositedomain.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	item, err := s.micrositeSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetMicrosite(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	item, err := s.micrositeSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateMicrosite(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	var req micrositedomain.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	item, err := s.micrositeSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DeleteMicrosite(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	if err := s.micrositeSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListMicrositeHistory(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	items, err := s.micrositeSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
