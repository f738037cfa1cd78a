package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	limitdomain "github.com/quotient-hq/quotient/internal/limit/domain"
)

type createLimitRequest struct {
	Name    string `json:"name"`
	Default int64  `json:"default"`
}

func (s *Server) CreateLimit(c *gin.Context) {
	var req createLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit, err := s.limitSvc.Create(c.Request.Context(), limitdomain.CreateRequest{
		Name:    strings.TrimSpace(req.Name),
		Default: req.Default,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": limit})
}

func (s *Server) ListLimits(c *gin.Context) {
	limits, err := s.limitSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": limits})
}

func (s *Server) GetLimitByName(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	limit, err := s.limitSvc.Get(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": limit})
}

type setLimitDefaultRequest struct {
	Value int64 `json:"value"`
}

func (s *Server) SetLimitDefault(c *gin.Context) {
	var req setLimitDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	if err := s.limitSvc.SetDefault(c.Request.Context(), name, req.Value); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
