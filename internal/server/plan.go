package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
)

type createPlanRequest struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	PriceID *string `json:"price_id"`
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), plandomain.CreateRequest{
		Name:    strings.TrimSpace(req.Name),
		Kind:    plandomain.PlanKind(strings.TrimSpace(req.Kind)),
		PriceID: req.PriceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.planSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetPlanByID(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plan, err := s.planSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

type setPlanLimitRequest struct {
	Value int64 `json:"value"`
}

func (s *Server) SetPlanLimit(c *gin.Context) {
	id, err := parsePlanID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req setPlanLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	if err := s.planSvc.SetLimit(c.Request.Context(), id, name, req.Value); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parsePlanID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError("id", "invalid_plan_id", "invalid value")
	}
	return id, nil
}
