package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
)

type ensureCustomerRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) EnsureCustomer(c *gin.Context) {
	var req ensureCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, err := s.customerSvc.EnsureCustomer(c.Request.Context(), req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.renderCustomer(c, customer)
}

func (s *Server) GetCustomer(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	customer, err := s.customerSvc.Get(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.renderCustomer(c, customer)
}

func (s *Server) renderCustomer(c *gin.Context, customer *customerdomain.Customer) {
	state, err := s.customerSvc.DescribeState(c.Request.Context(), customer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":                 customer.ID.String(),
		"user_id":            customer.UserID,
		"plan_id":            customer.PlanID.String(),
		"payment_state":      customer.PaymentState,
		"current_period_end": customer.CurrentPeriodEnd,
		"state":              state,
	}})
}

func (s *Server) ResolveCustomerLimit(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	name := strings.TrimSpace(c.Param("name"))
	value, err := s.customerSvc.ResolveLimit(c.Request.Context(), userID, name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"name":  name,
		"value": value,
	}})
}

type attachExternalRequest struct {
	ExternalCustomerID string `json:"external_customer_id"`
}

func (s *Server) AttachExternalCustomer(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req attachExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	externalID := strings.TrimSpace(req.ExternalCustomerID)
	if externalID == "" {
		AbortWithError(c, newValidationError("external_customer_id", "invalid_external_customer_id", "invalid value"))
		return
	}

	if err := s.customerSvc.AttachExternalCustomer(c.Request.Context(), userID, externalID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type provisionExternalRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Server) ProvisionExternalCustomer(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req provisionExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	externalID, err := s.customerSvc.ProvisionExternalCustomer(c.Request.Context(), userID, strings.TrimSpace(req.Email), strings.TrimSpace(req.Name))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"external_customer_id": externalID}})
}

func (s *Server) DeactivateCustomer(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.customerSvc.Deactivate(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseUserID(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Param("userId"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, newValidationError("user_id", "invalid_user_id", "invalid value")
	}
	return userID, nil
}
