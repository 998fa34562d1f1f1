package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"github.com/harborline/freightway/pkg/money"
)

type createShipmentRequest struct {
	UserID         string  `json:"user_id"`
	Description    string  `json:"description"`
	VIN            string  `json:"vin"`
	Price          string  `json:"price"`
	InsuranceValue string  `json:"insurance_value"`
	Currency       string  `json:"currency"`
	PaymentMode    *string `json:"payment_mode"`
	Source         *string `json:"source"`
}

func (s *Server) CreateShipment(c *gin.Context) {
	var req createShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	price, err := money.Parse(req.Price)
	if err != nil {
		AbortWithError(c, newValidationError("price", "invalid_price", "price must be a positive decimal"))
		return
	}

	var insurance money.Amount
	if req.InsuranceValue != "" {
		insurance, err = money.Parse(req.InsuranceValue)
		if err != nil {
			AbortWithError(c, newValidationError("insurance_value", "invalid_insurance_value", "insurance value must be a decimal"))
			return
		}
	}

	resp, err := s.shipmentSvc.Create(c.Request.Context(), shipmentdomain.CreateShipmentRequest{
		UserID:         req.UserID,
		Description:    req.Description,
		VIN:            req.VIN,
		Price:          price,
		InsuranceValue: insurance,
		Currency:       req.Currency,
		PaymentMode:    req.PaymentMode,
		Source:         req.Source,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetShipment(c *gin.Context) {
	resp, err := s.shipmentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type assignShipmentRequest struct {
	ContainerID string `json:"container_id"`
}

func (s *Server) AssignShipment(c *gin.Context) {
	var req assignShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.shipmentSvc.Assign(c.Request.Context(), shipmentdomain.AssignRequest{
		ShipmentID:  c.Param("id"),
		ContainerID: req.ContainerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnassignShipment(c *gin.Context) {
	resp, err := s.shipmentSvc.Unassign(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
