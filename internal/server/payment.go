package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/harborline/freightway/internal/payment/domain"
	"github.com/harborline/freightway/pkg/money"
)

type recordPaymentRequest struct {
	UserID        string   `json:"user_id"`
	ShipmentIDs   []string `json:"shipment_ids"`
	Amount        string   `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
	Notes         string   `json:"notes"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a positive decimal"))
		return
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		UserID:        req.UserID,
		ShipmentIDs:   req.ShipmentIDs,
		Amount:        amount.MinorUnits(),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
