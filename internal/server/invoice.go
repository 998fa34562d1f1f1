package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
)

type generateInvoicesRequest struct {
	ContainerID string `json:"container_id"`
	SendEmail   bool   `json:"send_email"`
}

func (s *Server) GenerateInvoices(c *gin.Context) {
	var req generateInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Generate(c.Request.Context(), invoicedomain.GenerateRequest{
		ContainerID: req.ContainerID,
		SendEmail:   req.SendEmail,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
