package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	"github.com/harborline/freightway/pkg/db/pagination"
	"github.com/harborline/freightway/pkg/money"
)

type createContainerRequest struct {
	ContainerNumber string `json:"container_number"`
	MaxCapacity     int    `json:"max_capacity"`
	Vessel          string `json:"vessel"`
	OriginPort      string `json:"origin_port"`
	DestinationPort string `json:"destination_port"`
	Currency        string `json:"currency"`
}

func (s *Server) CreateContainer(c *gin.Context) {
	var req createContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.containerSvc.Create(c.Request.Context(), containerdomain.CreateContainerRequest{
		ContainerNumber: req.ContainerNumber,
		MaxCapacity:     req.MaxCapacity,
		Vessel:          req.Vessel,
		OriginPort:      req.OriginPort,
		DestinationPort: req.DestinationPort,
		Currency:        req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContainers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.containerSvc.List(c.Request.Context(), containerdomain.ListContainerRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Status:    containerdomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContainer(c *gin.Context) {
	resp, err := s.containerSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateContainerRequest struct {
	Status   *string `json:"status"`
	Progress *int    `json:"progress"`
	Location string  `json:"location"`
	Source   *string `json:"source"`
	Vessel   *string `json:"vessel"`
}

func (s *Server) UpdateContainer(c *gin.Context) {
	var req updateContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := containerdomain.UpdateContainerRequest{
		ID:       c.Param("id"),
		Progress: req.Progress,
		Location: req.Location,
		Source:   req.Source,
		Vessel:   req.Vessel,
	}
	if req.Status != nil {
		status := containerdomain.Status(strings.ToUpper(strings.TrimSpace(*req.Status)))
		update.Status = &status
	}

	resp, err := s.containerSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContainer(c *gin.Context) {
	if err := s.containerSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) GetContainerTotals(c *gin.Context) {
	resp, err := s.containerSvc.Totals(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type addExpenseRequest struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	IncurredAt  *string `json:"incurred_at"`
}

func (s *Server) AddContainerExpense(c *gin.Context) {
	var req addExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a positive decimal"))
		return
	}

	add := containerdomain.AddExpenseRequest{
		ContainerID: c.Param("id"),
		Type:        req.Type,
		Description: req.Description,
		Amount:      amount,
		Currency:    req.Currency,
	}
	if req.IncurredAt != nil {
		incurredAt, err := parseOptionalTime(*req.IncurredAt, false)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		add.IncurredAt = incurredAt
	}

	resp, err := s.containerSvc.AddExpense(c.Request.Context(), add)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContainerExpense(c *gin.Context) {
	err := s.containerSvc.DeleteExpense(c.Request.Context(), c.Param("id"), c.Param("expenseId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

type addContainerInvoiceRequest struct {
	Amount   string  `json:"amount"`
	Currency string  `json:"currency"`
	IssuedAt *string `json:"issued_at"`
}

func (s *Server) AddContainerInvoice(c *gin.Context) {
	var req addContainerInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a positive decimal"))
		return
	}

	add := containerdomain.AddContainerInvoiceRequest{
		ContainerID: c.Param("id"),
		Amount:      amount,
		Currency:    req.Currency,
	}
	if req.IssuedAt != nil {
		issuedAt, err := parseOptionalTime(*req.IssuedAt, false)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		add.IssuedAt = issuedAt
	}

	resp, err := s.containerSvc.AddInvoice(c.Request.Context(), add)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
