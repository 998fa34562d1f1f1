package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	"github.com/harborline/freightway/pkg/db/pagination"
)

func (s *Server) ListLedgerEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		UserID    string `form:"user_id"`
		Type      string `form:"type"`
		StartDate string `form:"start_date"`
		EndDate   string `form:"end_date"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(query.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseOptionalTime(query.EndDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListEntriesRequest{
		UserID:    query.UserID,
		Type:      query.Type,
		StartDate: startDate,
		EndDate:   endDate,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReceivablesSummary(c *gin.Context) {
	resp, err := s.ledgerSvc.ReceivablesSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
