package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	sessiondomain "github.com/paychunk/paychunk/internal/session/domain"
	"github.com/paychunk/paychunk/pkg/db/pagination"
)

type authorizeSessionRequest struct {
	RequestedUnits uint32 `json:"requested_units"`
}

type payUnitRequest struct {
	PricePerUnit uint64 `json:"price_per_unit"`
}

type settleSessionRequest struct {
	UnitCount    uint32 `json:"unit_count"`
	PricePerUnit uint64 `json:"price_per_unit"`
	ReportedAt   string `json:"reported_at"`
}

func (s *Server) AuthorizeSession(c *gin.Context) {
	var req authorizeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sessionSvc.Authorize(c.Request.Context(), sessiondomain.AuthorizeRequest{
		Consumer:       s.callerAccount(c),
		ResourceID:     c.Param("resource_id"),
		RequestedUnits: req.RequestedUnits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PayUnit(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 32)
	if err != nil {
		AbortWithError(c, newValidationError("index", "invalid_unit_index", "invalid unit index"))
		return
	}

	var req payUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sessionSvc.SettleUnit(c.Request.Context(), sessiondomain.SettleUnitRequest{
		Consumer:     s.callerAccount(c),
		ResourceID:   c.Param("resource_id"),
		UnitIndex:    uint32(index),
		PricePerUnit: req.PricePerUnit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettleSession(c *gin.Context) {
	var req settleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reportedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ReportedAt))
	if err != nil {
		AbortWithError(c, newValidationError("reported_at", "invalid_reported_at", "invalid reported_at"))
		return
	}

	resp, err := s.sessionSvc.SettleBatch(c.Request.Context(), sessiondomain.SettleBatchRequest{
		Consumer:     s.callerAccount(c),
		ResourceID:   c.Param("resource_id"),
		UnitCount:    req.UnitCount,
		PricePerUnit: req.PricePerUnit,
		ReportedAt:   reportedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeDelegation(c *gin.Context) {
	resp, err := s.sessionSvc.Revoke(c.Request.Context(), s.callerAccount(c), c.Param("resource_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CloseSession(c *gin.Context) {
	if err := s.sessionSvc.Close(c.Request.Context(), s.callerAccount(c), c.Param("resource_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *Server) GetSession(c *gin.Context) {
	resp, err := s.sessionSvc.Get(c.Request.Context(), s.callerAccount(c), c.Param("resource_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSessions(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sessionSvc.List(c.Request.Context(), sessiondomain.ListRequest{
		Consumer: s.callerAccount(c),
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Data, "page_info": resp.PageInfo})
}
