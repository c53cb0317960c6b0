package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/pkg/db/pagination"
)

type createResourceRequest struct {
	ID           string `json:"id"`
	ContentHash  string `json:"content_hash"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	UnitCount    uint32 `json:"unit_count"`
	PricePerUnit uint64 `json:"price_per_unit"`
}

type updateResourceRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	PricePerUnit *uint64 `json:"price_per_unit,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

func (s *Server) CreateResource(c *gin.Context) {
	var req createResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.resourceSvc.Create(c.Request.Context(), resourcedomain.CreateRequest{
		ID:           strings.TrimSpace(req.ID),
		Owner:        s.callerAccount(c),
		ContentHash:  strings.TrimSpace(req.ContentHash),
		Title:        req.Title,
		Description:  req.Description,
		UnitCount:    req.UnitCount,
		PricePerUnit: req.PricePerUnit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateResource(c *gin.Context) {
	var req updateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.resourceSvc.Update(c.Request.Context(), resourcedomain.UpdateRequest{
		ID:           c.Param("id"),
		Owner:        s.callerAccount(c),
		Title:        req.Title,
		Description:  req.Description,
		PricePerUnit: req.PricePerUnit,
		Active:       req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetResource(c *gin.Context) {
	resp, err := s.resourceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetResourceEarnings(c *gin.Context) {
	resp, err := s.resourceSvc.GetEarnings(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListResources(c *gin.Context) {
	var query struct {
		Owner      string `form:"owner"`
		ActiveOnly bool   `form:"active_only"`
		PageToken  string `form:"page_token"`
		PageSize   int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.resourceSvc.List(c.Request.Context(), resourcedomain.ListRequest{
		Owner:      strings.TrimSpace(query.Owner),
		ActiveOnly: query.ActiveOnly,
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
