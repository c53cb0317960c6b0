package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
)

type initializePlatformRequest struct {
	Authority       string `json:"authority"`
	Currency        string `json:"currency"`
	FeeBasisPoints  uint16 `json:"fee_basis_points"`
	MinPricePerUnit uint64 `json:"min_price_per_unit"`
}

func (s *Server) InitializePlatform(c *gin.Context) {
	var req initializePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	authority := strings.TrimSpace(req.Authority)
	if authority == "" {
		authority = s.callerAccount(c)
	}

	resp, err := s.platformSvc.Initialize(c.Request.Context(), platformdomain.InitializeRequest{
		Authority:       authority,
		Currency:        strings.TrimSpace(req.Currency),
		FeeBasisPoints:  req.FeeBasisPoints,
		MinPricePerUnit: req.MinPricePerUnit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPlatform(c *gin.Context) {
	resp, err := s.platformSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
