package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
)

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.walletSvc.Deposit(c.Request.Context(), walletdomain.DepositRequest{
		AccountID: s.callerAccount(c),
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWalletAccount(c *gin.Context) {
	resp, err := s.walletSvc.GetAccount(c.Request.Context(), s.callerAccount(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
