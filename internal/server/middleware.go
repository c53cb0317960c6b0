package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paychunk/paychunk/internal/accountctx"
	obscontext "github.com/paychunk/paychunk/internal/observability/context"
	"github.com/paychunk/paychunk/internal/observability/logger"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
)

const HeaderAccount = "X-Account-ID"

// AccountRequired resolves the calling account from the X-Account-ID header
// and stores it on the request context.
func (s *Server) AccountRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := strings.TrimSpace(c.GetHeader(HeaderAccount))
		if accountID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if len(accountID) > platformdomain.MaxAccountIDLength {
			AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
			return
		}

		ctx := accountctx.WithAccountID(c.Request.Context(), accountID)
		ctx = obscontext.WithAccountID(ctx, accountID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) callerAccount(c *gin.Context) string {
	accountID, _ := accountctx.AccountIDFromContext(c.Request.Context())
	return accountID
}

// SettleRateLimit throttles settlements per consumer and holds the session
// lock for the duration of the request so concurrent settlements on one
// session are serialized across instances.
func (s *Server) SettleRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		consumer := s.callerAccount(c)
		resourceID := c.Param("resource_id")
		endpoint := strings.TrimSpace(c.FullPath())

		result, err := s.limiter.AllowConsumer(ctx, consumer)
		if err != nil {
			logger.FromContext(ctx).Warn("settlement rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "consumer-rate")
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}

		token, ok, err := s.limiter.TryLockSession(ctx, consumer, resourceID)
		if err != nil {
			logger.FromContext(ctx).Warn("settlement lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !ok {
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "session-lock")
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrRateLimited)
			return
		}
		defer func() {
			if err := s.limiter.ReleaseSession(ctx, consumer, resourceID, token); err != nil {
				logger.FromContext(ctx).Warn("settlement unlock failed", zap.Error(err))
			}
		}()

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}
