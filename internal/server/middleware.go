package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/streamcart/streamcart/internal/accountctx"
)

const HeaderAccount = "X-Account-ID"

// AccountContext resolves the tenant for the request. Single-tenant
// deployments leave the header off and ride on DEFAULT_ACCOUNT.
func (s *Server) AccountContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := s.cfg.DefaultAccountID

		if raw := strings.TrimSpace(c.GetHeader(HeaderAccount)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed == 0 {
				AbortWithError(c, newValidationError("account", "invalid_account", "invalid account id"))
				return
			}
			accountID = int64(parsed)
		}

		if accountID == 0 {
			AbortWithError(c, newValidationError("account", "invalid_account", "no account resolved"))
			return
		}

		c.Request = c.Request.WithContext(accountctx.WithAccountID(c.Request.Context(), accountID))
		c.Next()
	}
}
