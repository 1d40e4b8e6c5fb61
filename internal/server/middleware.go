package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimbusworks/tenantgate/internal/auth"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// AuthRequired gates a route on token introspection. Presentation failures
// and inactive tokens are 401; an active token without the required scope is
// 403. Introspection transport failures also map to 401: when the provider
// cannot be reached the gate fails closed.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if s.cfg.AuthDisabled {
			principal := &auth.Principal{
				Subject:   "dev",
				ClientID:  "dev",
				Scopes:    []string{s.cfg.RequiredScope},
				Synthetic: true,
			}
			c.Request = c.Request.WithContext(auth.WithPrincipal(ctx, principal))
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			s.metrics.RecordIntrospection(ctx, "missing_token")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.idp.Introspect(ctx, token)
		if err != nil {
			s.log.Warn("introspection failed", zap.Error(err))
			s.metrics.RecordIntrospection(ctx, "error")
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !result.Active {
			s.metrics.RecordIntrospection(ctx, "inactive")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal := &auth.Principal{
			Subject:   result.Sub,
			ClientID:  result.AuthorizedParty(),
			Username:  result.Username,
			Email:     result.Email,
			OrgID:     result.OrgID,
			Scopes:    strings.Fields(result.Scope),
			ExpiresAt: time.Unix(result.Exp, 0),
		}
		if s.cfg.RequiredScope != "" && !principal.HasScope(s.cfg.RequiredScope) {
			s.metrics.RecordIntrospection(ctx, "missing_scope")
			AbortWithError(c, ErrForbidden)
			return
		}

		s.metrics.RecordIntrospection(ctx, "active")
		c.Request = c.Request.WithContext(auth.WithPrincipal(ctx, principal))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
