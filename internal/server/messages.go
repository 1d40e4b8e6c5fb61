package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	agentpkg "github.com/nimbusworks/tenantgate/internal/agent"
	"github.com/nimbusworks/tenantgate/internal/auth"
)

func (s *Server) handleMessage(c *gin.Context) {
	ctx := c.Request.Context()

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var msg agentpkg.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "input is required",
		}})
		return
	}

	reply, err := s.agent.Respond(ctx, *principal, msg)
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}
	c.JSON(http.StatusOK, reply)
}
