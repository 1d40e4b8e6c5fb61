// Package agent holds the application surface guarded by the introspection
// gate. The responder here is deliberately minimal; the model pipeline lives
// in a separate service.
package agent

import (
	"context"
	"fmt"

	"github.com/nimbusworks/tenantgate/internal/auth"
	"go.uber.org/zap"
)

// Message is one caller request.
type Message struct {
	Input string `json:"input" binding:"required"`
}

// Reply is the agent's answer.
type Reply struct {
	Output string `json:"output"`
}

// Agent answers messages on behalf of an authenticated client.
type Agent interface {
	Respond(ctx context.Context, principal auth.Principal, msg Message) (*Reply, error)
}

type echoAgent struct {
	log *zap.Logger
}

func New(log *zap.Logger) Agent {
	return &echoAgent{log: log.Named("agent")}
}

func (a *echoAgent) Respond(ctx context.Context, principal auth.Principal, msg Message) (*Reply, error) {
	a.log.Debug("message received",
		zap.String("client_id", principal.ClientID),
		zap.Int("input_bytes", len(msg.Input)),
	)
	return &Reply{
		Output: fmt.Sprintf("agent received %d bytes from %s", len(msg.Input), principal.ClientID),
	}, nil
}
