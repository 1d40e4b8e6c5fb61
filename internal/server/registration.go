package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	dcrdomain "github.com/nimbusworks/tenantgate/internal/dcr/domain"
	procdomain "github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"go.uber.org/zap"
)

// pushMessage is the Pub/Sub push envelope delivered by the marketplace.
type pushMessage struct {
	MessageID  string            `json:"messageId"`
	Data       string            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// hybridRequest covers both shapes accepted on the registration endpoint: a
// push envelope from the event subscription and an RFC 7591 registration
// call from an installed agent.
type hybridRequest struct {
	Message      *pushMessage `json:"message,omitempty"`
	Subscription string       `json:"subscription,omitempty"`

	SoftwareStatement string   `json:"software_statement,omitempty"`
	RedirectURIs      []string `json:"redirect_uris,omitempty"`
	ClientID          string   `json:"client_id,omitempty"`
	ClientSecret      string   `json:"client_secret,omitempty"`
}

type registrationResponse struct {
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`
}

// handleRegistration dispatches on body shape. The marketplace delivers
// procurement events and agents register clients against the same URL, so
// the split happens here rather than at the router.
func (s *Server) handleRegistration(c *gin.Context) {
	var req hybridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, registrationError{
			Error:            "invalid_request",
			ErrorDescription: "request body is not valid JSON",
		})
		return
	}

	switch {
	case req.Message != nil:
		s.handleEventPush(c, req)
	case req.SoftwareStatement != "":
		s.handleClientRegistration(c, req)
	default:
		c.JSON(http.StatusBadRequest, registrationError{
			Error:            "invalid_request",
			ErrorDescription: "expected a push message or a software_statement",
		})
	}
}

// handleEventPush decodes and applies one procurement event. Success and
// permanently unprocessable payloads both ack with 200; only processing
// failures return 500, which makes the push source redeliver.
func (s *Server) handleEventPush(c *gin.Context, req hybridRequest) {
	ctx := c.Request.Context()

	payload, err := base64.StdEncoding.DecodeString(req.Message.Data)
	if err != nil {
		s.log.Warn("dropping push message with undecodable data",
			zap.String("message_id", req.Message.MessageID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var event procdomain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		s.log.Warn("dropping push message with malformed event",
			zap.String("message_id", req.Message.MessageID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := s.procurement.HandleEvent(ctx, event); err != nil {
		s.log.Error("event processing failed",
			zap.String("message_id", req.Message.MessageID),
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "retry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleClientRegistration(c *gin.Context, req hybridRequest) {
	ctx := c.Request.Context()

	creds, err := s.dcr.Register(ctx, dcrdomain.RegisterRequest{
		SoftwareStatement: req.SoftwareStatement,
		RedirectURIs:      req.RedirectURIs,
		ClientID:          req.ClientID,
		ClientSecret:      req.ClientSecret,
	})
	if err != nil {
		status, payload := mapRegistrationError(err)
		s.metrics.RecordRegistration(ctx, payload.Error)
		c.JSON(status, payload)
		return
	}

	s.metrics.RecordRegistration(ctx, "issued")
	c.JSON(http.StatusOK, registrationResponse{
		ClientID:              creds.ClientID,
		ClientSecret:          creds.ClientSecret,
		ClientSecretExpiresAt: creds.ExpiresAt,
	})
}
