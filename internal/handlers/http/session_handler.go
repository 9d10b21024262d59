package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/services"
	"meetprobe/internal/infrastructure/livekit"
	"meetprobe/pkg/config"
	"meetprobe/pkg/errors"
)

// SessionHandler drives the meeting client's join and leave lifecycle.
type SessionHandler struct {
	client   *services.MeetingClient
	defaults config.SessionParams
	tokens   *livekit.TokenMinter
	// background outlives requests; auto-join countdowns run on it.
	background context.Context
}

func NewSessionHandler(background context.Context, client *services.MeetingClient, defaults config.SessionParams, tokens *livekit.TokenMinter) *SessionHandler {
	return &SessionHandler{
		client:     client,
		defaults:   defaults,
		tokens:     tokens,
		background: background,
	}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/session/join", h.Join)
	api.POST("/session/leave", h.Leave)
	api.GET("/session", h.GetSession)
	api.POST("/session/token", h.MintToken)
}

// Join accepts the meet page query parameters. With autoJoin=true the join
// is scheduled after the configured countdown and 202 is returned at once.
func (h *SessionHandler) Join(c *gin.Context) {
	sp := config.SessionFromQuery(c.Request.URL.Query(), h.defaults)

	if sp.AutoJoin {
		h.client.AutoJoin(h.background, sp)
		c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "session": redacted(sp)})
		return
	}

	if err := h.client.Join(c.Request.Context(), sp); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "joined",
		"state":   h.client.State(),
		"session": redacted(sp),
	})
}

func (h *SessionHandler) Leave(c *gin.Context) {
	h.client.Leave(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "left", "state": h.client.State()})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	params := h.client.Params()
	c.JSON(http.StatusOK, gin.H{
		"state":            h.client.State(),
		"connected":        h.client.IsConnected(),
		"inMeetingRoom":    h.client.IsInMeetingRoom(),
		"participantCount": h.client.ParticipantCount(),
		"roomName":         params.RoomName,
		"identity":         params.Identity,
		"pendingAutoJoin":  h.client.PendingAutoJoin(),
	})
}

type mintTokenRequest struct {
	RoomName string `json:"roomName" binding:"max=256"`
	Identity string `json:"identity" binding:"required,max=256"`
	Name     string `json:"name" binding:"max=256"`
}

// MintToken issues an access token for another participant of the test,
// using the probe's API credentials.
func (h *SessionHandler) MintToken(c *gin.Context) {
	if h.tokens == nil {
		_ = c.Error(errors.NewServiceUnavailableError("livekit api credentials are not configured"))
		return
	}
	var req mintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	if req.RoomName == "" {
		req.RoomName = h.defaults.RoomName
	}
	if req.Name == "" {
		req.Name = req.Identity
	}

	token, err := h.tokens.Mint(req.RoomName, req.Identity, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	claims, err := h.tokens.Validate(token)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"roomName":  req.RoomName,
		"identity":  req.Identity,
		"expiresAt": claims.ExpiresAt.Time,
	})
}

// redacted hides the access token in responses.
func redacted(sp config.SessionParams) config.SessionParams {
	if sp.Token != "" {
		sp.Token = "***"
	}
	return sp
}
