package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/services"
)

// MediaHandler covers local mute, remote mute state, screen share and
// simulcast preferences.
type MediaHandler struct {
	helpers *services.Helpers
}

func NewMediaHandler(helpers *services.Helpers) *MediaHandler {
	return &MediaHandler{helpers: helpers}
}

func (h *MediaHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/media/:kind/mute", h.Mute)
	api.POST("/media/:kind/unmute", h.Unmute)
	api.GET("/media/mute", h.GetMuteState)
	api.DELETE("/media/mute/events", h.ClearMuteEvents)
	api.GET("/media/remote/:identity/:kind", h.GetRemoteMuteState)

	api.POST("/screenshare/start", h.StartScreenShare)
	api.POST("/screenshare/stop", h.StopScreenShare)
	api.GET("/screenshare", h.GetScreenShare)

	api.POST("/simulcast", h.SetSimulcast)
	api.POST("/simulcast/quality", h.SetQuality)
	api.POST("/simulcast/bandwidth", h.SetBandwidth)
	api.GET("/simulcast", h.GetSimulcast)
}

func (h *MediaHandler) Mute(c *gin.Context)   { h.setMuted(c, true) }
func (h *MediaHandler) Unmute(c *gin.Context) { h.setMuted(c, false) }

func (h *MediaHandler) setMuted(c *gin.Context, muted bool) {
	kind, ok := trackKind(c)
	if !ok {
		return
	}
	if err := h.helpers.Client().SetLocalMuted(kind, muted); err != nil {
		fail(c, err)
		return
	}
	st, _ := h.helpers.LocalTrackMuteState(kind)
	c.JSON(http.StatusOK, gin.H{"kind": kind, "state": st})
}

func (h *MediaHandler) GetMuteState(c *gin.Context) {
	resp := gin.H{
		"audioMuted": h.helpers.IsAudioMuted(),
		"videoMuted": h.helpers.IsVideoMuted(),
		"events":     h.helpers.MuteEvents(),
	}
	if st, ok := h.helpers.LocalTrackMuteState(domain.TrackKindAudio); ok {
		resp["audio"] = st
	}
	if st, ok := h.helpers.LocalTrackMuteState(domain.TrackKindVideo); ok {
		resp["video"] = st
	}
	if last, ok := h.helpers.LastMuteEvent(); ok {
		resp["lastEvent"] = last
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MediaHandler) ClearMuteEvents(c *gin.Context) {
	h.helpers.ClearMuteEvents()
	c.Status(http.StatusNoContent)
}

func (h *MediaHandler) GetRemoteMuteState(c *gin.Context) {
	kind, ok := trackKind(c)
	if !ok {
		return
	}
	identity := c.Param("identity")
	st, ok := h.helpers.RemoteTrackMuteState(identity, kind)
	if !ok {
		fail(c, domain.ErrTrackNotPublished)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity, "kind": kind, "state": st})
}

func (h *MediaHandler) StartScreenShare(c *gin.Context) {
	if err := h.helpers.StartScreenShare(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	h.GetScreenShare(c)
}

func (h *MediaHandler) StopScreenShare(c *gin.Context) {
	if err := h.helpers.StopScreenShare(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	h.GetScreenShare(c)
}

func (h *MediaHandler) GetScreenShare(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":           h.helpers.IsScreenSharing(),
		"permissionDenied": h.helpers.IsScreenSharePermissionDenied(),
		"lastError":        h.helpers.LastScreenShareError(),
	})
}

func (h *MediaHandler) SetSimulcast(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "enabled is required")
		return
	}
	if *req.Enabled {
		h.helpers.EnableSimulcast()
	} else {
		h.helpers.DisableSimulcast()
	}
	h.GetSimulcast(c)
}

func (h *MediaHandler) SetQuality(c *gin.Context) {
	var req struct {
		Quality string `json:"quality" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quality is required")
		return
	}
	q := domain.VideoQuality(strings.ToUpper(strings.TrimSpace(req.Quality)))
	if err := h.helpers.SetVideoQualityPreference(q); err != nil {
		fail(c, err)
		return
	}
	h.GetSimulcast(c)
}

func (h *MediaHandler) SetBandwidth(c *gin.Context) {
	var req struct {
		BPS int64 `json:"bps" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bps must be a non-negative integer")
		return
	}
	h.helpers.SetMaxReceiveBandwidth(req.BPS)
	h.GetSimulcast(c)
}

func (h *MediaHandler) GetSimulcast(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":               h.helpers.IsSimulcastEnabled(),
		"quality":               h.helpers.VideoQualityPreference(),
		"maxReceiveBandwidth":   h.helpers.MaxReceiveBandwidth(),
		"subscribedVideoTracks": h.helpers.SubscribedVideoTrackCount(),
		"dynacast":              h.helpers.IsDynacastEnabled(),
		"receivingLayers":       h.helpers.Store().Simulcast.ReceivingLayers(),
	})
}
