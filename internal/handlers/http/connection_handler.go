package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/domain"
	"meetprobe/internal/core/services"
)

const maxBitrateInterval = 30 * time.Second

// ConnectionHandler reports connection verification and the outbound video
// bitrate.
type ConnectionHandler struct {
	helpers *services.Helpers
}

func NewConnectionHandler(helpers *services.Helpers) *ConnectionHandler {
	return &ConnectionHandler{helpers: helpers}
}

func (h *ConnectionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/connection", h.GetConnection)
	api.GET("/console", h.GetConsole)
	api.POST("/bitrate/baseline", h.CaptureBaseline)
	api.GET("/bitrate", h.GetBitrate)
}

func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	roomState := domain.ConnectionDisconnected
	if room := h.helpers.Client().Room(); room != nil {
		roomState = room.ConnectionState()
	}
	c.JSON(http.StatusOK, gin.H{
		"established":    h.helpers.IsConnectionEstablished(),
		"verified":       h.helpers.IsRealWebRTCConnectionVerified(),
		"connectionTime": h.helpers.ConnectionTime(),
		"roomState":      roomState,
		"lastError":      h.helpers.LastError(),
	})
}

func (h *ConnectionHandler) GetConsole(c *gin.Context) {
	c.String(http.StatusOK, h.helpers.ConsoleLogs())
}

func (h *ConnectionHandler) CaptureBaseline(c *gin.Context) {
	capture, err := h.helpers.CaptureBaseline()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, capture)
}

// GetBitrate returns the rate since the baseline, or samples for ?interval=
// when given.
func (h *ConnectionHandler) GetBitrate(c *gin.Context) {
	raw := c.Query("interval")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"kbps": h.helpers.CurrentBitrateKbps()})
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 || d > maxBitrateInterval {
		badRequest(c, "interval must be a duration between 0 and 30s")
		return
	}
	kbps, err := h.helpers.MeasureBitrateOverInterval(c.Request.Context(), d)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kbps": kbps, "interval": d.String()})
}
