package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/services"
)

type MetadataHandler struct {
	helpers *services.Helpers
}

func NewMetadataHandler(helpers *services.Helpers) *MetadataHandler {
	return &MetadataHandler{helpers: helpers}
}

func (h *MetadataHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/metadata/listen", h.Listen)
	api.GET("/metadata", h.GetMetadata)
	api.PUT("/metadata/local", h.SetLocal)
	api.DELETE("/metadata", h.Clear)
}

// Listen flags room and participant listening. An empty body enables both.
func (h *MetadataHandler) Listen(c *gin.Context) {
	var req struct {
		Room        *bool `json:"room"`
		Participant *bool `json:"participant"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request format")
			return
		}
	}
	if req.Room == nil || *req.Room {
		h.helpers.StartListeningRoom()
	}
	if req.Participant == nil || *req.Participant {
		h.helpers.StartListeningParticipant()
	}
	c.JSON(http.StatusOK, gin.H{"listening": true})
}

func (h *MetadataHandler) GetMetadata(c *gin.Context) {
	resp := gin.H{
		"room":              h.helpers.RoomMetadata(),
		"local":             h.helpers.LocalMetadata(),
		"roomEvents":        h.helpers.RoomMetadataEvents(),
		"participantEvents": h.helpers.ParticipantMetadataEvents(),
	}
	if identity := c.Query("identity"); identity != "" {
		resp["participant"] = h.helpers.ParticipantMetadata(identity)
	}
	if value := c.Query("value"); value != "" {
		resp["roomEventSeen"] = h.helpers.HasRoomEventWithValue(value)
		if identity := c.Query("identity"); identity != "" {
			resp["participantEventSeen"] = h.helpers.HasParticipantEventWithValue(identity, value)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MetadataHandler) SetLocal(c *gin.Context) {
	var req struct {
		Metadata string `json:"metadata" binding:"max=65536"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	if err := h.helpers.SetLocalMetadata(req.Metadata); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"local": req.Metadata})
}

func (h *MetadataHandler) Clear(c *gin.Context) {
	h.helpers.ClearMetadataEvents()
	c.Status(http.StatusNoContent)
}
