package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/services"
)

// maxDataMessageSize bounds generated payloads; LiveKit drops larger
// reliable packets anyway.
const maxDataMessageSize = 64 * 1024

type DataHandler struct {
	helpers *services.Helpers
}

func NewDataHandler(helpers *services.Helpers) *DataHandler {
	return &DataHandler{helpers: helpers}
}

func (h *DataHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/data/send", h.Send)
	api.GET("/data/messages", h.GetMessages)
	api.GET("/data/latency", h.GetLatency)
	api.DELETE("/data", h.Clear)
}

type sendDataRequest struct {
	Content      string   `json:"content" binding:"max=65536"`
	Reliable     *bool    `json:"reliable"`
	Destinations []string `json:"destinations" binding:"max=100"`
	Size         int      `json:"size" binding:"min=0"`
	Timestamped  bool     `json:"timestamped"`
}

// Send publishes one message. A positive size sends a generated payload of
// that many bytes; timestamped wraps content for latency measurement.
func (h *DataHandler) Send(c *gin.Context) {
	var req sendDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	if req.Size > maxDataMessageSize {
		badRequest(c, "size exceeds 65536 bytes")
		return
	}
	reliable := req.Reliable == nil || *req.Reliable
	ctx := c.Request.Context()

	var err error
	switch {
	case req.Size > 0:
		err = h.helpers.SendDataMessageOfSize(ctx, req.Size, reliable)
	case req.Timestamped:
		err = h.helpers.SendTimestampedDataMessage(ctx, req.Content, reliable)
	default:
		err = h.helpers.SendDataMessage(ctx, req.Content, reliable, req.Destinations)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "sentCount": h.helpers.SentMessageCount()})
}

// GetMessages lists received messages. content looks a single message up,
// optionally from a given sender; from alone filters by sender.
func (h *DataHandler) GetMessages(c *gin.Context) {
	content, from := c.Query("content"), c.Query("from")

	if content != "" {
		msg, found := h.helpers.FindReceivedMessage(content, from)
		resp := gin.H{"found": found}
		if found {
			resp["message"] = msg
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	messages := h.helpers.ReceivedMessages()
	if from != "" {
		messages = h.helpers.MessagesFromSender(from)
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":          messages,
		"sentCount":         h.helpers.SentMessageCount(),
		"publishingBlocked": h.helpers.IsPublishingBlocked(),
		"lastError":         h.helpers.LastDataChannelError(),
	})
}

func (h *DataHandler) GetLatency(c *gin.Context) {
	c.JSON(http.StatusOK, h.helpers.LatencyStats())
}

func (h *DataHandler) Clear(c *gin.Context) {
	h.helpers.ClearDataChannelState()
	c.Status(http.StatusNoContent)
}
