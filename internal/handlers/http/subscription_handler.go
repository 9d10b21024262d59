package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/services"
)

type SubscriptionHandler struct {
	helpers *services.Helpers
}

func NewSubscriptionHandler(helpers *services.Helpers) *SubscriptionHandler {
	return &SubscriptionHandler{helpers: helpers}
}

func (h *SubscriptionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/subscriptions", h.GetFailures)
	api.DELETE("/subscriptions/dynacast", h.ClearDynacast)
	api.POST("/subscriptions/:identity", h.SetSubscribed)
	api.GET("/subscriptions/:identity", h.GetSubscription)
}

func (h *SubscriptionHandler) SetSubscribed(c *gin.Context) {
	var req struct {
		Subscribed *bool `json:"subscribed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "subscribed is required")
		return
	}
	identity := c.Param("identity")
	if err := h.helpers.SetVideoSubscribed(identity, *req.Subscribed); err != nil {
		fail(c, err)
		return
	}
	h.GetSubscription(c)
}

// GetSubscription reports everything known about the video received from
// one remote participant.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	identity := c.Param("identity")
	resp := gin.H{
		"identity":   identity,
		"subscribed": h.helpers.IsVideoSubscribed(identity),
		"receiving":  h.helpers.IsReceivingVideoFrom(identity),
		"width":      h.helpers.RemoteVideoTrackWidth(identity),
		"stats":      h.helpers.SubscriberVideoStats(identity),
	}
	if st, ok := h.helpers.TrackStreamState(identity); ok {
		resp["streamState"] = st
	}
	if layer, ok := h.helpers.ReceivingLayerInfo(identity); ok {
		resp["layer"] = layer
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) GetFailures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"failures":         h.helpers.SubscriptionFailures(),
		"failureCount":     h.helpers.SubscriptionFailureCount(),
		"permissionDenied": h.helpers.IsSubscriptionPermissionDenied(),
		"lastError":        h.helpers.LastSubscriptionError(),
	})
}

func (h *SubscriptionHandler) ClearDynacast(c *gin.Context) {
	h.helpers.ClearDynacastState()
	c.Status(http.StatusNoContent)
}
