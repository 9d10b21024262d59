package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meetprobe/internal/core/state"
	"meetprobe/internal/core/status"
)

// StateHandler exposes the published window and the status board.
type StateHandler struct {
	store *state.Store
	board *status.Board
}

func NewStateHandler(store *state.Store, board *status.Board) *StateHandler {
	return &StateHandler{store: store, board: board}
}

func (h *StateHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/state", h.GetState)
	api.GET("/state/:name", h.GetBinding)
	api.POST("/state/reset", h.Reset)
	api.GET("/status", h.GetStatus)
}

func (h *StateHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Window().Snapshot())
}

func (h *StateHandler) GetBinding(c *gin.Context) {
	name := c.Param("name")
	v, err := h.store.Window().Get(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "value": v})
}

// Reset restores every sub-domain to its defaults and republishes.
func (h *StateHandler) Reset(c *gin.Context) {
	h.store.Reset()
	snap := h.store.SyncToWindow()
	c.JSON(http.StatusOK, gin.H{"version": snap.Version})
}

func (h *StateHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.board.View())
}
