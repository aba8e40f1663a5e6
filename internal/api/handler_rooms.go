package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRooms handles GET /api/rooms: the active address-to-room mappings.
// Room administration itself happens in the back-office CRUD tool; this
// service only ever reads active entries.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms, err := h.store.ActiveRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve rooms"})
		return
	}

	type room struct {
		RoomID         string `json:"roomId"`
		RoomLabel      string `json:"roomLabel"`
		Floor          int    `json:"floor"`
		NetworkAddress string `json:"networkAddress"`
	}
	response := make([]room, 0, len(rooms))
	for _, r := range rooms {
		response = append(response, room{
			RoomID:         r.RoomID,
			RoomLabel:      r.RoomLabel,
			Floor:          r.Floor,
			NetworkAddress: r.NetworkAddress,
		})
	}
	c.JSON(http.StatusOK, response)
}
