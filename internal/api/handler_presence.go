package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/store"
)

type presenceRequest struct {
	PractitionerID int64  `json:"practitioner_id" binding:"required"`
	ScheduleID     string `json:"schedule_id"`
	NetworkAddress string `json:"network_address"`
	SessionID      string `json:"session_id"`
}

type roomResponse struct {
	RoomID    string `json:"roomId"`
	RoomLabel string `json:"roomLabel"`
	Floor     int    `json:"floor"`
}

func roomToResponse(m *model.RoomAddressMapping) *roomResponse {
	if m == nil {
		return nil
	}
	return &roomResponse{RoomID: m.RoomID, RoomLabel: m.RoomLabel, Floor: m.Floor}
}

// TakeControl handles POST /api/presence/control, called once per client
// instance (page load). Mints a session token when the client did not
// supply one and echoes it back; the client passes it on every heartbeat.
func (h *Handler) TakeControl(c *gin.Context) {
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.NetworkAddress == "" {
		req.NetworkAddress = c.ClientIP()
	}

	room, err := h.store.TakeControl(c.Request.Context(), store.PresenceUpdate{
		PractitionerID: req.PractitionerID,
		ScheduleID:     req.ScheduleID,
		NetworkAddress: req.NetworkAddress,
		SessionID:      req.SessionID,
		VisitDate:      h.today(),
		Now:            time.Now().In(h.loc),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to take control"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": req.SessionID,
		"room":       roomToResponse(room),
	})
}

// Heartbeat handles POST /api/presence/heartbeat, called on a fixed
// interval by the owning session. A non-owning session gets a null room
// and no state change; that is routine for background tabs, not an error.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if req.NetworkAddress == "" {
		req.NetworkAddress = c.ClientIP()
	}

	room, err := h.store.UpdatePresence(c.Request.Context(), store.PresenceUpdate{
		PractitionerID: req.PractitionerID,
		ScheduleID:     req.ScheduleID,
		NetworkAddress: req.NetworkAddress,
		SessionID:      req.SessionID,
		VisitDate:      h.today(),
		Now:            time.Now().In(h.loc),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": roomToResponse(room)})
}

// presenceResponse is a presence row annotated with the read-side
// staleness rule.
type presenceResponse struct {
	PractitionerID int64     `json:"practitionerId"`
	ScheduleID     string    `json:"scheduleId"`
	RoomID         *string   `json:"roomId"`
	NetworkAddress string    `json:"networkAddress"`
	LastSeenAt     time.Time `json:"lastSeenAt"`
	Stale          bool      `json:"stale"`
}

// GetPresence handles GET /api/presence?date= — the floor-plan's
// practitioner-avatar poll. A row whose last heartbeat is older than the
// staleness window is flagged stale: the client stopped heartbeating
// without an explicit leave (closed browser, dropped network), since
// there is no server-side disconnect signal.
func (h *Handler) GetPresence(c *gin.Context) {
	visitDate, ok := h.visitDay(c.Query("date"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	rows, err := h.store.PresenceForDay(c.Request.Context(), visitDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve presence"})
		return
	}

	now := time.Now()
	response := make([]presenceResponse, 0, len(rows))
	for _, r := range rows {
		response = append(response, presenceResponse{
			PractitionerID: r.PractitionerID,
			ScheduleID:     r.ScheduleID,
			RoomID:         r.CurrentRoomID,
			NetworkAddress: r.NetworkAddress,
			LastSeenAt:     r.LastSeenAt,
			Stale:          now.Sub(r.LastSeenAt) > h.presence.Staleness,
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetPresenceHistory handles GET /api/presence/history — the audit read
// of who was where, when.
func (h *Handler) GetPresenceHistory(c *gin.Context) {
	practitionerID, err := strconv.ParseInt(c.Query("practitioner_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid practitioner_id"})
		return
	}
	visitDate, ok := h.visitDay(c.Query("date"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	entries, err := h.store.HistoryForDay(c.Request.Context(), practitionerID, visitDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve history"})
		return
	}

	type historyResponse struct {
		RoomID         *string   `json:"roomId"`
		NetworkAddress string    `json:"networkAddress"`
		SessionID      string    `json:"sessionId"`
		EventType      string    `json:"eventType"`
		OccurredAt     time.Time `json:"occurredAt"`
	}
	response := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, historyResponse{
			RoomID:         e.RoomID,
			NetworkAddress: e.NetworkAddress,
			SessionID:      e.SessionID,
			EventType:      e.EventType,
			OccurredAt:     e.OccurredAt,
		})
	}
	c.JSON(http.StatusOK, response)
}
