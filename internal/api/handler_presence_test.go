package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/store"
)

func seedTestRooms(t *testing.T, s store.Store) {
	t.Helper()
	rooms := []model.RoomAddressMapping{
		{NetworkAddress: "10.0.0.1", RoomID: "room-101", RoomLabel: "Osteo 1", Floor: 1, IsActive: true},
		{NetworkAddress: "10.0.0.2", RoomID: "room-102", RoomLabel: "Osteo 2", Floor: 1, IsActive: true},
	}
	require.NoError(t, s.DB().Create(&rooms).Error)
}

func TestTakeControlMintsSessionID(t *testing.T) {
	h, s := newTestHandler(t)
	seedTestRooms(t, s)
	r := gin.New()
	r.POST("/api/presence/control", h.TakeControl)

	w := doJSON(r, "POST", "/api/presence/control", gin.H{
		"practitioner_id": 7,
		"schedule_id":     "osteo-7",
		"network_address": "10.0.0.1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string        `json:"session_id"`
		Room      *roomResponse `json:"room"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID, "server mints a session token when the client has none")
	require.NotNil(t, resp.Room)
	assert.Equal(t, "room-101", resp.Room.RoomID)
}

func TestHeartbeatRequiresSessionID(t *testing.T) {
	h, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/presence/heartbeat", h.Heartbeat)

	w := doJSON(r, "POST", "/api/presence/heartbeat", gin.H{
		"practitioner_id": 7,
		"network_address": "10.0.0.1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeartbeatNonOwnerGetsNullRoom(t *testing.T) {
	h, s := newTestHandler(t)
	seedTestRooms(t, s)
	r := gin.New()
	r.POST("/api/presence/control", h.TakeControl)
	r.POST("/api/presence/heartbeat", h.Heartbeat)

	w := doJSON(r, "POST", "/api/presence/control", gin.H{
		"practitioner_id": 7, "network_address": "10.0.0.1", "session_id": "tab-A",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, "POST", "/api/presence/heartbeat", gin.H{
		"practitioner_id": 7, "network_address": "10.0.0.2", "session_id": "tab-B",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Room *roomResponse `json:"room"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Room, "a non-owning session's heartbeat is a silent no-op")
}

func TestGetPresenceStaleFlag(t *testing.T) {
	h, s := newTestHandler(t)
	r := gin.New()
	r.GET("/api/presence", h.GetPresence)

	today := store.DayOf(time.Now().UTC())
	fresh := "room-101"
	gone := "room-102"
	rows := []model.PractitionerPresence{
		{PractitionerID: 7, VisitDate: today, CurrentRoomID: &fresh, NetworkAddress: "10.0.0.1",
			LastSeenAt: time.Now().Add(-time.Minute), OwnerSessionID: "A"},
		{PractitionerID: 8, VisitDate: today, CurrentRoomID: &gone, NetworkAddress: "10.0.0.2",
			LastSeenAt: time.Now().Add(-10 * time.Minute), OwnerSessionID: "B"},
	}
	require.NoError(t, s.DB().Create(&rows).Error)

	w := doJSON(r, "GET", "/api/presence?date="+today, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []presenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	byID := make(map[int64]presenceResponse)
	for _, e := range resp {
		byID[e.PractitionerID] = e
	}
	assert.False(t, byID[7].Stale, "heartbeat a minute ago is current")
	assert.True(t, byID[8].Stale, "silence past the window reads as departed")
}
