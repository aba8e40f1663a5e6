package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/store"
	"clinic-presence-backend/internal/zone"
)

func testConfig() *config.Config {
	return &config.Config{
		Zones: config.ZonesConfig{
			DefaultWaitingZone:  "waiting-room-main",
			WaitingRoomPrefixes: []string{"waiting-room-"},
			ReceptionZones:      []string{"reception"},
			TreatmentRoomCodes:  []string{"room-101", "room-102", "room-103"},
		},
		Presence: config.PresenceConfig{
			StalenessSeconds: 180,
			Staleness:        3 * time.Minute,
			Timezone:         "UTC",
		},
	}
}

// newTestHandler wires a handler onto an isolated in-memory database.
func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(
		&model.Appointment{},
		&model.AppointmentZoneState{},
		&model.PractitionerPresence{},
		&model.PresenceHistoryEntry{},
		&model.RoomAddressMapping{},
		&model.PushSubscription{},
		&model.SubscriptionPractitioner{},
	))

	cfg := testConfig()
	classifier := zone.NewClassifier(
		cfg.Zones.WaitingRoomPrefixes,
		cfg.Zones.ReceptionZones,
		cfg.Zones.TreatmentRoomCodes,
	)
	s := store.NewGormStore(gormDB, classifier)
	return NewHandler(s, cfg, nil, nil), s
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetZoneValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/zone", h.SetZone)

	t.Run("missing fields", func(t *testing.T) {
		w := doJSON(r, "POST", "/api/zone", gin.H{"zone": "reception"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad visit date", func(t *testing.T) {
		w := doJSON(r, "POST", "/api/zone", gin.H{
			"appointment_id": 1, "practitioner_id": 7,
			"zone": "reception", "visit_date": "10/01/2025",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid request derives status", func(t *testing.T) {
		w := doJSON(r, "POST", "/api/zone", gin.H{
			"appointment_id": 1, "practitioner_id": 7,
			"zone": "waiting-room-inf", "visit_date": "2025-01-10",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp zoneStateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "arrived", resp.Status)
		assert.NotNil(t, resp.ArrivedAt)
	})
}

func TestCancelArrivalConflict(t *testing.T) {
	h, s := newTestHandler(t)
	r := gin.New()
	r.POST("/api/appointments/:id/cancel-arrival", h.CancelArrival)

	_, err := s.StartConsultation(context.Background(), store.ZoneChange{
		AppointmentID: 1, VisitDate: "2025-01-10", PractitionerID: 7,
	})
	require.NoError(t, err)

	w := doJSON(r, "POST", "/api/appointments/1/cancel-arrival", gin.H{"visit_date": "2025-01-10"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetZoneStatesMergesAppointmentMirror(t *testing.T) {
	h, s := newTestHandler(t)
	r := gin.New()
	r.GET("/api/zones", h.GetZoneStates)

	ctx := context.Background()
	require.NoError(t, s.UpsertAppointments(ctx, []model.Appointment{
		{ID: 1, PractitionerID: 7, PatientName: "M. Dupont", VisitDate: "2025-01-10"},
		{ID: 2, PractitionerID: 7, PatientName: "Mme. Laurent", VisitDate: "2025-01-10"},
	}))
	_, err := s.SetZone(ctx, store.ZoneChange{
		AppointmentID: 1, VisitDate: "2025-01-10", PractitionerID: 7, Zone: "waiting-room-inf",
	})
	require.NoError(t, err)

	w := doJSON(r, "GET", "/api/zones?date=2025-01-10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []zoneStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	byID := make(map[int64]zoneStateResponse)
	for _, e := range resp {
		byID[e.AppointmentID] = e
	}
	assert.Equal(t, "arrived", byID[1].Status)
	assert.Equal(t, "M. Dupont", byID[1].PatientName)
	// Appointment without a zone row shows as scheduled, outside.
	assert.Equal(t, "scheduled", byID[2].Status)
	assert.Equal(t, "outside", byID[2].Zone)
}
