package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/schedule"
	"clinic-presence-backend/internal/store"
	"clinic-presence-backend/internal/zone"
)

// TestVisitDayLifecycle simulates one patient's path through a clinic
// day end to end: the schedule mirror syncs, reception checks the
// patient in, the practitioner's client claims presence and moves into a
// treatment room, and the consultation runs to completion.
func TestVisitDayLifecycle(t *testing.T) {
	// 1. In-memory database with the full schema.
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, testDB.AutoMigrate(
		&model.Appointment{},
		&model.AppointmentZoneState{},
		&model.PractitionerPresence{},
		&model.PresenceHistoryEntry{},
		&model.RoomAddressMapping{},
	))

	classifier := zone.NewClassifier(
		[]string{"waiting-room-"},
		[]string{"reception"},
		[]string{"room-103"},
	)
	appStore := store.NewGormStore(testDB, classifier)

	require.NoError(t, testDB.Create(&model.RoomAddressMapping{
		NetworkAddress: "10.0.0.3", RoomID: "room-103", RoomLabel: "Osteo 3", Floor: 1, IsActive: true,
	}).Error)

	// 2. Mock upstream scheduling system.
	const visitDay = "2025-01-10"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp schedule.ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 10
		resp.Data.Total = 1
		resp.Data.Items = []schedule.ApiAppointment{
			{ID: 1, PractitionerID: 7, ScheduleID: "osteo-7", PatientName: "M. Dupont",
				Date: visitDay, StartTime: "2025-01-10T09:00:00Z"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := &config.Config{
		Schedule: config.ScheduleConfig{
			Enabled: true,
			Request: config.ScheduleRequest{URL: server.URL, PageSize: 10},
		},
	}
	schedule.NewService(cfg, appStore).SyncOnce(context.Background())

	ctx := context.Background()
	appointments, err := appStore.AppointmentsForDay(ctx, visitDay)
	require.NoError(t, err)
	require.Len(t, appointments, 1)

	// 3. Reception checks the patient in.
	actor := int64(100)
	t1 := time.Date(2025, 1, 10, 8, 55, 0, 0, time.UTC)
	state, err := appStore.MarkArrived(ctx, store.ZoneChange{
		AppointmentID: 1, VisitDate: visitDay, PractitionerID: 7,
		Zone: "waiting-room-main", ActorID: &actor, Now: t1,
	})
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusArrived), state.Status)

	// 4. The practitioner's client claims presence from the treatment room.
	room, err := appStore.TakeControl(ctx, store.PresenceUpdate{
		PractitionerID: 7, ScheduleID: "osteo-7", NetworkAddress: "10.0.0.3",
		SessionID: "tab-1", VisitDate: visitDay, Now: t1,
	})
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, "room-103", room.RoomID)

	// 5. Patient is moved into the treatment room, consultation runs.
	t2 := t1.Add(10 * time.Minute)
	state, err = appStore.SetZone(ctx, store.ZoneChange{
		AppointmentID: 1, VisitDate: visitDay, PractitionerID: 7,
		Zone: "room-103", ActorID: &actor, Now: t2,
	})
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusInProgress), state.Status)

	t3 := t2.Add(30 * time.Minute)
	state, err = appStore.EndConsultation(ctx, store.ZoneChange{
		AppointmentID: 1, VisitDate: visitDay, PractitionerID: 7,
		ActorID: &actor, Now: t3,
	})
	require.NoError(t, err)
	assert.Equal(t, string(zone.StatusCompleted), state.Status)

	// Milestones reflect the actual path, not the final write.
	require.NotNil(t, state.ArrivedAt)
	assert.WithinDuration(t, t1, *state.ArrivedAt, time.Second)
	require.NotNil(t, state.StartedAt)
	assert.WithinDuration(t, t2, *state.StartedAt, time.Second)
	require.NotNil(t, state.EndedAt)
	assert.WithinDuration(t, t3, *state.EndedAt, time.Second)

	// The audit log shows the session claim and nothing else: the
	// practitioner never changed rooms.
	entries, err := appStore.HistoryForDay(ctx, 7, visitDay)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.PresenceEventSessionStart, entries[0].EventType)
}
