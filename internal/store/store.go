package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/zone"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Zone assignment state machine.
	SetZone(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error)
	MarkArrived(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error)
	MarkNoShow(ctx context.Context, appointmentID int64, visitDate string, practitionerID int64) error
	CancelArrival(ctx context.Context, appointmentID int64, visitDate string) (bool, error)
	StartConsultation(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error)
	EndConsultation(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error)

	// Presence locator and session ownership.
	ResolveRoom(ctx context.Context, networkAddress string) (*model.RoomAddressMapping, error)
	TakeControl(ctx context.Context, u PresenceUpdate) (*model.RoomAddressMapping, error)
	UpdatePresence(ctx context.Context, u PresenceUpdate) (*model.RoomAddressMapping, error)

	// Polling reads.
	ZoneStatesForDay(ctx context.Context, visitDate string) ([]model.AppointmentZoneState, error)
	PresenceForDay(ctx context.Context, visitDate string) ([]model.PractitionerPresence, error)
	HistoryForDay(ctx context.Context, practitionerID int64, visitDate string) ([]model.PresenceHistoryEntry, error)
	ActiveRooms(ctx context.Context) ([]model.RoomAddressMapping, error)

	// Appointment mirror, maintained by the schedule sync service.
	UpsertAppointments(ctx context.Context, appointments []model.Appointment) error
	AppointmentsForDay(ctx context.Context, visitDate string) ([]model.Appointment, error)
}

// DayOf formats a point in time as the visit-day key scoping zone and
// presence rows. The caller picks the clinic's timezone.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	zones *zone.Classifier
}

// NewGormStore creates a new GORM-backed store. The classifier carries the
// operator-configured room lists used for zone-to-status derivation.
func NewGormStore(db *gorm.DB, zones *zone.Classifier) Store {
	return &gormStore{db: db, zones: zones}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ZoneStatesForDay returns every zone-state row for the given visit-day.
func (s *gormStore) ZoneStatesForDay(ctx context.Context, visitDate string) ([]model.AppointmentZoneState, error) {
	var states []model.AppointmentZoneState
	if err := s.db.WithContext(ctx).Where("visit_date = ?", visitDate).Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// PresenceForDay returns every presence row for the given visit-day.
// Staleness interpretation is left to the caller.
func (s *gormStore) PresenceForDay(ctx context.Context, visitDate string) ([]model.PractitionerPresence, error) {
	var rows []model.PractitionerPresence
	if err := s.db.WithContext(ctx).Where("visit_date = ?", visitDate).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HistoryForDay returns a practitioner's movement log for a visit-day in
// insertion order.
func (s *gormStore) HistoryForDay(ctx context.Context, practitionerID int64, visitDate string) ([]model.PresenceHistoryEntry, error) {
	var entries []model.PresenceHistoryEntry
	err := s.db.WithContext(ctx).
		Where("practitioner_id = ? AND visit_date = ?", practitionerID, visitDate).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ActiveRooms returns the active network-address-to-room mappings.
func (s *gormStore) ActiveRooms(ctx context.Context) ([]model.RoomAddressMapping, error) {
	var rooms []model.RoomAddressMapping
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("room_id ASC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// UpsertAppointments refreshes the appointment mirror from the upstream
// scheduling system.
func (s *gormStore) UpsertAppointments(ctx context.Context, appointments []model.Appointment) error {
	if len(appointments) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"practitioner_id", "schedule_id", "patient_name", "visit_date", "starts_at", "updated_at"}),
	}).Create(&appointments).Error
}

// AppointmentsForDay returns the mirrored appointments for a visit-day.
func (s *gormStore) AppointmentsForDay(ctx context.Context, visitDate string) ([]model.Appointment, error) {
	var appointments []model.Appointment
	err := s.db.WithContext(ctx).
		Where("visit_date = ?", visitDate).
		Order("starts_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}
