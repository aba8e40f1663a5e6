package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/zone"
)

// ZoneChange describes a zone-changing event for one appointment on one
// visit-day.
type ZoneChange struct {
	AppointmentID  int64
	VisitDate      string
	PractitionerID int64
	Zone           string
	ActorID        *int64
	Now            time.Time
}

// zoneStateConflict is the upsert target: one row per (appointment, day).
var zoneStateConflict = []clause.Column{{Name: "appointment_id"}, {Name: "visit_date"}}

// SetZone persists a zone change and the status derived from it.
//
// Zone and status are last-write-wins; arrived_at/started_at and their
// actor columns are first-write-wins, applied with COALESCE against the
// existing row so a later zone oscillation can never erase the original
// milestone. A rapid pair of moves from different actors therefore keeps
// the earliest milestones and the latest zone.
func (s *gormStore) SetZone(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error) {
	now := ch.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	status := s.zones.StatusFor(ch.Zone)

	row := model.AppointmentZoneState{
		AppointmentID:  ch.AppointmentID,
		VisitDate:      ch.VisitDate,
		PractitionerID: ch.PractitionerID,
		Zone:           ch.Zone,
		Status:         string(status),
	}
	if zone.ImpliesArrival(status) {
		row.ArrivedAt = &now
		row.MarkedArrivedBy = ch.ActorID
	}
	if status == zone.StatusInProgress {
		row.StartedAt = &now
		row.MarkedStartedBy = ch.ActorID
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: zoneStateConflict,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"practitioner_id":   ch.PractitionerID,
			"zone":              ch.Zone,
			"status":            string(status),
			"arrived_at":        gorm.Expr("COALESCE(appointment_zone_states.arrived_at, excluded.arrived_at)"),
			"marked_arrived_by": gorm.Expr("COALESCE(appointment_zone_states.marked_arrived_by, excluded.marked_arrived_by)"),
			"started_at":        gorm.Expr("COALESCE(appointment_zone_states.started_at, excluded.started_at)"),
			"marked_started_by": gorm.Expr("COALESCE(appointment_zone_states.marked_started_by, excluded.marked_started_by)"),
			"updated_at":        now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert zone state for appointment %d: %w", ch.AppointmentID, err)
	}

	return s.fetchZoneState(ctx, ch.AppointmentID, ch.VisitDate)
}

// MarkArrived is the reception path: equivalent to SetZone with the
// default waiting-room zone. Idempotent; a second call never clears or
// moves arrived_at.
func (s *gormStore) MarkArrived(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error) {
	return s.SetZone(ctx, ch)
}

// MarkNoShow forces status to no_show, overriding any prior status. Zone
// and milestone timestamps are left untouched on an existing row.
func (s *gormStore) MarkNoShow(ctx context.Context, appointmentID int64, visitDate string, practitionerID int64) error {
	now := time.Now().UTC()
	row := model.AppointmentZoneState{
		AppointmentID:  appointmentID,
		VisitDate:      visitDate,
		PractitionerID: practitionerID,
		Zone:           zone.ZoneOutside,
		Status:         string(zone.StatusNoShow),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: zoneStateConflict,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     string(zone.StatusNoShow),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to mark no-show for appointment %d: %w", appointmentID, err)
	}
	return nil
}

// CancelArrival reverts an arrived appointment to scheduled, clearing the
// arrival milestone and actor. Only valid from arrived: any other current
// status leaves the row unchanged and reports false.
func (s *gormStore) CancelArrival(ctx context.Context, appointmentID int64, visitDate string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.AppointmentZoneState{}).
		Where("appointment_id = ? AND visit_date = ? AND status = ?", appointmentID, visitDate, string(zone.StatusArrived)).
		Updates(map[string]interface{}{
			"status":            string(zone.StatusScheduled),
			"arrived_at":        nil,
			"marked_arrived_by": nil,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel arrival for appointment %d: %w", appointmentID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// StartConsultation transitions an appointment to in_progress. If no row
// exists yet the practitioner started without reception marking arrival,
// so one is created directly in in_progress; the zone stays empty until
// the next floor-plan move reports a room.
func (s *gormStore) StartConsultation(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error) {
	now := ch.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	row := model.AppointmentZoneState{
		AppointmentID:   ch.AppointmentID,
		VisitDate:       ch.VisitDate,
		PractitionerID:  ch.PractitionerID,
		Zone:            ch.Zone,
		Status:          string(zone.StatusInProgress),
		ArrivedAt:       &now,
		StartedAt:       &now,
		MarkedArrivedBy: ch.ActorID,
		MarkedStartedBy: ch.ActorID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: zoneStateConflict,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":            string(zone.StatusInProgress),
			"arrived_at":        gorm.Expr("COALESCE(appointment_zone_states.arrived_at, excluded.arrived_at)"),
			"marked_arrived_by": gorm.Expr("COALESCE(appointment_zone_states.marked_arrived_by, excluded.marked_arrived_by)"),
			"started_at":        gorm.Expr("COALESCE(appointment_zone_states.started_at, excluded.started_at)"),
			"marked_started_by": gorm.Expr("COALESCE(appointment_zone_states.marked_started_by, excluded.marked_started_by)"),
			"updated_at":        now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to start consultation for appointment %d: %w", ch.AppointmentID, err)
	}
	return s.fetchZoneState(ctx, ch.AppointmentID, ch.VisitDate)
}

// EndConsultation transitions an appointment to completed. Unlike arrival
// and start, ended_at is overwritten on every call so a mis-click can be
// corrected by ending again.
func (s *gormStore) EndConsultation(ctx context.Context, ch ZoneChange) (*model.AppointmentZoneState, error) {
	now := ch.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	row := model.AppointmentZoneState{
		AppointmentID:   ch.AppointmentID,
		VisitDate:       ch.VisitDate,
		PractitionerID:  ch.PractitionerID,
		Zone:            ch.Zone,
		Status:          string(zone.StatusCompleted),
		ArrivedAt:       &now,
		EndedAt:         &now,
		MarkedArrivedBy: ch.ActorID,
		MarkedEndedBy:   ch.ActorID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: zoneStateConflict,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":            string(zone.StatusCompleted),
			"arrived_at":        gorm.Expr("COALESCE(appointment_zone_states.arrived_at, excluded.arrived_at)"),
			"marked_arrived_by": gorm.Expr("COALESCE(appointment_zone_states.marked_arrived_by, excluded.marked_arrived_by)"),
			"ended_at":          now,
			"marked_ended_by":   ch.ActorID,
			"updated_at":        now,
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to end consultation for appointment %d: %w", ch.AppointmentID, err)
	}
	return s.fetchZoneState(ctx, ch.AppointmentID, ch.VisitDate)
}

func (s *gormStore) fetchZoneState(ctx context.Context, appointmentID int64, visitDate string) (*model.AppointmentZoneState, error) {
	var state model.AppointmentZoneState
	err := s.db.WithContext(ctx).
		Where("appointment_id = ? AND visit_date = ?", appointmentID, visitDate).
		First(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read back zone state for appointment %d: %w", appointmentID, err)
	}
	return &state, nil
}
