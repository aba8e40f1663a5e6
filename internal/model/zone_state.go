package model

import "time"

// AppointmentZoneState tracks which physical zone a scheduled patient is in
// and the status derived from it. Exactly one row exists per
// (appointment_id, visit_date) pair; upserts are keyed on that pair.
type AppointmentZoneState struct {
	ID             int64  `gorm:"autoIncrement;primaryKey"`
	AppointmentID  int64  `gorm:"uniqueIndex:idx_zone_state_visit;not null"`
	VisitDate      string `gorm:"uniqueIndex:idx_zone_state_visit;type:date;not null"`
	PractitionerID int64  `gorm:"index;not null"`
	Zone           string `gorm:"size:128;not null"`
	Status         string `gorm:"size:32;not null"`

	// Milestone timestamps. ArrivedAt and StartedAt are first-write-wins:
	// once set they survive any later zone oscillation. EndedAt is
	// overwritten on every endConsultation call.
	ArrivedAt *time.Time
	StartedAt *time.Time
	EndedAt   *time.Time

	MarkedArrivedBy *int64
	MarkedStartedBy *int64
	MarkedEndedBy   *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
