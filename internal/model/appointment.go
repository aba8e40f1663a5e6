package model

import "time"

// Appointment is a read-only mirror of the external scheduling system.
// Rows are refreshed by the schedule sync service; the tracking core only
// ever references appointments by ID and never validates that one exists.
type Appointment struct {
	ID             int64  `gorm:"primaryKey"` // Upstream ID
	PractitionerID int64  `gorm:"index;not null"`
	ScheduleID     string `gorm:"size:64"`
	PatientName    string `gorm:"size:256"`
	VisitDate      string `gorm:"type:date;index;not null"`
	StartsAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
