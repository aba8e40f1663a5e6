package model

import "time"

// PractitionerPresence is the current-position row for a practitioner
// (hot table). One row per (practitioner_id, visit_date); a new calendar
// day implicitly starts a fresh record.
type PractitionerPresence struct {
	ID             int64  `gorm:"autoIncrement;primaryKey"`
	PractitionerID int64  `gorm:"uniqueIndex:idx_presence_visit;not null"`
	VisitDate      string `gorm:"uniqueIndex:idx_presence_visit;type:date;not null"`
	ScheduleID     string `gorm:"size:64"`

	// CurrentRoomID is nil when the observed address did not resolve to
	// any known room.
	CurrentRoomID  *string `gorm:"size:64"`
	NetworkAddress string  `gorm:"size:64;not null"`
	LastSeenAt     time.Time

	// OwnerSessionID is the single client instance allowed to update this
	// row. Writes from any other session are silently discarded.
	OwnerSessionID string `gorm:"size:64;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Presence history event types.
const (
	PresenceEventEnter        = "enter"
	PresenceEventUpdate       = "update"
	PresenceEventLeave        = "leave"
	PresenceEventSessionStart = "session_start"
	PresenceEventSessionEnd   = "session_end"
)

// PresenceHistoryEntry is the append-only audit log of practitioner
// movement (cold table). Entries are never mutated or deleted.
type PresenceHistoryEntry struct {
	ID             int64     `gorm:"autoIncrement;primaryKey"`
	PractitionerID int64     `gorm:"index:idx_presence_history_day;not null"`
	VisitDate      string    `gorm:"index:idx_presence_history_day;type:date;not null"`
	ScheduleID     string    `gorm:"size:64"`
	RoomID         *string   `gorm:"size:64"`
	NetworkAddress string    `gorm:"size:64"`
	SessionID      string    `gorm:"size:64;not null"`
	EventType      string    `gorm:"size:32;not null"`
	OccurredAt     time.Time `gorm:"index;not null"`
}
