package model

import "time"

// RoomAddressMapping maps a client network address to a physical room.
// Reference data administered outside this service; the core only reads
// active entries. An address resolves to at most one active room.
type RoomAddressMapping struct {
	ID             int64  `gorm:"autoIncrement;primaryKey"`
	NetworkAddress string `gorm:"uniqueIndex;size:64;not null"`
	RoomID         string `gorm:"size:64;not null"`
	RoomLabel      string `gorm:"size:128"`
	Floor          int
	IsActive       bool `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
