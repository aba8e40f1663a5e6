package model

import "time"

// PushSubscription holds a browser push subscription for a practitioner's
// client, used for "your patient has arrived" alerts.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Practitioners []SubscriptionPractitioner `gorm:"foreignKey:Endpoint;references:Endpoint"`
}

// SubscriptionPractitioner links a push subscription to the practitioners
// whose patient arrivals it wants to hear about. There is no practitioner
// table in this service, so the mapping carries the raw upstream ID.
type SubscriptionPractitioner struct {
	Endpoint       string `gorm:"primaryKey;size:512"`
	PractitionerID int64  `gorm:"primaryKey;autoIncrement:false"`
}
