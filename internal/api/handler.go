package api

import (
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/store"
)

// Notifier dispatches a patient-arrived notification job for an
// appointment. Implemented by the notification worker pool.
type Notifier interface {
	Dispatch(appointmentID int64)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	webpush  *webpush.Options
	zones    config.ZonesConfig
	presence config.PresenceConfig
	loc      *time.Location
	notifier Notifier
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, cfg *config.Config, webpushOptions *webpush.Options, notifier Notifier) *Handler {
	loc := time.Local
	if cfg != nil {
		if l, err := time.LoadLocation(cfg.Presence.Timezone); err != nil {
			log.Printf("Warning: invalid timezone %q, falling back to local time: %v", cfg.Presence.Timezone, err)
		} else {
			loc = l
		}
	}

	h := &Handler{
		store:    s,
		webpush:  webpushOptions,
		loc:      loc,
		notifier: notifier,
	}
	if cfg != nil {
		h.zones = cfg.Zones
		h.presence = cfg.Presence
	}
	return h
}

// today returns the current visit-day key in the clinic's timezone.
func (h *Handler) today() string {
	return store.DayOf(time.Now().In(h.loc))
}

// visitDay validates an explicit visit-date parameter, defaulting to
// today when empty.
func (h *Handler) visitDay(raw string) (string, bool) {
	if raw == "" {
		return h.today(), true
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", false
	}
	return raw, true
}

func (h *Handler) dispatchArrival(appointmentID int64) {
	if h.notifier == nil {
		return
	}
	h.notifier.Dispatch(appointmentID)
}
