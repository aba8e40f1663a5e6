package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-presence-backend/internal/model"
)

// PresenceUpdate carries one client observation of a practitioner's
// network address, plus the session claiming (or holding) the presence row.
type PresenceUpdate struct {
	PractitionerID int64
	ScheduleID     string
	NetworkAddress string
	SessionID      string
	VisitDate      string
	Now            time.Time
}

var presenceConflict = []clause.Column{{Name: "practitioner_id"}, {Name: "visit_date"}}

// ResolveRoom maps a network address to its active room. No fuzzy or
// subnet matching; an unknown address is a normal outcome and returns
// (nil, nil), not an error.
func (s *gormStore) ResolveRoom(ctx context.Context, networkAddress string) (*model.RoomAddressMapping, error) {
	var mapping model.RoomAddressMapping
	err := s.db.WithContext(ctx).
		Where("network_address = ? AND is_active = ?", networkAddress, true).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve room for address %q: %w", networkAddress, err)
	}
	return &mapping, nil
}

// TakeControl is the session-acquisition entry point, called once per new
// client instance. It is an unconditional takeover: if another session
// owns the row, that session gets a session_end history entry at its last
// known room and the row is overwritten regardless. Newest open tab wins;
// a stale background tab drifting the displayed location is the worse
// failure mode.
func (s *gormStore) TakeControl(ctx context.Context, u PresenceUpdate) (*model.RoomAddressMapping, error) {
	now := u.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	room, err := s.ResolveRoom(ctx, u.NetworkAddress)
	if err != nil {
		return nil, err
	}
	roomID := roomIDOf(room)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := fetchPresence(tx, u.PractitionerID, u.VisitDate)
		if err != nil {
			return err
		}

		sameOwner := found && existing.OwnerSessionID == u.SessionID
		if found && !sameOwner && existing.OwnerSessionID != "" {
			end := model.PresenceHistoryEntry{
				PractitionerID: u.PractitionerID,
				VisitDate:      u.VisitDate,
				ScheduleID:     existing.ScheduleID,
				RoomID:         existing.CurrentRoomID,
				NetworkAddress: existing.NetworkAddress,
				SessionID:      existing.OwnerSessionID,
				EventType:      model.PresenceEventSessionEnd,
				OccurredAt:     now,
			}
			if err := tx.Create(&end).Error; err != nil {
				return fmt.Errorf("failed to log session_end: %w", err)
			}
		}

		if err := upsertPresence(tx, u, roomID, now); err != nil {
			return err
		}

		// A session re-acquiring its own row is a refresh, not a handover.
		event := model.PresenceEventSessionStart
		if sameOwner {
			event = model.PresenceEventUpdate
		}
		start := model.PresenceHistoryEntry{
			PractitionerID: u.PractitionerID,
			VisitDate:      u.VisitDate,
			ScheduleID:     u.ScheduleID,
			RoomID:         roomID,
			NetworkAddress: u.NetworkAddress,
			SessionID:      u.SessionID,
			EventType:      event,
			OccurredAt:     now,
		}
		if err := tx.Create(&start).Error; err != nil {
			return fmt.Errorf("failed to log %s: %w", event, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("take control failed for practitioner %d: %w", u.PractitionerID, err)
	}
	return room, nil
}

// UpdatePresence is the heartbeat entry point. A non-owning session's
// update is silently discarded; background tabs calling this is routine,
// not an error. Room transitions append a leave entry then an enter entry
// to history; an unchanged room appends nothing.
func (s *gormStore) UpdatePresence(ctx context.Context, u PresenceUpdate) (*model.RoomAddressMapping, error) {
	now := u.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	room, err := s.ResolveRoom(ctx, u.NetworkAddress)
	if err != nil {
		return nil, err
	}
	roomID := roomIDOf(room)

	owned := true
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := fetchPresence(tx, u.PractitionerID, u.VisitDate)
		if err != nil {
			return err
		}
		if found && existing.OwnerSessionID != "" && existing.OwnerSessionID != u.SessionID {
			owned = false
			return nil
		}

		if err := upsertPresence(tx, u, roomID, now); err != nil {
			return err
		}

		var previousRoom *string
		if found {
			previousRoom = existing.CurrentRoomID
		}
		if sameRoom(previousRoom, roomID) {
			return nil
		}

		if previousRoom != nil {
			leave := model.PresenceHistoryEntry{
				PractitionerID: u.PractitionerID,
				VisitDate:      u.VisitDate,
				ScheduleID:     u.ScheduleID,
				RoomID:         previousRoom,
				NetworkAddress: existing.NetworkAddress,
				SessionID:      u.SessionID,
				EventType:      model.PresenceEventLeave,
				OccurredAt:     now,
			}
			if err := tx.Create(&leave).Error; err != nil {
				return fmt.Errorf("failed to log leave: %w", err)
			}
		}
		if roomID != nil {
			enter := model.PresenceHistoryEntry{
				PractitionerID: u.PractitionerID,
				VisitDate:      u.VisitDate,
				ScheduleID:     u.ScheduleID,
				RoomID:         roomID,
				NetworkAddress: u.NetworkAddress,
				SessionID:      u.SessionID,
				EventType:      model.PresenceEventEnter,
				OccurredAt:     now,
			}
			if err := tx.Create(&enter).Error; err != nil {
				return fmt.Errorf("failed to log enter: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("presence update failed for practitioner %d: %w", u.PractitionerID, err)
	}
	if !owned {
		return nil, nil
	}
	return room, nil
}

func fetchPresence(tx *gorm.DB, practitionerID int64, visitDate string) (model.PractitionerPresence, bool, error) {
	var row model.PractitionerPresence
	err := tx.Where("practitioner_id = ? AND visit_date = ?", practitionerID, visitDate).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("failed to read presence row: %w", err)
	}
	return row, true, nil
}

func upsertPresence(tx *gorm.DB, u PresenceUpdate, roomID *string, now time.Time) error {
	row := model.PractitionerPresence{
		PractitionerID: u.PractitionerID,
		VisitDate:      u.VisitDate,
		ScheduleID:     u.ScheduleID,
		CurrentRoomID:  roomID,
		NetworkAddress: u.NetworkAddress,
		LastSeenAt:     now,
		OwnerSessionID: u.SessionID,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: presenceConflict,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"schedule_id":      u.ScheduleID,
			"current_room_id":  roomID,
			"network_address":  u.NetworkAddress,
			"last_seen_at":     now,
			"owner_session_id": u.SessionID,
			"updated_at":       now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert presence row: %w", err)
	}
	return nil
}

func roomIDOf(room *model.RoomAddressMapping) *string {
	if room == nil {
		return nil
	}
	id := room.RoomID
	return &id
}

func sameRoom(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
