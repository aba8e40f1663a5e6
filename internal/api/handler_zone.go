package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/store"
	"clinic-presence-backend/internal/zone"
)

type setZoneRequest struct {
	AppointmentID  int64  `json:"appointment_id" binding:"required"`
	VisitDate      string `json:"visit_date"`
	PractitionerID int64  `json:"practitioner_id" binding:"required"`
	Zone           string `json:"zone" binding:"required"`
	ActorID        *int64 `json:"actor_id"`
}

type appointmentActionRequest struct {
	VisitDate      string `json:"visit_date"`
	PractitionerID int64  `json:"practitioner_id" binding:"required"`
	ActorID        *int64 `json:"actor_id"`
}

// zoneStateResponse is the flattened structure for zone-state responses.
type zoneStateResponse struct {
	AppointmentID  int64      `json:"appointmentId"`
	VisitDate      string     `json:"visitDate"`
	PractitionerID int64      `json:"practitionerId"`
	Zone           string     `json:"zone"`
	Status         string     `json:"status"`
	ArrivedAt      *time.Time `json:"arrivedAt"`
	StartedAt      *time.Time `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
	PatientName    string     `json:"patientName,omitempty"`
	StartsAt       *time.Time `json:"startsAt,omitempty"`
}

func zoneStateToResponse(s *model.AppointmentZoneState) zoneStateResponse {
	return zoneStateResponse{
		AppointmentID:  s.AppointmentID,
		VisitDate:      s.VisitDate,
		PractitionerID: s.PractitionerID,
		Zone:           s.Zone,
		Status:         s.Status,
		ArrivedAt:      s.ArrivedAt,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
	}
}

// SetZone handles POST /api/zone: a floor-plan drag of a patient into a
// new zone.
func (h *Handler) SetZone(c *gin.Context) {
	var req setZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	visitDate, ok := h.visitDay(req.VisitDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visit_date must be YYYY-MM-DD"})
		return
	}

	state, err := h.store.SetZone(c.Request.Context(), store.ZoneChange{
		AppointmentID:  req.AppointmentID,
		VisitDate:      visitDate,
		PractitionerID: req.PractitionerID,
		Zone:           req.Zone,
		ActorID:        req.ActorID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update zone"})
		return
	}
	c.JSON(http.StatusOK, zoneStateToResponse(state))
}

// MarkArrived handles POST /api/appointments/:id/arrive — the reception
// check-in path. Places the patient in the default waiting room.
func (h *Handler) MarkArrived(c *gin.Context) {
	appointmentID, req, visitDate, ok := h.bindAction(c)
	if !ok {
		return
	}

	state, err := h.store.MarkArrived(c.Request.Context(), store.ZoneChange{
		AppointmentID:  appointmentID,
		VisitDate:      visitDate,
		PractitionerID: req.PractitionerID,
		Zone:           h.zones.DefaultWaitingZone,
		ActorID:        req.ActorID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark arrival"})
		return
	}

	h.dispatchArrival(appointmentID)
	c.JSON(http.StatusOK, zoneStateToResponse(state))
}

// MarkNoShow handles POST /api/appointments/:id/no-show.
func (h *Handler) MarkNoShow(c *gin.Context) {
	appointmentID, req, visitDate, ok := h.bindAction(c)
	if !ok {
		return
	}

	if err := h.store.MarkNoShow(c.Request.Context(), appointmentID, visitDate, req.PractitionerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark no-show"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CancelArrival handles POST /api/appointments/:id/cancel-arrival. Only a
// currently-arrived appointment can revert; anything else is refused so an
// in-progress or completed record is never corrupted.
func (h *Handler) CancelArrival(c *gin.Context) {
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment ID"})
		return
	}
	var req struct {
		VisitDate string `json:"visit_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	visitDate, ok := h.visitDay(req.VisitDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visit_date must be YYYY-MM-DD"})
		return
	}

	reverted, err := h.store.CancelArrival(c.Request.Context(), appointmentID, visitDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel arrival"})
		return
	}
	if !reverted {
		c.JSON(http.StatusConflict, gin.H{"error": "appointment is not in arrived status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// StartConsultation handles POST /api/appointments/:id/start.
func (h *Handler) StartConsultation(c *gin.Context) {
	appointmentID, req, visitDate, ok := h.bindAction(c)
	if !ok {
		return
	}

	state, err := h.store.StartConsultation(c.Request.Context(), store.ZoneChange{
		AppointmentID:  appointmentID,
		VisitDate:      visitDate,
		PractitionerID: req.PractitionerID,
		ActorID:        req.ActorID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start consultation"})
		return
	}
	c.JSON(http.StatusOK, zoneStateToResponse(state))
}

// EndConsultation handles POST /api/appointments/:id/end.
func (h *Handler) EndConsultation(c *gin.Context) {
	appointmentID, req, visitDate, ok := h.bindAction(c)
	if !ok {
		return
	}

	state, err := h.store.EndConsultation(c.Request.Context(), store.ZoneChange{
		AppointmentID:  appointmentID,
		VisitDate:      visitDate,
		PractitionerID: req.PractitionerID,
		ActorID:        req.ActorID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end consultation"})
		return
	}
	c.JSON(http.StatusOK, zoneStateToResponse(state))
}

// GetZoneStates handles GET /api/zones?date= — the floor-plan poll. Zone
// states are merged with the appointment mirror; mirrored appointments
// with no zone row yet show as scheduled, outside the clinic.
func (h *Handler) GetZoneStates(c *gin.Context) {
	visitDate, ok := h.visitDay(c.Query("date"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	states, err := h.store.ZoneStatesForDay(c.Request.Context(), visitDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve zone states"})
		return
	}
	appointments, err := h.store.AppointmentsForDay(c.Request.Context(), visitDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve appointments"})
		return
	}

	stateMap := make(map[int64]model.AppointmentZoneState, len(states))
	for _, s := range states {
		stateMap[s.AppointmentID] = s
	}

	response := make([]zoneStateResponse, 0, len(appointments))
	seen := make(map[int64]bool, len(appointments))
	for _, a := range appointments {
		seen[a.ID] = true
		var entry zoneStateResponse
		if s, ok := stateMap[a.ID]; ok {
			entry = zoneStateToResponse(&s)
		} else {
			entry = zoneStateResponse{
				AppointmentID:  a.ID,
				VisitDate:      visitDate,
				PractitionerID: a.PractitionerID,
				Zone:           zone.ZoneOutside,
				Status:         string(zone.StatusScheduled),
			}
		}
		entry.PatientName = a.PatientName
		startsAt := a.StartsAt
		entry.StartsAt = &startsAt
		response = append(response, entry)
	}

	// Zone rows can exist for appointments the mirror has not synced yet.
	for _, s := range states {
		if !seen[s.AppointmentID] {
			response = append(response, zoneStateToResponse(&s))
		}
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) bindAction(c *gin.Context) (int64, appointmentActionRequest, string, bool) {
	var req appointmentActionRequest
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment ID"})
		return 0, req, "", false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, req, "", false
	}
	visitDate, ok := h.visitDay(req.VisitDate)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visit_date must be YYYY-MM-DD"})
		return 0, req, "", false
	}
	return appointmentID, req, visitDate, true
}
