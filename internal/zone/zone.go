package zone

import "strings"

// Status is the coarse appointment status derived from a patient's zone.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
)

// Kind classifies a zone identifier. Zone identifiers are open-ended,
// operator-configured strings, so Other carries anything unrecognized
// rather than rejecting it.
type Kind string

const (
	KindOutside   Kind = "outside"
	KindWaiting   Kind = "waiting"
	KindReception Kind = "reception"
	KindTreatment Kind = "treatment"
	KindOther     Kind = "other"
)

// ZoneOutside is the only zone identifier with fixed, non-configurable
// meaning: the patient has not entered the clinic.
const ZoneOutside = "outside"

// Classification is the result of classifying a raw zone string. Raw is
// preserved so unknown zones remain representable.
type Classification struct {
	Kind Kind
	Raw  string
}

// Classifier maps raw zone identifiers to kinds based on the
// administrator-configured room lists.
type Classifier struct {
	waitingPrefixes []string
	receptionZones  map[string]struct{}
	treatmentCodes  map[string]struct{}
}

// NewClassifier builds a classifier from the configured waiting-room
// prefixes, reception zone names and treatment-room codes.
func NewClassifier(waitingPrefixes, receptionZones, treatmentCodes []string) *Classifier {
	c := &Classifier{
		waitingPrefixes: waitingPrefixes,
		receptionZones:  make(map[string]struct{}, len(receptionZones)),
		treatmentCodes:  make(map[string]struct{}, len(treatmentCodes)),
	}
	for _, z := range receptionZones {
		c.receptionZones[z] = struct{}{}
	}
	for _, code := range treatmentCodes {
		c.treatmentCodes[code] = struct{}{}
	}
	return c
}

// Classify resolves a raw zone string to a Classification.
func (c *Classifier) Classify(raw string) Classification {
	if raw == ZoneOutside {
		return Classification{Kind: KindOutside, Raw: raw}
	}
	if _, ok := c.receptionZones[raw]; ok {
		return Classification{Kind: KindReception, Raw: raw}
	}
	for _, prefix := range c.waitingPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return Classification{Kind: KindWaiting, Raw: raw}
		}
	}
	if _, ok := c.treatmentCodes[raw]; ok {
		return Classification{Kind: KindTreatment, Raw: raw}
	}
	return Classification{Kind: KindOther, Raw: raw}
}

// StatusFor derives the appointment status implied by a zone. Unrecognized
// zones deliberately fall back to scheduled: room lists are operator-edited
// and a new room must not break patient tracking.
func (c *Classifier) StatusFor(raw string) Status {
	return c.Classify(raw).Status()
}

// Status maps a classification to its derived appointment status.
func (cl Classification) Status() Status {
	switch cl.Kind {
	case KindWaiting, KindReception:
		return StatusArrived
	case KindTreatment:
		return StatusInProgress
	default:
		return StatusScheduled
	}
}

// ImpliesArrival reports whether a status implies the patient has physically
// arrived at the clinic.
func ImpliesArrival(s Status) bool {
	switch s {
	case StatusArrived, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}
