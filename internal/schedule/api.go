package schedule

// ApiAppointment models a single appointment record from the upstream
// scheduling system.
type ApiAppointment struct {
	ID             int64  `json:"id"`
	PractitionerID int64  `json:"practitionerId"`
	ScheduleID     string `json:"scheduleId"`
	PatientName    string `json:"patientName"`
	Date           string `json:"date"`      // YYYY-MM-DD
	StartTime      string `json:"startTime"` // RFC3339
}

// ApiResponse models the top-level structure of the upstream API's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int              `json:"page"`
		PageSize int              `json:"pageSize"`
		Total    int              `json:"total"`
		Items    []ApiAppointment `json:"items"`
	} `json:"data"`
}
