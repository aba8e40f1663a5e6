package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/model"
	"clinic-presence-backend/internal/store"
)

// Service mirrors the external scheduling system into the local
// appointments table so the floor-plan poll can show patient names and
// start times. The tracking core itself never depends on the mirror
// being complete; it references appointments by ID only.
type Service struct {
	cfg    *config.Config
	store  store.Store
	client *http.Client
}

// NewService creates and initializes a new schedule sync service.
func NewService(cfg *config.Config, s store.Store) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.Schedule.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.Schedule.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Sync will not use a proxy.", cfg.Schedule.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Run starts the sync process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Schedule.Enabled {
		log.Println("Schedule sync is disabled. Not starting.")
		return
	}
	log.Println("Starting schedule sync service...")

	s.SyncOnce(ctx)

	timer := time.NewTimer(s.cfg.Schedule.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Schedule sync service shutting down.")
			return
		case <-timer.C:
			s.SyncOnce(ctx)
			timer.Reset(s.cfg.Schedule.Interval)
		}
	}
}

// SyncOnce performs a single paged fetch from the upstream scheduling
// system and upserts the appointment mirror.
func (s *Service) SyncOnce(ctx context.Context) {
	log.Println("Executing schedule sync cycle...")

	var allItems []ApiAppointment
	total := 1
	pageSize := s.cfg.Schedule.Request.PageSize
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Printf("Error fetching schedule page %d: %v", page, err)
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
	}

	if len(allItems) == 0 {
		log.Println("Schedule sync cycle finished: no appointments to mirror.")
		return
	}

	appointments := make([]model.Appointment, 0, len(allItems))
	for _, item := range allItems {
		appointment, err := s.toModel(item)
		if err != nil {
			log.Printf("Skipping appointment %d: %v", item.ID, err)
			continue
		}
		appointments = append(appointments, appointment)
	}

	if err := s.store.UpsertAppointments(ctx, appointments); err != nil {
		log.Printf("Error upserting appointment mirror: %v", err)
		return
	}
	log.Printf("Schedule sync cycle finished: mirrored %d appointments.", len(appointments))
}

// toModel validates an upstream record and converts it into a mirror row.
func (s *Service) toModel(item ApiAppointment) (model.Appointment, error) {
	if item.ID == 0 {
		return model.Appointment{}, fmt.Errorf("missing appointment id")
	}
	if _, err := time.Parse("2006-01-02", item.Date); err != nil {
		return model.Appointment{}, fmt.Errorf("invalid date %q: %w", item.Date, err)
	}

	var startsAt time.Time
	if item.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, item.StartTime)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("invalid startTime %q: %w", item.StartTime, err)
		}
		startsAt = parsed
	}

	return model.Appointment{
		ID:             item.ID,
		PractitionerID: item.PractitionerID,
		ScheduleID:     item.ScheduleID,
		PatientName:    item.PatientName,
		VisitDate:      item.Date,
		StartsAt:       startsAt,
	}, nil
}

// fetchPage fetches a single page of appointments from the upstream API.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Schedule.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Schedule.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range s.cfg.Schedule.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
