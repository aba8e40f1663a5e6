package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"clinic-presence-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering patient-arrived alerts
// to practitioners' subscribed browser clients.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case appointmentID := <-wp.jobs:
			wp.notifyArrival(ctx, appointmentID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an arrival notification for an appointment.
func (wp *WorkerPool) Dispatch(appointmentID int64) {
	wp.jobs <- appointmentID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// notifyArrival looks up the appointment's practitioner and pushes to
// every subscription following that practitioner.
func (wp *WorkerPool) notifyArrival(ctx context.Context, appointmentID int64) {
	var appointment model.Appointment
	err := wp.db.WithContext(ctx).First(&appointment, appointmentID).Error
	if err != nil {
		// The zone core never validates appointment IDs, so the mirror
		// may simply not have this one yet.
		log.Printf("No mirrored appointment %d, skipping arrival notification: %v", appointmentID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err = wp.db.WithContext(ctx).
		Joins("JOIN subscription_practitioners sp ON sp.endpoint = push_subscriptions.endpoint").
		Where("sp.practitioner_id = ?", appointment.PractitionerID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for practitioner %d: %v", appointment.PractitionerID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	patientLabel := appointment.PatientName
	if patientLabel == "" {
		patientLabel = fmt.Sprintf("appointment %d", appointmentID)
	}
	message := fmt.Sprintf("%s has arrived in the waiting room", patientLabel)

	log.Printf("Sending %d arrival notifications for appointment %d", len(subscriptions), appointmentID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionPractitioner{}).Error; err != nil {
			log.Printf("Failed to delete practitioner links for %s: %v", sub.Endpoint, err)
		}
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
