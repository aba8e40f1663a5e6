package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"clinic-presence-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(
		&model.Appointment{},
		&model.PushSubscription{},
		&model.SubscriptionPractitioner{},
	))
	return gormDB
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&model.Appointment{
		ID: 101, PractitionerID: 7, PatientName: "M. Dupont", VisitDate: "2025-01-10",
	}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://push.example/osteo7", P256DH: "p", Auth: "a",
	}).Error)
	require.NoError(t, db.Create(&model.SubscriptionPractitioner{
		Endpoint: "https://push.example/osteo7", PractitionerID: 7,
	}).Error)
}

func okResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestNotifyArrival(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	var sent []string
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent = append(sent, string(payload))
			assert.Equal(t, "https://push.example/osteo7", sub.Endpoint)
			return okResponse(http.StatusCreated), nil
		},
	}

	wp.notifyArrival(context.Background(), 101)

	require.Len(t, sent, 1)
	assert.Equal(t, "M. Dupont has arrived in the waiting room", sent[0])
}

func TestNotifyArrivalUnknownAppointment(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	called := false
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			called = true
			return okResponse(http.StatusCreated), nil
		},
	}

	// The zone core never validates IDs; an unmirrored appointment just
	// produces no notification.
	wp.notifyArrival(context.Background(), 999)
	assert.False(t, called)
}

func TestExpiredSubscriptionIsPruned(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return okResponse(http.StatusGone), nil
		},
	}

	wp.notifyArrival(context.Background(), 101)

	var count int64
	require.NoError(t, db.Model(&model.PushSubscription{}).Count(&count).Error)
	assert.Zero(t, count, "410 from the push service removes the subscription")
	require.NoError(t, db.Model(&model.SubscriptionPractitioner{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDispatchFeedsWorker(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			wg.Done()
			return okResponse(http.StatusCreated), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(101)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never processed the dispatched job")
	}
}
