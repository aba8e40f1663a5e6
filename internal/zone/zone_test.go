package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestClassifier() *Classifier {
	return NewClassifier(
		[]string{"waiting-room-"},
		[]string{"reception"},
		[]string{"room-101", "room-102", "room-103"},
	)
}

func TestClassify(t *testing.T) {
	c := newTestClassifier()

	testCases := []struct {
		name         string
		raw          string
		expectedKind Kind
		expectedStat Status
	}{
		{
			name:         "Outside",
			raw:          "outside",
			expectedKind: KindOutside,
			expectedStat: StatusScheduled,
		},
		{
			name:         "Waiting room by prefix",
			raw:          "waiting-room-inf",
			expectedKind: KindWaiting,
			expectedStat: StatusArrived,
		},
		{
			name:         "Second waiting room",
			raw:          "waiting-room-ost",
			expectedKind: KindWaiting,
			expectedStat: StatusArrived,
		},
		{
			name:         "Reception",
			raw:          "reception",
			expectedKind: KindReception,
			expectedStat: StatusArrived,
		},
		{
			name:         "Treatment room",
			raw:          "room-103",
			expectedKind: KindTreatment,
			expectedStat: StatusInProgress,
		},
		{
			name:         "Unknown zone falls back to scheduled",
			raw:          "broom-closet",
			expectedKind: KindOther,
			expectedStat: StatusScheduled,
		},
		{
			name:         "Unknown room code falls back to scheduled",
			raw:          "room-999",
			expectedKind: KindOther,
			expectedStat: StatusScheduled,
		},
		{
			name:         "Empty string",
			raw:          "",
			expectedKind: KindOther,
			expectedStat: StatusScheduled,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cl := c.Classify(tc.raw)
			assert.Equal(t, tc.expectedKind, cl.Kind)
			assert.Equal(t, tc.raw, cl.Raw)
			assert.Equal(t, tc.expectedStat, cl.Status())
			assert.Equal(t, tc.expectedStat, c.StatusFor(tc.raw))
		})
	}
}

func TestImpliesArrival(t *testing.T) {
	assert.False(t, ImpliesArrival(StatusScheduled))
	assert.True(t, ImpliesArrival(StatusArrived))
	assert.True(t, ImpliesArrival(StatusInProgress))
	assert.True(t, ImpliesArrival(StatusCompleted))
	assert.False(t, ImpliesArrival(StatusNoShow))
}
