package tracking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/tracking"
)

func stepStates(steps []tracking.Step) []tracking.StepState {
	states := make([]tracking.StepState, 0, len(steps))
	for _, s := range steps {
		states = append(states, s.State)
	}
	return states
}

func TestTimeline_DerivedDates(t *testing.T) {
	placed := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	order := domain.Order{OrderDate: placed}

	steps := tracking.Timeline(order, placed.Add(30*time.Minute))
	require.Len(t, steps, 6)

	titles := []string{"Order Placed", "Order Confirmed", "Processing", "Shipped", "Out for Delivery", "Delivered"}
	dates := []time.Time{placed, placed.Add(time.Hour), placed.AddDate(0, 0, 1), placed.AddDate(0, 0, 2), placed.AddDate(0, 0, 3), placed.AddDate(0, 0, 3)}
	for i, step := range steps {
		assert.Equal(t, titles[i], step.Title)
		assert.True(t, dates[i].Equal(step.Date), "step %q date %s", step.Title, step.Date)
	}

	assert.Equal(t, []tracking.StepState{
		tracking.StepCompleted, tracking.StepPending, tracking.StepPending,
		tracking.StepPending, tracking.StepPending, tracking.StepPending,
	}, stepStates(steps))
	assert.Equal(t, "Your order has been shipped", steps[3].Description)
	assert.Equal(t, "Expected delivery", steps[5].Description)
}

func TestTimeline_StepCompletesAtItsDate(t *testing.T) {
	placed := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	steps := tracking.Timeline(domain.Order{OrderDate: placed}, placed.Add(time.Hour))
	assert.Equal(t, tracking.StepCompleted, steps[1].State)
}

func TestTimeline_ShippedWithTracking(t *testing.T) {
	placed := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	estimated := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	order := domain.Order{
		OrderDate:         placed,
		TrackingNumber:    "TRK202403010900001234",
		ShippingCarrier:   "PostNet",
		EstimatedDelivery: &estimated,
	}

	steps := tracking.Timeline(order, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "Shipped via PostNet", steps[3].Description)
	assert.Equal(t, "TRK202403010900001234", steps[3].TrackingNumber)
	assert.True(t, estimated.Equal(steps[4].Date))
	assert.True(t, estimated.Equal(steps[5].Date))
	assert.Equal(t, []tracking.StepState{
		tracking.StepCompleted, tracking.StepCompleted, tracking.StepCompleted,
		tracking.StepCompleted, tracking.StepPending, tracking.StepPending,
	}, stepStates(steps))
}

func TestTimeline_DeliveredOnlyWithActualDate(t *testing.T) {
	placed := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	now := placed.AddDate(0, 1, 0)

	pending := tracking.Timeline(domain.Order{OrderDate: placed}, now)
	assert.Equal(t, tracking.StepCompleted, pending[4].State)
	assert.Equal(t, tracking.StepPending, pending[5].State)

	actual := time.Date(2024, time.March, 5, 14, 0, 0, 0, time.UTC)
	delivered := tracking.Timeline(domain.Order{OrderDate: placed, ActualDelivery: &actual}, now)
	assert.Equal(t, tracking.StepCompleted, delivered[5].State)
	assert.Equal(t, "Delivered on 05 Mar 2024", delivered[5].Description)
	assert.True(t, actual.Equal(delivered[5].Date))
}
