package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

func ids(list []domain.Order) []int64 {
	return lo.Map(list, func(o domain.Order, _ int) int64 { return o.ID })
}

func TestBulkAction_MarkProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 3)

	res, err := f.svc.BulkAction(ctx, ids(seeded), orders.ActionMarkProcessing, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Affected)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, "3 orders updated successfully", res.Message)

	for _, o := range seeded {
		details, err := f.svc.Get(ctx, o.ID, false)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusProcessing, details.Order.Status)
		assert.Equal(t, int64(1), details.Order.Version)
	}
}

func TestBulkAction_EmptySelectionTouchesNothing(t *testing.T) {
	f := newFixture(t)
	before := f.repo.calls.Load()

	for _, call := range []func() (orders.BulkResult, error){
		func() (orders.BulkResult, error) {
			return f.svc.BulkAction(context.Background(), nil, orders.ActionMarkPaid, admin)
		},
		func() (orders.BulkResult, error) { return f.svc.BulkDelete(context.Background(), []int64{}, admin) },
		func() (orders.BulkResult, error) { return f.svc.BulkRestore(context.Background(), nil, admin) },
		func() (orders.BulkResult, error) { return f.svc.BulkPermanentDelete(context.Background(), nil, admin) },
	} {
		_, err := call()
		require.ErrorIs(t, err, domain.ErrEmptySelection)
		require.True(t, domain.IsInvalidInput(err))
	}

	assert.Equal(t, before, f.repo.calls.Load())
}

func TestBulkAction_SkipsMissingAndTrashed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 3)
	f.trash(t, seeded[2].ID)

	selection := []int64{seeded[0].ID, seeded[1].ID, seeded[2].ID, 9999, seeded[0].ID}
	res, err := f.svc.BulkAction(ctx, selection, orders.ActionMarkPaid, admin)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, 2, res.Skipped)

	trashed, err := f.svc.Get(ctx, seeded[2].ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, trashed.Order.PaymentStatus)
}

func TestBulkAction_PerOrderSemantics(t *testing.T) {
	tests := []struct {
		action orders.Action
		check  func(t *testing.T, o domain.Order)
	}{
		{orders.ActionMarkShipped, func(t *testing.T, o domain.Order) {
			assert.Equal(t, domain.OrderStatusShipped, o.Status)
			assert.Regexp(t, trackingPattern, o.TrackingNumber)
		}},
		{orders.ActionMarkDelivered, func(t *testing.T, o domain.Order) {
			assert.Equal(t, domain.OrderStatusDelivered, o.Status)
			require.NotNil(t, o.ActualDelivery)
		}},
		{orders.ActionMarkPaid, func(t *testing.T, o domain.Order) {
			assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
		}},
		{orders.ActionAssignMe, func(t *testing.T, o domain.Order) {
			assert.Equal(t, admin.Name, o.AssignedTo)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			seeded := f.seed(t, 2)

			res, err := f.svc.BulkAction(ctx, ids(seeded), tt.action, admin)
			require.NoError(t, err)
			require.Equal(t, 2, res.Affected)

			for _, o := range seeded {
				details, err := f.svc.Get(ctx, o.ID, false)
				require.NoError(t, err)
				tt.check(t, details.Order)
			}
		})
	}
}

func TestBulkAction_ShipKeepsExistingTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 2)

	edit := orders.EditFromOrder(seeded[0])
	edit.TrackingNumber = "EXISTING"
	_, err := f.svc.ApplyTransition(ctx, seeded[0].ID, edit, orders.ActionSave, admin)
	require.NoError(t, err)

	_, err = f.svc.BulkAction(ctx, ids(seeded), orders.ActionMarkShipped, admin)
	require.NoError(t, err)

	first, err := f.svc.Get(ctx, seeded[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, "EXISTING", first.Order.TrackingNumber)
}

func TestBulkAction_UnknownActionIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 2)

	res, err := f.svc.BulkAction(ctx, ids(seeded), orders.Action("paint-green"), admin)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
	assert.Equal(t, "0 orders updated successfully", res.Message)

	for _, o := range seeded {
		details, err := f.svc.Get(ctx, o.ID, false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), details.Order.Version)
	}
}

func TestBulkAction_ExportSelectedReturnsIDs(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, 2)

	res, err := f.svc.BulkAction(context.Background(), ids(seeded), orders.ActionExportSelected, admin)
	require.NoError(t, err)
	assert.Equal(t, ids(seeded), res.ExportIDs)
	assert.Equal(t, 0, res.Affected)
}

func TestBulkAction_FailureLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 3)
	f.repo.failSaveBy = errors.New("connection reset")

	_, err := f.svc.BulkAction(ctx, ids(seeded), orders.ActionMarkProcessing, admin)
	require.Error(t, err)
	assert.True(t, domain.IsStorageFailure(err))

	f.repo.failSaveBy = nil
	for _, o := range seeded {
		details, err := f.svc.Get(ctx, o.ID, false)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPending, details.Order.Status)
	}
}

func TestBulkDeleteRestorePurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seed(t, 3)
	selection := ids(seeded)

	deleted, err := f.svc.BulkDelete(ctx, selection[:2], admin)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.Affected)
	assert.Equal(t, "2 orders moved to trash", deleted.Message)

	restored, err := f.svc.BulkRestore(ctx, selection, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Affected)
	assert.Equal(t, 1, restored.Skipped)
	assert.Equal(t, "2 orders restored", restored.Message)

	_, err = f.svc.BulkDelete(ctx, selection[:1], admin)
	require.NoError(t, err)

	purged, err := f.svc.BulkPermanentDelete(ctx, selection, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, purged.Affected)
	assert.Equal(t, 2, purged.Skipped)

	all, err := f.svc.List(ctx, domain.OrderFilter{Scope: domain.ScopeAll})
	require.NoError(t, err)
	assert.ElementsMatch(t, selection[1:], ids(all))
}
