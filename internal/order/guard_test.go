package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gospodar-shop/order-service/internal/order"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    order.Status
		to      order.Status
		source  order.ChangeSource
		allowed bool
	}{
		{"admin_forward_step", order.StatusNewOrder, order.StatusProcessing, order.SourceAdmin, true},
		{"admin_forward_skip", order.StatusNewOrder, order.StatusPaid, order.SourceAdmin, true},
		{"admin_full_pipeline_jump", order.StatusProcessing, order.StatusCompleted, order.SourceAdmin, true},
		{"admin_backward", order.StatusPaid, order.StatusProcessing, order.SourceAdmin, false},
		{"admin_cancel_new", order.StatusNewOrder, order.StatusCancelled, order.SourceAdmin, true},
		{"admin_cancel_shipped", order.StatusShipped, order.StatusCancelled, order.SourceAdmin, true},
		{"admin_cancel_cancelled", order.StatusCancelled, order.StatusCancelled, order.SourceAdmin, false},
		{"admin_cancel_returned", order.StatusReturned, order.StatusCancelled, order.SourceAdmin, false},
		{"admin_return_completed", order.StatusCompleted, order.StatusReturned, order.SourceAdmin, true},
		{"admin_return_shipped", order.StatusShipped, order.StatusReturned, order.SourceAdmin, false},
		{"admin_revive_cancelled", order.StatusCancelled, order.StatusProcessing, order.SourceAdmin, false},

		{"client_cancel_new", order.StatusNewOrder, order.StatusCancelled, order.SourceClient, true},
		{"client_cancel_paid", order.StatusPaid, order.StatusCancelled, order.SourceClient, true},
		{"client_cancel_completed", order.StatusCompleted, order.StatusCancelled, order.SourceClient, false},
		{"client_cancel_cancelled", order.StatusCancelled, order.StatusCancelled, order.SourceClient, false},
		{"client_ship_own_order", order.StatusConfirmed, order.StatusShipped, order.SourceClient, false},
		{"client_complete", order.StatusShipped, order.StatusCompleted, order.SourceClient, false},

		{"cron_cancel_stale", order.StatusNewOrder, order.StatusCancelled, order.SourceCron, true},
		{"cron_cancel_processing", order.StatusProcessing, order.StatusCancelled, order.SourceCron, false},
		{"cron_complete_shipped", order.StatusShipped, order.StatusCompleted, order.SourceCron, true},
		{"cron_complete_paid", order.StatusPaid, order.StatusCompleted, order.SourceCron, false},

		{"system_pay_new", order.StatusNewOrder, order.StatusPaid, order.SourceSystem, true},
		{"system_pay_processing", order.StatusProcessing, order.StatusPaid, order.SourceSystem, true},
		{"system_pay_confirmed", order.StatusConfirmed, order.StatusPaid, order.SourceSystem, true},
		{"system_pay_shipped", order.StatusShipped, order.StatusPaid, order.SourceSystem, false},
		{"system_pay_cancelled", order.StatusCancelled, order.StatusPaid, order.SourceSystem, false},
		{"system_ship", order.StatusPaid, order.StatusShipped, order.SourceSystem, false},

		{"same_status", order.StatusProcessing, order.StatusProcessing, order.SourceAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, order.CanTransition(tt.from, tt.to, tt.source))
		})
	}
}

// Terminal states must have no outgoing edges for any actor, except the
// admin-only completed → returned path.
func TestTerminalStatesHaveNoExits(t *testing.T) {
	statuses := []order.Status{
		order.StatusNewOrder, order.StatusProcessing, order.StatusConfirmed,
		order.StatusPaid, order.StatusShipped, order.StatusCompleted,
		order.StatusCancelled, order.StatusReturned,
	}
	sources := []order.ChangeSource{
		order.SourceAdmin, order.SourceClient, order.SourceCron, order.SourceSystem,
	}

	for _, from := range []order.Status{order.StatusCancelled, order.StatusReturned, order.StatusCompleted} {
		for _, to := range statuses {
			for _, src := range sources {
				if from == order.StatusCompleted && to == order.StatusReturned && src == order.SourceAdmin {
					continue
				}
				assert.False(t, order.CanTransition(from, to, src),
					"unexpected edge %s -> %s for %s", from, to, src)
			}
		}
	}
}

func TestGuardTransition(t *testing.T) {
	err := order.GuardTransition(order.StatusCompleted, order.StatusShipped, order.SourceAdmin)
	assert.Error(t, err)

	var oerr *order.Error
	assert.ErrorAs(t, err, &oerr)
	assert.Contains(t, oerr.Message, "not allowed")

	assert.NoError(t, order.GuardTransition(order.StatusNewOrder, order.StatusConfirmed, order.SourceAdmin))
}

func TestItemsEditable(t *testing.T) {
	assert.True(t, order.ItemsEditable(order.StatusNewOrder))
	assert.True(t, order.ItemsEditable(order.StatusProcessing))
	assert.False(t, order.ItemsEditable(order.StatusConfirmed))
	assert.False(t, order.ItemsEditable(order.StatusPaid))
	assert.False(t, order.ItemsEditable(order.StatusCancelled))
}
