package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	number := NewOrderNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260315-[0-9a-f]{16}$`), number)

	// 随机后缀不重复
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := NewOrderNumber(now)
		require.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}

func TestOrderCancel(t *testing.T) {
	tests := []struct {
		status  Status
		wantErr error
	}{
		{StatusPending, nil},
		{StatusPaid, nil},
		{StatusProcessing, ErrNotCancellable},
		{StatusShipped, ErrNotCancellable},
		{StatusDelivered, ErrNotCancellable},
		{StatusCancelled, ErrNotCancellable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			order := &Order{Status: tt.status}
			err := order.Cancel()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.status, order.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, StatusCancelled, order.Status)
			}
		})
	}
}

func TestOrderCancelTwiceFails(t *testing.T) {
	order := &Order{Status: StatusPending}
	require.NoError(t, order.Cancel())
	assert.ErrorIs(t, order.Cancel(), ErrNotCancellable)
}

func TestOrderChangeStatusTransitions(t *testing.T) {
	now := time.Now()

	tests := []struct {
		from    Status
		to      Status
		wantErr error
	}{
		{StatusPending, StatusPaid, nil},
		{StatusPending, StatusCancelled, nil},
		{StatusPending, StatusProcessing, ErrInvalidTransition},
		{StatusPending, StatusShipped, ErrInvalidTransition},
		{StatusPaid, StatusProcessing, nil},
		{StatusPaid, StatusShipped, nil},
		{StatusPaid, StatusCancelled, nil},
		{StatusProcessing, StatusShipped, nil},
		{StatusProcessing, StatusDelivered, ErrInvalidTransition},
		{StatusShipped, StatusDelivered, nil},
		{StatusDelivered, StatusShipped, ErrInvalidTransition},
		{StatusCancelled, StatusPaid, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			order := &Order{Status: tt.from}
			err := order.ChangeStatus(tt.to, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, order.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, order.Status)
			}
		})
	}
}

func TestOrderChangeStatusUnknownTarget(t *testing.T) {
	order := &Order{Status: StatusPending}
	err := order.ChangeStatus(Status("EXPLODED"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrderChangeStatusTimestampsSetOnce(t *testing.T) {
	first := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	order := &Order{Status: StatusPaid}
	require.NoError(t, order.ChangeStatus(StatusShipped, first))
	require.NotNil(t, order.ShippedAt)
	assert.Equal(t, first, *order.ShippedAt)

	// 重入同一状态不报错也不覆盖时间戳
	require.NoError(t, order.ChangeStatus(StatusShipped, later))
	assert.Equal(t, first, *order.ShippedAt)

	require.NoError(t, order.ChangeStatus(StatusDelivered, later))
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, later, *order.DeliveredAt)
}

func TestOrderBeginPayment(t *testing.T) {
	order := &Order{
		PaymentStatus: PaymentPending,
		TotalAmount:   decimal.RequireFromString("104.00"),
	}

	err := order.BeginPayment("pi_123", "pix",
		decimal.RequireFromString("0.99"), decimal.RequireFromString("100.99"))
	require.NoError(t, err)
	assert.Equal(t, "pi_123", order.PaymentIntentID)
	assert.Equal(t, "pix", order.PaymentMethod)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("100.99")))

	// 已有进行中的支付时拒绝
	err = order.BeginPayment("pi_456", "pix", decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrPaymentAlreadyInProgress)
}

func TestOrderBeginPaymentBlockedAfterCompletion(t *testing.T) {
	order := &Order{PaymentStatus: PaymentCompleted}
	err := order.BeginPayment("pi_123", "pix", decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrPaymentAlreadyInProgress)
}

func TestOrderCompletePaymentIdempotent(t *testing.T) {
	first := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	order := &Order{PaymentStatus: PaymentPending}
	order.CompletePayment(first)
	assert.Equal(t, PaymentCompleted, order.PaymentStatus)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, first, *order.PaidAt)

	order.CompletePayment(later)
	assert.Equal(t, PaymentCompleted, order.PaymentStatus)
	assert.Equal(t, first, *order.PaidAt)
}

func TestOrderFailPaymentDoesNotRevertCompleted(t *testing.T) {
	order := &Order{PaymentStatus: PaymentPending}
	order.FailPayment()
	assert.Equal(t, PaymentFailed, order.PaymentStatus)

	order.PaymentStatus = PaymentCompleted
	order.FailPayment()
	assert.Equal(t, PaymentCompleted, order.PaymentStatus)
}

func TestOrderApplyRefund(t *testing.T) {
	total := decimal.RequireFromString("100.00")

	order := &Order{PaymentStatus: PaymentCompleted, TotalAmount: total}
	require.NoError(t, order.ApplyRefund(total))
	assert.Equal(t, PaymentRefunded, order.PaymentStatus)

	order = &Order{PaymentStatus: PaymentCompleted, TotalAmount: total}
	require.NoError(t, order.ApplyRefund(decimal.RequireFromString("40.00")))
	assert.Equal(t, PaymentPartiallyRefunded, order.PaymentStatus)

	// 部分退款后不可再次退款
	assert.ErrorIs(t, order.ApplyRefund(decimal.RequireFromString("10.00")), ErrRefundNotEligible)
}

func TestOrderApplyRefundValidation(t *testing.T) {
	total := decimal.RequireFromString("100.00")

	order := &Order{PaymentStatus: PaymentPending, TotalAmount: total}
	assert.ErrorIs(t, order.ApplyRefund(total), ErrRefundNotEligible)

	order = &Order{PaymentStatus: PaymentCompleted, TotalAmount: total}
	assert.ErrorIs(t, order.ApplyRefund(decimal.Zero), ErrInvalidRefundAmount)
	assert.ErrorIs(t, order.ApplyRefund(decimal.RequireFromString("100.01")), ErrInvalidRefundAmount)
}
