package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	msgs []EmailMessage
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestNotifyBooking(t *testing.T) {
	sender := &recordingSender{}
	n := NewBookingNotifier(sender, nil)

	err := n.NotifyBooking(context.Background(), Booking{
		TenantID:     "garage_michel",
		BusinessName: "Garage Michel",
		To:           "owner@example.com",
		CustomerName: "Paul",
		Date:         "2025-06-10",
		Time:         "14:00",
		CalendarLink: "https://calendar.google.com/event?eid=1",
	})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "Garage Michel", msg.ToName)
	assert.Equal(t, "New appointment: Paul on 2025-06-10 at 14:00", msg.Subject)
	assert.Contains(t, msg.Body, "Customer: Paul")
	assert.Contains(t, msg.Body, "https://calendar.google.com/event?eid=1")
}

func TestNotifyBookingSkipsWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, NewBookingNotifier(sender, nil).NotifyBooking(context.Background(), Booking{TenantID: "t"}))
	assert.Empty(t, sender.msgs)
}

func TestNotifyBookingWrapsSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("quota exceeded")}
	err := NewBookingNotifier(sender, nil).NotifyBooking(context.Background(), Booking{To: "owner@example.com"})
	assert.ErrorContains(t, err, "quota exceeded")
}
