package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// Booking is a committed appointment as reported to the business owner.
type Booking struct {
	TenantID     string
	BusinessName string
	To           string
	CustomerName string
	Date         string
	Time         string
	CalendarLink string
}

// BookingNotifier e-mails the owner about new bookings.
type BookingNotifier struct {
	sender EmailSender
	logger *logging.Logger
}

func NewBookingNotifier(sender EmailSender, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &BookingNotifier{sender: sender, logger: logger}
}

// NotifyBooking sends the owner e-mail. Tenants without a notify address are skipped.
func (n *BookingNotifier) NotifyBooking(ctx context.Context, b Booking) error {
	if strings.TrimSpace(b.To) == "" {
		n.logger.Debug("booking notification skipped: no recipient", "tenant_id", b.TenantID)
		return nil
	}
	if err := n.sender.Send(ctx, bookingEmail(b)); err != nil {
		return fmt.Errorf("notify: booking email: %w", err)
	}
	return nil
}

func bookingEmail(b Booking) EmailMessage {
	name := b.BusinessName
	if name == "" {
		name = b.TenantID
	}
	var body strings.Builder
	fmt.Fprintf(&body, "New appointment booked via the chat assistant.\n\n")
	fmt.Fprintf(&body, "Customer: %s\nDate: %s\nTime: %s\n", b.CustomerName, b.Date, b.Time)
	if b.CalendarLink != "" {
		fmt.Fprintf(&body, "\nCalendar event: %s\n", b.CalendarLink)
	}
	return EmailMessage{
		To:      b.To,
		ToName:  name,
		Subject: fmt.Sprintf("New appointment: %s on %s at %s", b.CustomerName, b.Date, b.Time),
		Body:    body.String(),
	}
}
