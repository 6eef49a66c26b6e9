package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/session"
	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
)

const (
	replyCancelled       = "Okay, I've cancelled the current request. If you'd like to book, just give me another date and time."
	replyPast            = "That time has already passed. Please give me a date and time in the future."
	replyCheckFailed     = "I couldn't check our calendar just now. Please try again in a moment."
	replyCommitFailed    = "Sorry, I ran into a technical issue while saving your appointment. Your details are kept; reply YES to try again."
	replyTechnical       = "Sorry, something went wrong on my side. Please try again in a moment."
	replyBusy            = "I'm still working on your previous message. Please try again in a moment."
	replyFAQDisambiguate = "I can help with our opening hours, our address or our prices. What would you like to know?"
	replyHelp            = "I can answer questions (opening hours, address, prices) or book an appointment for you. What would you like to do?"
)

var fieldLabels = map[string]string{
	session.FieldName: "your name",
	session.FieldDate: `the date (YYYY-MM-DD, DD/MM or "tomorrow")`,
	session.FieldTime: "the time (HH:MM)",
}

func replyMissing(missing []string) string {
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, fieldLabels[f])
	}
	return "To book your appointment I need " + joinAnd(labels) + "."
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func replyOutsideHours(hours tenant.BusinessHours, date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return "We're closed at that time. Please pick another date or time."
	}
	day := hours.GetHoursForDay(d.Weekday())
	if day == nil {
		return fmt.Sprintf("We're closed on %ss. Our hours are %s. Please pick another date.",
			d.Weekday(), hours.Summary())
	}
	return fmt.Sprintf("We're closed at that hour. On %ss we're open %s-%s. Please pick another time.",
		d.Weekday(), day.Open, day.Close)
}

func replySlotTaken(alt string) string {
	if alt == "" {
		return "That slot is already taken and I couldn't find a free time shortly after it. Please suggest another date or time."
	}
	return fmt.Sprintf("That slot is already taken. Would %s work instead? Reply YES or give me another time.", alt)
}

func replySlotJustTaken(alt string) string {
	if alt == "" {
		return "Sorry, that slot was just taken by someone else. Please suggest another date or time."
	}
	return fmt.Sprintf("Sorry, that slot was just taken by someone else. Would %s work instead? Reply YES or give me another time.", alt)
}

func replyRecap(d session.Draft) string {
	return fmt.Sprintf("Let me recap: appointment for %s on %s at %s. Reply YES to confirm or CANCEL to stop.",
		d.Name, d.Date, d.Time)
}

func replyConfirmPrompt(d session.Draft) string {
	return fmt.Sprintf("Please reply YES to confirm your appointment for %s on %s at %s, or give me a new date or time. Reply CANCEL to stop.",
		d.Name, d.Date, d.Time)
}

func replyConfirmed(d session.Draft, businessName string) string {
	if businessName == "" {
		return fmt.Sprintf("Your appointment is confirmed for %s on %s at %s. See you then!", d.Name, d.Date, d.Time)
	}
	return fmt.Sprintf("Your appointment at %s is confirmed for %s on %s at %s. See you then!",
		businessName, d.Name, d.Date, d.Time)
}
