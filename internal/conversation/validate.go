package conversation

import (
	"regexp"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
)

// PastGrace absorbs the round trip between the user typing a time and the
// booking being checked.
const PastGrace = 2 * time.Minute

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe   = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// IsValidDate reports whether s is YYYY-MM-DD and a real calendar date.
func IsValidDate(s string) bool {
	if !isoDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// IsValidTime reports whether s is HH:MM with hour 00-23 and minute 00-59.
func IsValidTime(s string) bool {
	if !clockRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(timeLayout, s)
	return err == nil
}

// slotTime combines date and time in loc. ok is false on malformed input.
func slotTime(date, tm string, loc *time.Location) (time.Time, bool) {
	if !IsValidDate(date) || !IsValidTime(tm) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+tm, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsPast reports whether the slot, read in now's location, starts before
// now+PastGrace. Malformed input is never past.
func IsPast(date, tm string, now time.Time) bool {
	t, ok := slotTime(date, tm, now.Location())
	if !ok {
		return false
	}
	return t.Before(now.Add(PastGrace))
}

// InOpeningHours reports whether tm falls inside the opening hours of date's
// weekday, both bounds inclusive. Closed days and malformed input are false.
func InOpeningHours(hours tenant.BusinessHours, date, tm string) bool {
	if !IsValidDate(date) || !IsValidTime(tm) {
		return false
	}
	d, _ := time.Parse(dateLayout, date)
	slot := hours.GetHoursForDay(d.Weekday())
	if slot == nil || !IsValidTime(slot.Open) || !IsValidTime(slot.Close) {
		return false
	}
	// Zero-padded HH:MM strings order the same way as the times they encode.
	return slot.Open <= tm && tm <= slot.Close
}
