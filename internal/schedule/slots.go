package schedule

import "time"

// Slot is one half-hour label on the daily template ("HH:MM").
type Slot string

// Daily template bounds. The clinic takes patients from 08:00 with the last
// slot starting at 17:30, in 30 minute steps.
const (
	openingHour  = 8
	closingHour  = 18
	SlotInterval = 30 * time.Minute

	dateLayout = "2006-01-02"
	hourLayout = "15:04"
)

// AllSlots returns the fixed daily template in chronological order. The
// template is regenerated on every call; availability is always computed as
// a set difference against booked hours, never stored.
func AllSlots() []Slot {
	slots := make([]Slot, 0, (closingHour-openingHour)*2)
	day := time.Date(0, 1, 1, openingHour, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, closingHour, 0, 0, 0, time.UTC)
	for t := day; t.Before(end); t = t.Add(SlotInterval) {
		slots = append(slots, Slot(t.Format(hourLayout)))
	}
	return slots
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ValidHour reports whether s is an hour on the daily template grid.
func ValidHour(s string) bool {
	for _, slot := range AllSlots() {
		if string(slot) == s {
			return true
		}
	}
	return false
}
