package schedule

import "context"

// StatusConfirmed is the only appointment status; cancellation is not modeled.
const StatusConfirmed = "confirmed"

// Appointment is a confirmed consultation occupying one slot on the shared
// clinic calendar.
type Appointment struct {
	ID      int    `json:"id"`
	Doctor  string `json:"doctor"`
	Patient string `json:"patient"`
	Date    string `json:"date"` // YYYY-MM-DD
	Hour    string `json:"hour"` // HH:MM, on the template grid
	Status  string `json:"status"`

	// EventID is set by calendar-backed schedulers (the provider's event key).
	EventID string `json:"event_id,omitempty"`
}

// BookingRequest carries the fields needed to reserve a slot.
type BookingRequest struct {
	Doctor  string `json:"doctor"`
	Patient string `json:"patient"`
	Date    string `json:"date"`
	Hour    string `json:"hour"`
}

// Validate checks required fields and formats before any slot is touched.
func (r BookingRequest) Validate() error {
	if r.Doctor == "" {
		return ErrDoctorRequired
	}
	if r.Patient == "" {
		return ErrPatientRequired
	}
	if !ValidDate(r.Date) {
		return ErrInvalidDate
	}
	if !ValidHour(r.Hour) {
		return ErrInvalidHour
	}
	return nil
}

// Scheduler is the booking surface the conversation loop talks to. The
// in-memory Service and the Google Calendar service both implement it.
type Scheduler interface {
	// IsFree reports whether the (date, hour) slot has no appointment.
	IsFree(ctx context.Context, date, hour string) (bool, error)

	// FreeSlots returns the daily template minus booked hours for date,
	// preserving template order. A fully booked day yields an empty slice,
	// not an error.
	FreeSlots(ctx context.Context, date string) ([]Slot, error)

	// Book reserves the requested slot if it is free. Returns ErrSlotTaken
	// on conflict; no alternate slot is suggested.
	Book(ctx context.Context, req BookingRequest) (*Appointment, error)

	// Reschedule moves an existing appointment to a new slot after a fresh
	// conflict check. The old slot is freed implicitly because the record
	// occupies exactly one slot.
	Reschedule(ctx context.Context, id int, newDate, newHour string) (*Appointment, error)

	// Appointments returns a snapshot of all appointments in creation order.
	Appointments(ctx context.Context) ([]*Appointment, error)
}
