package schedule

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

var scheduleTracer = otel.Tracer("secretaria.internal.schedule")

// Service keeps the appointment list in process memory behind one mutex, so
// check-then-insert is a single reserve-if-free section and concurrent chat
// sessions sharing the calendar cannot double-book.
//
// Conflicts are scoped globally per (date, hour): one shared calendar, doctor
// is not a disambiguating key.
type Service struct {
	logger *logging.Logger

	mu           sync.Mutex
	appointments []*Appointment
}

// NewService creates an empty in-memory scheduler.
func NewService(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{logger: logger}
}

// IsFree reports whether no appointment occupies (date, hour).
func (s *Service) IsFree(ctx context.Context, date, hour string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFreeLocked(date, hour, 0), nil
}

// isFreeLocked scans appointments for a conflict. Linear over all
// appointments, which is fine at single-clinic volume. exceptID lets
// reschedule ignore the record being moved.
func (s *Service) isFreeLocked(date, hour string, exceptID int) bool {
	for _, a := range s.appointments {
		if a.ID == exceptID && exceptID != 0 {
			continue
		}
		if a.Date == date && a.Hour == hour {
			return false
		}
	}
	return true
}

// FreeSlots returns the daily template minus hours booked on date.
func (s *Service) FreeSlots(ctx context.Context, date string) ([]Slot, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}

	s.mu.Lock()
	booked := make(map[string]struct{}, len(s.appointments))
	for _, a := range s.appointments {
		if a.Date == date {
			booked[a.Hour] = struct{}{}
		}
	}
	s.mu.Unlock()

	free := make([]Slot, 0, len(AllSlots()))
	for _, slot := range AllSlots() {
		if _, taken := booked[string(slot)]; !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Book reserves the requested slot. The conflict check and the append happen
// under the same lock.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("schedule.date", req.Date),
		attribute.String("schedule.hour", req.Hour),
	)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isFreeLocked(req.Date, req.Hour, 0) {
		span.RecordError(ErrSlotTaken)
		return nil, ErrSlotTaken
	}

	appt := &Appointment{
		ID:      s.nextIDLocked(),
		Doctor:  req.Doctor,
		Patient: req.Patient,
		Date:    req.Date,
		Hour:    req.Hour,
		Status:  StatusConfirmed,
	}
	s.appointments = append(s.appointments, appt)

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor", appt.Doctor,
		"date", appt.Date,
		"hour", appt.Hour,
	)
	cloned := *appt
	return &cloned, nil
}

// nextIDLocked assigns max existing id + 1, starting at 1. Ids are strictly
// increasing and never reused because appointments are never deleted.
func (s *Service) nextIDLocked() int {
	max := 0
	for _, a := range s.appointments {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

// Reschedule moves appointment id to (newDate, newHour) after re-running the
// conflict check. The record's own slot is excluded from the check, so moving
// an appointment onto its current slot is a no-op success.
func (s *Service) Reschedule(ctx context.Context, id int, newDate, newHour string) (*Appointment, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.reschedule")
	defer span.End()
	span.SetAttributes(attribute.Int("schedule.appointment_id", id))

	if !ValidDate(newDate) {
		return nil, ErrInvalidDate
	}
	if !ValidHour(newHour) {
		return nil, ErrInvalidHour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var appt *Appointment
	for _, a := range s.appointments {
		if a.ID == id {
			appt = a
			break
		}
	}
	if appt == nil {
		span.RecordError(ErrNotFound)
		return nil, ErrNotFound
	}

	if !s.isFreeLocked(newDate, newHour, id) {
		span.RecordError(ErrSlotTaken)
		return nil, ErrSlotTaken
	}

	appt.Date = newDate
	appt.Hour = newHour

	s.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID,
		"date", newDate,
		"hour", newHour,
	)
	cloned := *appt
	return &cloned, nil
}

// Appointments returns a snapshot in creation order.
func (s *Service) Appointments(ctx context.Context) ([]*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		cloned := *a
		out = append(out, &cloned)
	}
	return out, nil
}
