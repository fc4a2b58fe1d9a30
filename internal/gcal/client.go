// Package gcal implements the scheduler against Google Calendar: conflict
// checks go through event listing in the slot window, bookings become
// calendar events, and reschedules update the event's start/end in place.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/lmvieira/secretaria-virtual/internal/schedule"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

var gcalTracer = otel.Tracer("secretaria.internal.gcal")

const defaultTimezone = "America/Sao_Paulo"

// Config carries the OAuth material and calendar selection.
type Config struct {
	ClientID     string
	ClientSecret string
	Token        string
	RefreshToken string
	CalendarID   string // defaults to "primary"
	Timezone     string // defaults to America/Sao_Paulo
}

// eventsAPI is the slice of the Calendar API the service uses; narrowed so
// tests can fake it.
type eventsAPI interface {
	list(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	insert(ctx context.Context, ev *calendar.Event) (*calendar.Event, error)
	get(ctx context.Context, eventID string) (*calendar.Event, error)
	update(ctx context.Context, eventID string, ev *calendar.Event) (*calendar.Event, error)
}

// Service implements schedule.Scheduler on top of Google Calendar. The
// calendar owns slot occupancy; the service keeps only the sequential-id
// ledger mapping appointment ids to event ids.
//
// The conflict check and the insert are two API round trips, so unlike the
// in-memory scheduler this is not atomic: the window between them is a known
// gap inherited from the calendar API.
type Service struct {
	api    eventsAPI
	loc    *time.Location
	tzName string
	logger *logging.Logger

	mu      sync.Mutex
	records []*schedule.Appointment
}

// NewService builds a Calendar-backed scheduler from OAuth credentials. The
// token source refreshes the access token with the refresh token as needed.
func NewService(ctx context.Context, cfg Config, logger *logging.Logger) (*Service, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}
	token := &oauth2.Token{
		AccessToken:  cfg.Token,
		RefreshToken: cfg.RefreshToken,
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gcal: failed to create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return newServiceWithAPI(&googleEventsAPI{svc: svc, calendarID: calendarID}, cfg.Timezone, logger)
}

func newServiceWithAPI(api eventsAPI, timezone string, logger *logging.Logger) (*Service, error) {
	if timezone == "" {
		timezone = defaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("gcal: invalid clinic timezone %q: %w", timezone, err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, loc: loc, tzName: timezone, logger: logger}, nil
}

// IsFree reports whether no event overlaps the (date, hour) slot window.
func (s *Service) IsFree(ctx context.Context, date, hour string) (bool, error) {
	start, end, err := s.slotWindow(date, hour)
	if err != nil {
		return false, err
	}
	events, err := s.api.list(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("gcal: conflict check failed: %w", err)
	}
	return len(events) == 0, nil
}

// FreeSlots lists the day's events once and subtracts every occupied
// half-hour from the daily template, preserving template order.
func (s *Service) FreeSlots(ctx context.Context, date string) ([]schedule.Slot, error) {
	dayStart, dayEnd, err := s.dayWindow(date)
	if err != nil {
		return nil, err
	}

	events, err := s.api.list(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("gcal: free slot lookup failed: %w", err)
	}

	occupied := s.occupiedHours(events)
	free := make([]schedule.Slot, 0, len(schedule.AllSlots()))
	for _, slot := range schedule.AllSlots() {
		if _, taken := occupied[string(slot)]; !taken {
			free = append(free, slot)
		}
	}
	return free, nil
}

// occupiedHours marks every template half-hour covered by an event. All-day
// events carry no DateTime and are ignored.
func (s *Service) occupiedHours(events []*calendar.Event) map[string]struct{} {
	occupied := make(map[string]struct{})
	for _, ev := range events {
		start, end, ok := eventWindow(ev)
		if !ok {
			continue
		}
		for t := start.In(s.loc); t.Before(end.In(s.loc)); t = t.Add(schedule.SlotInterval) {
			occupied[t.Format("15:04")] = struct{}{}
		}
	}
	return occupied
}

// Book inserts a calendar event for the slot after a conflict check, with
// the clinic's reminder policy attached.
func (s *Service) Book(ctx context.Context, req schedule.BookingRequest) (*schedule.Appointment, error) {
	ctx, span := gcalTracer.Start(ctx, "gcal.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("schedule.date", req.Date),
		attribute.String("schedule.hour", req.Hour),
	)

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	start, end, err := s.slotWindow(req.Date, req.Hour)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.api.list(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gcal: conflict check failed: %w", err)
	}
	if len(events) > 0 {
		span.RecordError(schedule.ErrSlotTaken)
		return nil, schedule.ErrSlotTaken
	}

	created, err := s.api.insert(ctx, &calendar.Event{
		Summary:     fmt.Sprintf("Consulta - %s", req.Doctor),
		Description: fmt.Sprintf("Paciente: %s", req.Patient),
		Start:       s.eventTime(start),
		End:         s.eventTime(end),
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gcal: event insert failed: %w", err)
	}

	appt := &schedule.Appointment{
		ID:      s.nextIDLocked(),
		Doctor:  req.Doctor,
		Patient: req.Patient,
		Date:    req.Date,
		Hour:    req.Hour,
		Status:  schedule.StatusConfirmed,
		EventID: created.Id,
	}
	s.records = append(s.records, appt)

	s.logger.Info("calendar appointment booked",
		"appointment_id", appt.ID,
		"event_id", appt.EventID,
		"date", appt.Date,
		"hour", appt.Hour,
	)
	cloned := *appt
	return &cloned, nil
}

// Reschedule re-runs the conflict check against the new slot (ignoring the
// appointment's own event) and updates the event's start/end in place. The
// old slot frees itself because the event moved.
func (s *Service) Reschedule(ctx context.Context, id int, newDate, newHour string) (*schedule.Appointment, error) {
	ctx, span := gcalTracer.Start(ctx, "gcal.reschedule")
	defer span.End()
	span.SetAttributes(attribute.Int("schedule.appointment_id", id))

	start, end, err := s.slotWindow(newDate, newHour)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var appt *schedule.Appointment
	for _, rec := range s.records {
		if rec.ID == id {
			appt = rec
			break
		}
	}
	if appt == nil {
		span.RecordError(schedule.ErrNotFound)
		return nil, schedule.ErrNotFound
	}

	events, err := s.api.list(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gcal: conflict check failed: %w", err)
	}
	for _, ev := range events {
		if ev.Id != appt.EventID {
			span.RecordError(schedule.ErrSlotTaken)
			return nil, schedule.ErrSlotTaken
		}
	}

	event, err := s.api.get(ctx, appt.EventID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gcal: event lookup failed: %w", err)
	}
	event.Start = s.eventTime(start)
	event.End = s.eventTime(end)
	if _, err := s.api.update(ctx, appt.EventID, event); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gcal: event update failed: %w", err)
	}

	appt.Date = newDate
	appt.Hour = newHour

	s.logger.Info("calendar appointment rescheduled",
		"appointment_id", appt.ID,
		"event_id", appt.EventID,
		"date", newDate,
		"hour", newHour,
	)
	cloned := *appt
	return &cloned, nil
}

// Appointments returns the ledger snapshot in creation order.
func (s *Service) Appointments(ctx context.Context) ([]*schedule.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*schedule.Appointment, 0, len(s.records))
	for _, rec := range s.records {
		cloned := *rec
		out = append(out, &cloned)
	}
	return out, nil
}

func (s *Service) nextIDLocked() int {
	max := 0
	for _, rec := range s.records {
		if rec.ID > max {
			max = rec.ID
		}
	}
	return max + 1
}

func (s *Service) slotWindow(date, hour string) (time.Time, time.Time, error) {
	if !schedule.ValidDate(date) {
		return time.Time{}, time.Time{}, schedule.ErrInvalidDate
	}
	if !schedule.ValidHour(hour) {
		return time.Time{}, time.Time{}, schedule.ErrInvalidHour
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hour, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, schedule.ErrInvalidDate
	}
	return start, start.Add(schedule.SlotInterval), nil
}

// dayWindow spans from the first template slot to the end of the last one.
func (s *Service) dayWindow(date string) (time.Time, time.Time, error) {
	if !schedule.ValidDate(date) {
		return time.Time{}, time.Time{}, schedule.ErrInvalidDate
	}
	slots := schedule.AllSlots()
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+string(slots[0]), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, schedule.ErrInvalidDate
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date+" "+string(slots[len(slots)-1]), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, schedule.ErrInvalidDate
	}
	return start, end.Add(schedule.SlotInterval), nil
}

func (s *Service) eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: s.tzName,
	}
}

// eventWindow parses an event's start/end. All-day events (date only) and
// unparseable timestamps report !ok.
func eventWindow(ev *calendar.Event) (time.Time, time.Time, bool) {
	if ev == nil || ev.Start == nil || ev.End == nil {
		return time.Time{}, time.Time{}, false
	}
	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// googleEventsAPI is the production eventsAPI backed by the Calendar client.
type googleEventsAPI struct {
	svc        *calendar.Service
	calendarID string
}

func (g *googleEventsAPI) list(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (g *googleEventsAPI) insert(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Insert(g.calendarID, ev).Context(ctx).Do()
}

func (g *googleEventsAPI) get(ctx context.Context, eventID string) (*calendar.Event, error) {
	return g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
}

func (g *googleEventsAPI) update(ctx context.Context, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Update(g.calendarID, eventID, ev).Context(ctx).Do()
}

// ErrUnavailable is returned by Ping when the calendar cannot be reached so
// startup can distinguish credential problems from per-turn failures.
var ErrUnavailable = errors.New("gcal: calendar unavailable")

// Ping verifies the credentials by listing a one-minute window from now.
func (s *Service) Ping(ctx context.Context) error {
	now := time.Now().In(s.loc)
	if _, err := s.api.list(ctx, now, now.Add(time.Minute)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
