package gcal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/lmvieira/secretaria-virtual/internal/schedule"
)

// fakeEventsAPI keeps events in memory and answers list queries by overlap,
// mirroring how the Calendar API treats timeMin/timeMax.
type fakeEventsAPI struct {
	events  []*calendar.Event
	nextID  int
	listErr error
}

func (f *fakeEventsAPI) list(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*calendar.Event
	for _, ev := range f.events {
		start, end, ok := eventWindow(ev)
		if !ok {
			out = append(out, ev)
			continue
		}
		if start.Before(timeMax) && end.After(timeMin) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventsAPI) insert(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	f.nextID++
	ev.Id = fmt.Sprintf("evt-%d", f.nextID)
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeEventsAPI) get(ctx context.Context, eventID string) (*calendar.Event, error) {
	for _, ev := range f.events {
		if ev.Id == eventID {
			return ev, nil
		}
	}
	return nil, errors.New("event not found")
}

func (f *fakeEventsAPI) update(ctx context.Context, eventID string, updated *calendar.Event) (*calendar.Event, error) {
	for i, ev := range f.events {
		if ev.Id == eventID {
			updated.Id = eventID
			f.events[i] = updated
			return updated, nil
		}
	}
	return nil, errors.New("event not found")
}

func newTestService(t *testing.T, api *fakeEventsAPI) *Service {
	t.Helper()
	svc, err := newServiceWithAPI(api, "America/Sao_Paulo", nil)
	require.NoError(t, err)
	return svc
}

func bookingReq(date, hour string) schedule.BookingRequest {
	return schedule.BookingRequest{
		Doctor:  "Dra. Maria Silva",
		Patient: "Carlos Souza",
		Date:    date,
		Hour:    hour,
	}
}

func TestBookCreatesEventWithReminders(t *testing.T) {
	api := &fakeEventsAPI{}
	svc := newTestService(t, api)

	appt, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, appt.ID)
	assert.Equal(t, "evt-1", appt.EventID)
	assert.Equal(t, schedule.StatusConfirmed, appt.Status)

	require.Len(t, api.events, 1)
	ev := api.events[0]
	assert.Equal(t, "Consulta - Dra. Maria Silva", ev.Summary)
	assert.Equal(t, "Paciente: Carlos Souza", ev.Description)
	assert.Equal(t, "America/Sao_Paulo", ev.Start.TimeZone)

	require.NotNil(t, ev.Reminders)
	assert.False(t, ev.Reminders.UseDefault)
	require.Len(t, ev.Reminders.Overrides, 2)
	assert.Equal(t, "email", ev.Reminders.Overrides[0].Method)
	assert.Equal(t, int64(24*60), ev.Reminders.Overrides[0].Minutes)
	assert.Equal(t, "popup", ev.Reminders.Overrides[1].Method)
	assert.Equal(t, int64(30), ev.Reminders.Overrides[1].Minutes)

	start, end, ok := eventWindow(ev)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, end.Sub(start))
}

func TestBookRejectsOccupiedSlot(t *testing.T) {
	api := &fakeEventsAPI{}
	svc := newTestService(t, api)

	_, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	assert.ErrorIs(t, err, schedule.ErrSlotTaken)
	assert.Len(t, api.events, 1)
}

func TestBookSequentialIDs(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	first, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)
	second, err := svc.Book(context.Background(), bookingReq("2024-06-10", "10:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
}

func TestBookValidatesRequest(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	req := bookingReq("2024-06-10", "09:00")
	req.Patient = ""
	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, schedule.ErrPatientRequired)

	_, err = svc.Book(context.Background(), bookingReq("10/06/2024", "09:00"))
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)

	_, err = svc.Book(context.Background(), bookingReq("2024-06-10", "9h"))
	assert.ErrorIs(t, err, schedule.ErrInvalidHour)
}

func TestIsFreeSeesExistingEvent(t *testing.T) {
	api := &fakeEventsAPI{}
	svc := newTestService(t, api)

	free, err := svc.IsFree(context.Background(), "2024-06-10", "14:00")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = svc.Book(context.Background(), bookingReq("2024-06-10", "14:00"))
	require.NoError(t, err)

	free, err = svc.IsFree(context.Background(), "2024-06-10", "14:00")
	require.NoError(t, err)
	assert.False(t, free)

	free, err = svc.IsFree(context.Background(), "2024-06-10", "14:30")
	require.NoError(t, err)
	assert.True(t, free)
}

func TestFreeSlotsSubtractsEventCoverage(t *testing.T) {
	// A pre-existing one-hour event covers two template slots.
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	start := time.Date(2024, 6, 10, 10, 0, 0, 0, loc)
	api := &fakeEventsAPI{events: []*calendar.Event{{
		Id:    "evt-existing",
		Start: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:   &calendar.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339)},
	}}}
	svc := newTestService(t, api)

	free, err := svc.FreeSlots(context.Background(), "2024-06-10")
	require.NoError(t, err)

	assert.Len(t, free, len(schedule.AllSlots())-2)
	assert.NotContains(t, free, schedule.Slot("10:00"))
	assert.NotContains(t, free, schedule.Slot("10:30"))
	assert.Contains(t, free, schedule.Slot("09:30"))
	assert.Contains(t, free, schedule.Slot("11:00"))
}

func TestFreeSlotsIgnoresAllDayEvents(t *testing.T) {
	api := &fakeEventsAPI{events: []*calendar.Event{{
		Id:    "evt-allday",
		Start: &calendar.EventDateTime{Date: "2024-06-10"},
		End:   &calendar.EventDateTime{Date: "2024-06-11"},
	}}}
	svc := newTestService(t, api)

	free, err := svc.FreeSlots(context.Background(), "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, schedule.AllSlots(), free)
}

func TestFreeSlotsEmptyDayReturnsFullTemplate(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	free, err := svc.FreeSlots(context.Background(), "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, schedule.AllSlots(), free)
}

func TestRescheduleMovesEvent(t *testing.T) {
	api := &fakeEventsAPI{}
	svc := newTestService(t, api)

	appt, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)

	moved, err := svc.Reschedule(context.Background(), appt.ID, "2024-06-11", "15:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-11", moved.Date)
	assert.Equal(t, "15:00", moved.Hour)
	assert.Equal(t, appt.EventID, moved.EventID)

	free, err := svc.IsFree(context.Background(), "2024-06-10", "09:00")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = svc.IsFree(context.Background(), "2024-06-11", "15:00")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestRescheduleToOwnSlotSucceeds(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	appt, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)

	moved, err := svc.Reschedule(context.Background(), appt.ID, "2024-06-10", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00", moved.Hour)
}

func TestRescheduleConflictLeavesEventInPlace(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	appt, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), bookingReq("2024-06-10", "10:00"))
	require.NoError(t, err)

	_, err = svc.Reschedule(context.Background(), appt.ID, "2024-06-10", "10:00")
	assert.ErrorIs(t, err, schedule.ErrSlotTaken)

	free, err := svc.IsFree(context.Background(), "2024-06-10", "09:00")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestRescheduleUnknownID(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	_, err := svc.Reschedule(context.Background(), 42, "2024-06-10", "09:00")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestAppointmentsSnapshot(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{})

	_, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), bookingReq("2024-06-11", "10:00"))
	require.NoError(t, err)

	appts, err := svc.Appointments(context.Background())
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, 1, appts[0].ID)
	assert.Equal(t, 2, appts[1].ID)

	appts[0].Patient = "mutated"
	again, err := svc.Appointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Carlos Souza", again[0].Patient)
}

func TestListErrorSurfacesAsBookingError(t *testing.T) {
	api := &fakeEventsAPI{listErr: errors.New("boom")}
	svc := newTestService(t, api)

	_, err := svc.Book(context.Background(), bookingReq("2024-06-10", "09:00"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, schedule.ErrSlotTaken)
	assert.Empty(t, api.events)
}

func TestPingReportsUnavailable(t *testing.T) {
	svc := newTestService(t, &fakeEventsAPI{listErr: errors.New("oauth2: invalid_grant")})

	err := svc.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewServiceRejectsBadTimezone(t *testing.T) {
	_, err := newServiceWithAPI(&fakeEventsAPI{}, "Mars/Olympus", nil)
	assert.Error(t, err)
}
