package schedule

import "errors"

var (
	// ErrSlotTaken is returned when the requested slot is already occupied.
	ErrSlotTaken = errors.New("schedule: slot already taken")

	// ErrNotFound is returned when no appointment matches the given id.
	ErrNotFound = errors.New("schedule: appointment not found")

	// ErrDoctorRequired is returned when the doctor name is missing.
	ErrDoctorRequired = errors.New("schedule: doctor is required")

	// ErrPatientRequired is returned when the patient name is missing.
	ErrPatientRequired = errors.New("schedule: patient is required")

	// ErrInvalidDate is returned when the date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("schedule: date must be YYYY-MM-DD")

	// ErrInvalidHour is returned when the hour is off the half-hour grid.
	ErrInvalidHour = errors.New("schedule: hour is not on the daily template")
)
