package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

// Handler exposes the scheduler over HTTP for the chat UI sidebar and
// operational poking.
type Handler struct {
	scheduler Scheduler
	logger    *logging.Logger
}

// NewHandler creates a schedule handler.
func NewHandler(scheduler Scheduler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{scheduler: scheduler, logger: logger}
}

// FreeSlots handles GET /schedule/slots?date=YYYY-MM-DD.
func (h *Handler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if !ValidDate(date) {
		http.Error(w, "date parameter must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.scheduler.FreeSlots(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to compute free slots", "error", err, "date", date)
		http.Error(w, "failed to compute free slots", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
	})
}

// List handles GET /appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.scheduler.Appointments(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.scheduler.Book(r.Context(), req)
	if err != nil {
		h.writeSchedulingError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

// Reschedule handles POST /appointments/{id}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "appointment id must be an integer", http.StatusBadRequest)
		return
	}

	var req struct {
		Date string `json:"date"`
		Hour string `json:"hour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.scheduler.Reschedule(r.Context(), id, req.Date, req.Hour)
	if err != nil {
		h.writeSchedulingError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) writeSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "slot already taken"})
	case errors.Is(err, ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, ErrDoctorRequired),
		errors.Is(err, ErrPatientRequired),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidHour):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("scheduling operation failed", "error", err)
		http.Error(w, "scheduling operation failed", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
