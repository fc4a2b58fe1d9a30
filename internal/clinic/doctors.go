package clinic

import (
	"encoding/json"
	"net/http"

	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

// Doctor is one entry on the clinic roster.
type Doctor struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// DefaultDoctors is the clinic roster embedded in the secretary prompt and
// served to the chat UI sidebar.
func DefaultDoctors() []Doctor {
	return []Doctor{
		{Name: "Dra. Maria Silva", Specialty: "Clínica Geral"},
		{Name: "Dr. João Santos", Specialty: "Cardiologia"},
		{Name: "Dr. Carlos Oliveira", Specialty: "Traumatologia"},
		{Name: "Dra. Ana Pereira", Specialty: "Reumatologia"},
	}
}

// Handler serves the doctor roster.
type Handler struct {
	doctors []Doctor
	logger  *logging.Logger
}

// NewHandler creates a roster handler.
func NewHandler(doctors []Doctor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{doctors: doctors, logger: logger}
}

// List handles GET /doctors.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"doctors": h.doctors}); err != nil {
		h.logger.Error("failed to write doctors response", "error", err)
	}
}
