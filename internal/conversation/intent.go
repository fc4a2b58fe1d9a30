package conversation

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Action is the structured request extracted from the LLM reply. The wire
// vocabulary is Portuguese because it is the extraction contract given to
// the model.
type Action string

const (
	ActionBook       Action = "agendar"
	ActionQuery      Action = "consultar"
	ActionReschedule Action = "remarcar"
)

// Intent is the scheduling request embedded in a completion reply. Fields
// other than Action are present only if the patient mentioned them.
type Intent struct {
	Action        Action `json:"acao"`
	Doctor        string `json:"medico,omitempty"`
	Date          string `json:"data,omitempty"` // YYYY-MM-DD
	Hour          string `json:"hora,omitempty"` // HH:MM
	Patient       string `json:"paciente,omitempty"`
	AppointmentID int    `json:"consulta_id,omitempty"`
}

// HasBookingFields reports whether everything Book needs was mentioned.
func (i *Intent) HasBookingFields() bool {
	return i.Doctor != "" && i.Date != "" && i.Hour != "" && i.Patient != ""
}

var (
	// ErrNoIntent means the reply carries no JSON object; the whole reply
	// is plain conversational text.
	ErrNoIntent = errors.New("conversation: reply contains no intent payload")

	// ErrBadPayload means a JSON-looking payload was found but did not
	// survive the strict decode; callers fall back to the raw reply.
	ErrBadPayload = errors.New("conversation: malformed intent payload")
)

// ParseIntent extracts the scheduling intent from a completion reply. The
// model is told to embed a single JSON object; the candidate substring runs
// from the first '{' to the last '}'. The substring is decoded strictly:
// unknown fields, a missing or unknown acao, and malformed data/hora values
// all classify as ErrBadPayload rather than defaulting fields to empty.
func ParseIntent(reply string) (*Intent, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoIntent
	}

	dec := json.NewDecoder(strings.NewReader(reply[start : end+1]))
	dec.DisallowUnknownFields()

	var intent Intent
	if err := dec.Decode(&intent); err != nil {
		return nil, ErrBadPayload
	}

	switch intent.Action {
	case ActionBook, ActionQuery, ActionReschedule:
	default:
		return nil, ErrBadPayload
	}

	if intent.Date != "" {
		if _, err := time.Parse("2006-01-02", intent.Date); err != nil {
			return nil, ErrBadPayload
		}
	}
	if intent.Hour != "" {
		if _, err := time.Parse("15:04", intent.Hour); err != nil {
			return nil, ErrBadPayload
		}
	}

	return &intent, nil
}
