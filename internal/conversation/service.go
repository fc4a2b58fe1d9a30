package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lmvieira/secretaria-virtual/internal/observability/metrics"
	"github.com/lmvieira/secretaria-virtual/internal/schedule"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

var conversationTracer = otel.Tracer("secretaria.internal.conversation")

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 512
)

// ErrEmptyMessage is returned when a turn arrives with no text.
var ErrEmptyMessage = errors.New("conversation: message text is required")

// Service runs the conversation loop: append the user message, call the
// completion API, route any extracted intent to the scheduler, append the
// assistant reply. Each turn is synchronous and blocks until the external
// call completes.
//
// Every external failure degrades to a displayed message; a turn never
// surfaces an LLM or scheduler error to the caller.
type Service struct {
	llm       LLMClient
	scheduler schedule.Scheduler
	history   HistoryStore
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger

	systemPrompt string
}

// NewService wires the conversation loop. metrics may be nil.
func NewService(llm LLMClient, scheduler schedule.Scheduler, history HistoryStore, systemPrompt string, m *metrics.ConversationMetrics, logger *logging.Logger) *Service {
	if llm == nil {
		panic("conversation: llm client required")
	}
	if scheduler == nil {
		panic("conversation: scheduler required")
	}
	if history == nil {
		history = NewMemoryHistoryStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		llm:          llm,
		scheduler:    scheduler,
		history:      history,
		metrics:      m,
		logger:       logger,
		systemPrompt: systemPrompt,
	}
}

// Greeting returns the opening assistant message for a new session.
func (s *Service) Greeting() string {
	return Greeting
}

// History returns the ordered message history for a session. New sessions
// have an empty history.
func (s *Service) History(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	return s.history.Load(ctx, conversationID)
}

// ProcessMessage runs one turn and returns the assistant reply.
func (s *Service) ProcessMessage(ctx context.Context, conversationID, text string) (string, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	history, err := s.history.Load(ctx, conversationID)
	if err != nil {
		// A lost history degrades the session, not the turn.
		s.logger.Error("failed to load history, continuing with empty session", "error", err, "conversation_id", conversationID)
		history = nil
	}
	history = append(history, ChatMessage{Role: ChatRoleUser, Content: text})

	reply := s.completeTurn(ctx, conversationID, history)

	history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: reply})
	if err := s.history.Save(ctx, conversationID, history); err != nil {
		s.logger.Error("failed to save history", "error", err, "conversation_id", conversationID)
	}

	s.metrics.Turn()
	return reply, nil
}

// completeTurn calls the completion API and routes any extracted intent.
func (s *Service) completeTurn(ctx context.Context, conversationID string, history []ChatMessage) string {
	resp, err := s.llm.Complete(ctx, LLMRequest{
		System:      []string{s.systemPrompt},
		Messages:    history,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		s.metrics.LLMFailure()
		s.logger.Error("completion call failed", "error", err, "conversation_id", conversationID)
		return ApologyMessage
	}

	intent, perr := ParseIntent(resp.Text)
	if perr != nil {
		if errors.Is(perr, ErrBadPayload) {
			s.metrics.ParseFailure()
			s.logger.Debug("malformed intent payload, showing raw reply", "conversation_id", conversationID)
		}
		// Plain conversational reply, shown verbatim.
		return resp.Text
	}

	s.metrics.Intent(string(intent.Action))
	return s.dispatchIntent(ctx, intent, resp.Text)
}

// dispatchIntent routes a parsed intent to the scheduler and renders the
// outcome. Replies keep the model's conversational text (minus the payload)
// with the scheduling marker appended.
func (s *Service) dispatchIntent(ctx context.Context, intent *Intent, rawReply string) string {
	switch intent.Action {
	case ActionBook:
		if !intent.HasBookingFields() {
			// Let the model's own follow-up question stand.
			return rawReply
		}
		return withMarker(rawReply, s.book(ctx, intent))

	case ActionQuery:
		if intent.Date == "" {
			return rawReply
		}
		return withMarker(rawReply, s.querySlots(ctx, intent.Date))

	case ActionReschedule:
		if intent.AppointmentID == 0 || intent.Date == "" || intent.Hour == "" {
			return rawReply
		}
		return withMarker(rawReply, s.reschedule(ctx, intent))
	}
	return rawReply
}

func (s *Service) book(ctx context.Context, intent *Intent) string {
	appt, err := s.scheduler.Book(ctx, schedule.BookingRequest{
		Doctor:  intent.Doctor,
		Patient: intent.Patient,
		Date:    intent.Date,
		Hour:    intent.Hour,
	})
	switch {
	case err == nil:
		s.metrics.Booking(metrics.OutcomeConfirmed)
		return fmt.Sprintf("Consulta agendada com sucesso! ID: %d — %s, %s às %s, paciente %s.",
			appt.ID, appt.Doctor, appt.Date, appt.Hour, appt.Patient)
	case errors.Is(err, schedule.ErrSlotTaken):
		s.metrics.Booking(metrics.OutcomeConflict)
		return "Infelizmente este horário já está ocupado. Quer que eu consulte os horários disponíveis para esta data?"
	case errors.Is(err, schedule.ErrInvalidHour):
		s.metrics.Booking(metrics.OutcomeRejected)
		return "Atendemos das 08:00 às 17:30, em intervalos de 30 minutos. Pode escolher um horário dentro dessa grade?"
	case errors.Is(err, schedule.ErrInvalidDate):
		s.metrics.Booking(metrics.OutcomeRejected)
		return "Não entendi a data do agendamento. Pode informá-la no formato AAAA-MM-DD?"
	default:
		s.metrics.Booking(metrics.OutcomeError)
		s.logger.Error("booking failed", "error", err)
		return ApologyMessage
	}
}

func (s *Service) querySlots(ctx context.Context, date string) string {
	slots, err := s.scheduler.FreeSlots(ctx, date)
	if err != nil {
		s.logger.Error("free slots lookup failed", "error", err, "date", date)
		return ApologyMessage
	}
	if len(slots) == 0 {
		// A fully booked day is an answer, not an error.
		return fmt.Sprintf("Não há horários disponíveis em %s.", date)
	}

	hours := make([]string, 0, len(slots))
	for _, slot := range slots {
		hours = append(hours, string(slot))
	}
	return fmt.Sprintf("Horários disponíveis em %s: %s.", date, strings.Join(hours, ", "))
}

func (s *Service) reschedule(ctx context.Context, intent *Intent) string {
	appt, err := s.scheduler.Reschedule(ctx, intent.AppointmentID, intent.Date, intent.Hour)
	switch {
	case err == nil:
		s.metrics.Booking(metrics.OutcomeConfirmed)
		return fmt.Sprintf("Consulta %d remarcada com sucesso para %s às %s.", appt.ID, appt.Date, appt.Hour)
	case errors.Is(err, schedule.ErrSlotTaken):
		s.metrics.Booking(metrics.OutcomeConflict)
		return "O novo horário já está ocupado. Quer que eu consulte os horários disponíveis para esta data?"
	case errors.Is(err, schedule.ErrNotFound):
		return fmt.Sprintf("Não encontrei a consulta de número %d. Pode confirmar o número do agendamento?", intent.AppointmentID)
	default:
		s.metrics.Booking(metrics.OutcomeError)
		s.logger.Error("reschedule failed", "error", err)
		return ApologyMessage
	}
}

// withMarker appends the scheduling outcome to the model's conversational
// text, with the JSON payload stripped from display.
func withMarker(rawReply, marker string) string {
	text := stripPayload(rawReply)
	if text == "" {
		return marker
	}
	return text + "\n\n" + marker
}

// stripPayload removes the embedded JSON object (first '{' through last '}')
// from a reply, leaving only the conversational text.
func stripPayload(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return strings.TrimSpace(reply)
	}
	return strings.TrimSpace(reply[:start] + reply[end+1:])
}
