package engineapi

import (
	"context"
	"log"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/gofiber/fiber/v2"
)

// EventProcessor evaluates inbound events
type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev engine.Event) engine.Decision
}

// PendingCounter reports the delayed runs still waiting
type PendingCounter interface {
	PendingCount(ctx context.Context) (int64, error)
}

// EventHandler receives events from the WhatsApp bridge
type EventHandler struct {
	processor EventProcessor
	pending   PendingCounter
}

func NewEventHandler(processor EventProcessor, pending PendingCounter) *EventHandler {
	return &EventHandler{
		processor: processor,
		pending:   pending,
	}
}

// RegisterRoutes mounts the ingestion endpoints behind the service key
func (h *EventHandler) RegisterRoutes(router fiber.Router, serviceKey fiber.Handler) {
	events := router.Group("/events", serviceKey)

	events.Post("/", h.Ingest)
	events.Get("/continuations/pending", h.Pending)
}

// Ingest evaluates one event and returns the decision
// POST /api/events
func (h *EventHandler) Ingest(c *fiber.Ctx) error {
	var req EventRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if err := validate.Struct(req); err != nil {
		return engine.ErrInvalidEvent().WithDetail("violations", validationMessages(err))
	}

	log.Printf("📥 Event received for conversation %s", req.ConversationID)
	decision := h.processor.ProcessEvent(c.UserContext(), req.toEvent())
	return c.JSON(decision)
}

// Pending returns the number of delayed runs waiting to resume
// GET /api/events/continuations/pending
func (h *EventHandler) Pending(c *fiber.Ctx) error {
	if h.pending == nil {
		return c.JSON(PendingResponse{})
	}

	n, err := h.pending.PendingCount(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(PendingResponse{Pending: n})
}
