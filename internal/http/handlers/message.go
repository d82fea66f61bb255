package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"iara/internal/router"
)

// MessageHandler receives the messaging-gateway webhooks.
type MessageHandler struct {
	router *router.Router
}

func NewMessageHandler(r *router.Router) *MessageHandler {
	return &MessageHandler{router: r}
}

// Receive handles an inbound WhatsApp message. The gateway's payload shape
// drifts between versions, so extraction walks a list of fallbacks instead of
// binding to a struct. Always answers 200; a retry storm from the gateway
// would re-trigger the whole pipeline.
func (h *MessageHandler) Receive(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		log.Warn().Err(err).Msg("Unreadable gateway payload")
		return c.JSON(http.StatusOK, map[string]interface{}{"status": router.StatusIgnored})
	}

	if boolField(payload, "fromMe") || boolField(payload, "isGroup") {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": router.StatusIgnored})
	}

	in := router.Inbound{
		Phone:     stringField(payload, "phone", "sender", "from"),
		Text:      extractText(payload),
		MessageID: stringField(payload, "messageId", "message_id", "id"),
		SessionID: stringField(payload, "chatId", "session_id", "instanceId"),
	}

	res := h.router.Handle(c.Request().Context(), in)
	return c.JSON(http.StatusOK, res)
}

// Status acknowledges delivery-status callbacks. They carry no text and never
// drive the router.
func (h *MessageHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
}

// extractText pulls the message body out of the known payload shapes:
// text.message (current), message, body (older variants).
func extractText(payload map[string]interface{}) string {
	if t, ok := payload["text"].(map[string]interface{}); ok {
		if s := stringField(t, "message"); s != "" {
			return s
		}
	}
	return stringField(payload, "message", "body")
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(m map[string]interface{}, key string) bool {
	b, ok := m[key].(bool)
	return ok && b
}
