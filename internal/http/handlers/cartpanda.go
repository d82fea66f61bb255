package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"iara/internal/store"
	"iara/internal/textutil"
	"iara/pkg/models"
)

// CartpandaHandler ingests checkout-platform webhooks into the context store.
type CartpandaHandler struct {
	contexts *store.ContextStore
}

// orderEvent is the identity contract of one checkout event: at least one of
// the identifying fields must be present. The optional fields stay on the
// lenient map extraction; only the contract goes through the validator.
type orderEvent struct {
	OrderNo   string `json:"order_no" validate:"required_without_all=CartToken Phone"`
	CartToken string `json:"cart_token" validate:"required_without_all=OrderNo Phone"`
	Phone     string `json:"phone" validate:"required_without_all=OrderNo CartToken"`
}

// cartsEvent is the contract of a batch event: a non-empty cart array.
type cartsEvent struct {
	Items []map[string]interface{} `json:"carts" validate:"required,min=1"`
}

func NewCartpandaHandler(contexts *store.ContextStore) *CartpandaHandler {
	return &CartpandaHandler{contexts: contexts}
}

// Order ingests one order or cart event. The platform renames fields between
// event types and versions, so every identifying field is read through a
// fallback chain. Rejected with 400 only when no identifying field at all is
// present.
func (h *CartpandaHandler) Order(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	oc := extractOrderContext(payload)
	ev := orderEvent{OrderNo: oc.OrderNo, CartToken: oc.CartToken, Phone: oc.Customer.Phone}
	if err := c.Validate(&ev); err != nil {
		return err
	}

	// Phone-only events carry nothing to store yet; acknowledge so the
	// platform stops retrying.
	if oc.OrderNo == "" && oc.CartToken == "" {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "accepted"})
	}

	if err := h.ingest(c, oc); err != nil {
		log.Error().Err(err).Msg("Order ingest failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "order_no": oc.OrderNo})
}

// Carts ingests a batch abandoned-carts event: an array of per-cart objects
// under "carts" or "data". Entries without any identifier are skipped, not
// fatal.
func (h *CartpandaHandler) Carts(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	raws, _ := payload["carts"].([]interface{})
	if raws == nil {
		raws, _ = payload["data"].([]interface{})
	}
	ev := cartsEvent{}
	for _, raw := range raws {
		if entry, ok := raw.(map[string]interface{}); ok {
			ev.Items = append(ev.Items, entry)
		}
	}
	if err := c.Validate(&ev); err != nil {
		return err
	}

	ingested := 0
	for _, entry := range ev.Items {
		oc := extractOrderContext(entry)
		if oc.OrderNo == "" && oc.CartToken == "" {
			continue
		}
		if err := h.ingest(c, oc); err != nil {
			log.Warn().Err(err).Msg("Cart entry ingest failed")
			continue
		}
		ingested++
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "ingested": ingested})
}

// Support acknowledges support-platform callbacks. They never drive the
// router; when they carry both a phone and an order number the phone link is
// refreshed opportunistically.
func (h *CartpandaHandler) Support(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	}

	oc := extractOrderContext(payload)
	if oc.Customer.Phone != "" && oc.OrderNo != "" {
		if err := h.contexts.SetLastForPhone(c.Request().Context(), oc.Customer.Phone, "order/"+oc.OrderNo); err != nil {
			log.Warn().Err(err).Msg("Support phone link failed")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *CartpandaHandler) ingest(c echo.Context, oc *models.OrderContext) error {
	ctx := c.Request().Context()
	if oc.OrderNo != "" {
		return h.contexts.PutOrder(ctx, oc)
	}
	return h.contexts.PutCart(ctx, oc.CartToken, oc)
}

// extractOrderContext maps a raw event onto an OrderContext, trying each
// known field name in order. Events are sometimes wrapped in "data" or
// "order" envelopes.
func extractOrderContext(payload map[string]interface{}) *models.OrderContext {
	if inner, ok := payload["data"].(map[string]interface{}); ok {
		payload = inner
	}
	if inner, ok := payload["order"].(map[string]interface{}); ok {
		payload = inner
	}

	oc := &models.OrderContext{
		OrderNo:       anyField(payload, "order_no", "order_number", "number", "orderNumber", "id"),
		PaymentStatus: anyField(payload, "payment_status", "financial_status", "status"),
		CheckoutURL:   anyField(payload, "checkout_url", "abandoned_checkout_url", "cart_url", "url"),
		CartToken:     anyField(payload, "cart_token", "token", "cart_id", "checkout_token"),
	}

	cust := payload
	if inner, ok := payload["customer"].(map[string]interface{}); ok {
		cust = inner
	}
	oc.Customer = models.Customer{
		Name:     anyField(cust, "name", "full_name", "first_name"),
		Email:    anyField(cust, "email"),
		Phone:    textutil.NormalizePhone(anyField(cust, "phone", "phone_number", "telephone")),
		Document: textutil.DigitsOnly(anyField(cust, "document", "cpf", "cpf_cnpj")),
	}
	if oc.Customer.Name != "" {
		if last := anyField(cust, "last_name"); last != "" && anyField(cust, "name", "full_name") == "" {
			oc.Customer.Name += " " + last
		}
	}
	return oc
}

// anyField reads the first present key as a string; numeric ids are
// stringified without a decimal part.
func anyField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
