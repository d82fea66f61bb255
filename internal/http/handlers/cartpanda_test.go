package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"iara/internal/store"
	"iara/pkg/models"
)

func ordWithNo(no string) *models.OrderContext {
	return &models.OrderContext{OrderNo: no}
}

type testValidator struct {
	validator *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	if err := tv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func postJSON(t *testing.T, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := handler(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestOrderIngestion(t *testing.T) {
	contexts := store.NewContextStore(store.NewMemory(), "https://resume/")
	h := NewCartpandaHandler(contexts)

	body := `{
		"order_no": "12345",
		"cart_token": "abc",
		"payment_status": "pending",
		"customer": {"name": "Maria", "email": "maria@example.com", "phone": "11999990000", "cpf": "123.456.789-01"}
	}`
	rec := postJSON(t, h.Order, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	oc, err := contexts.GetOrder(context.Background(), "12345")
	if err != nil || oc == nil {
		t.Fatalf("order not stored: (%v, %v)", oc, err)
	}
	if oc.Customer.Phone != "5511999990000" {
		t.Errorf("phone not canonicalized: %q", oc.Customer.Phone)
	}
	if oc.Customer.Document != "12345678901" {
		t.Errorf("document not reduced to digits: %q", oc.Customer.Document)
	}
	if oc.ResumeLink != "https://resume/abc" {
		t.Errorf("resume link = %q", oc.ResumeLink)
	}

	// The phone link lets Resolve find the order without any text hints.
	if got := contexts.Resolve(context.Background(), "5511999990000", "oi"); got == nil || got.OrderNo != "12345" {
		t.Errorf("Resolve after ingestion = %+v", got)
	}
}

func TestOrderFieldFallbacks(t *testing.T) {
	contexts := store.NewContextStore(store.NewMemory(), "")
	h := NewCartpandaHandler(contexts)

	// Numeric id, envelope wrapping and alternate field names.
	body := `{"data": {"order": {"number": 98765, "financial_status": "paid", "customer": {"first_name": "Ana", "last_name": "Souza", "phone_number": "11888880000"}}}}`
	rec := postJSON(t, h.Order, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	oc, _ := contexts.GetOrder(context.Background(), "98765")
	if oc == nil {
		t.Fatal("order not stored")
	}
	if oc.PaymentStatus != "paid" {
		t.Errorf("payment status = %q", oc.PaymentStatus)
	}
	if oc.Customer.Name != "Ana Souza" {
		t.Errorf("customer name = %q", oc.Customer.Name)
	}
}

func TestOrderRejectsUnidentified(t *testing.T) {
	h := NewCartpandaHandler(store.NewContextStore(store.NewMemory(), ""))
	rec := postJSON(t, h.Order, `{"payment_status": "paid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestOrderPhoneOnlyAccepted(t *testing.T) {
	contexts := store.NewContextStore(store.NewMemory(), "")
	h := NewCartpandaHandler(contexts)

	// A phone identifies the event but there is nothing to store yet.
	rec := postJSON(t, h.Order, `{"customer": {"phone": "11999990000"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"accepted"`) {
		t.Errorf("body = %s, expected accepted acknowledgment", rec.Body.String())
	}
	if got := contexts.Resolve(context.Background(), "5511999990000", "oi"); got != nil {
		t.Errorf("phone-only event must not create state, got %+v", got)
	}
}

func TestCartsBatch(t *testing.T) {
	contexts := store.NewContextStore(store.NewMemory(), "https://resume/")
	h := NewCartpandaHandler(contexts)

	body := `{"carts": [
		{"cart_token": "t1", "customer": {"phone": "11999990001"}},
		{"cart_token": "t2", "customer": {"phone": "11999990002"}},
		{"note": "no identifiers, skipped"}
	]}`
	rec := postJSON(t, h.Carts, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ingested":2`) {
		t.Errorf("body = %s, expected ingested count 2", rec.Body.String())
	}

	oc, _ := contexts.GetCart(context.Background(), "t1")
	if oc == nil || oc.ResumeLink != "https://resume/t1" {
		t.Errorf("cart t1 = %+v", oc)
	}
}

func TestCartsMissingArray(t *testing.T) {
	h := NewCartpandaHandler(store.NewContextStore(store.NewMemory(), ""))
	rec := postJSON(t, h.Carts, `{"foo": 1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestSupportUpdatesPhoneLink(t *testing.T) {
	contexts := store.NewContextStore(store.NewMemory(), "")
	h := NewCartpandaHandler(contexts)

	if err := contexts.PutOrder(context.Background(), ordWithNo("55555")); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h.Support, `{"order_no": "55555", "customer": {"phone": "11777770000"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := contexts.Resolve(context.Background(), "5511777770000", "oi"); got == nil || got.OrderNo != "55555" {
		t.Errorf("phone link not updated: %+v", got)
	}
}
