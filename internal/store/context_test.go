package store

import (
	"context"
	"testing"

	"iara/pkg/models"
)

func newTestContexts() *ContextStore {
	return NewContextStore(NewMemory(), "https://resume/")
}

func TestPutOrderGetOrder(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	oc := &models.OrderContext{
		OrderNo:       "123456",
		PaymentStatus: "paid",
		CheckoutURL:   "https://x/checkout/1",
		Customer: models.Customer{
			Name:     "Maria Silva",
			Email:    "Maria@Example.com",
			Phone:    "5511999990000",
			Document: "12345678901",
		},
	}
	if err := s.PutOrder(ctx, oc); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOrder(ctx, "123456")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.OrderNo != "123456" || got.Customer.Name != "Maria Silva" {
		t.Fatalf("GetOrder = %+v", got)
	}

	orders, err := s.OrdersForCPF(ctx, "12345678901")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0] != "123456" {
		t.Errorf("OrdersForCPF = %v", orders)
	}
}

func TestPutOrderRequiresNumber(t *testing.T) {
	s := newTestContexts()
	if err := s.PutOrder(context.Background(), &models.OrderContext{}); err == nil {
		t.Error("PutOrder without order number should fail")
	}
}

func TestGetOrderMissing(t *testing.T) {
	s := newTestContexts()
	oc, err := s.GetOrder(context.Background(), "999999")
	if err != nil || oc != nil {
		t.Errorf("missing order should be (nil, nil), got (%v, %v)", oc, err)
	}
}

func TestResumeLinkComputedAtRead(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	oc := &models.OrderContext{
		CartToken: "abc",
		Customer:  models.Customer{Phone: "5511999990000"},
	}
	if err := s.PutCart(ctx, "abc", oc); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCart(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.ResumeLink != "https://resume/abc" {
		t.Errorf("ResumeLink = %q, expected https://resume/abc", got.ResumeLink)
	}
	if got.BestLink() != "https://resume/abc" {
		t.Errorf("BestLink = %q", got.BestLink())
	}
}

func TestResolvePhoneLinkWinsOverInTextOrder(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	linked := &models.OrderContext{
		OrderNo:  "111111",
		Customer: models.Customer{Phone: "5511999990000"},
	}
	other := &models.OrderContext{OrderNo: "222222"}
	if err := s.PutOrder(ctx, linked); err != nil {
		t.Fatal(err)
	}
	if err := s.PutOrder(ctx, other); err != nil {
		t.Fatal(err)
	}

	// The message mentions a different order, but the phone link wins.
	got := s.Resolve(ctx, "5511999990000", "sobre o pedido 222222")
	if got == nil || got.OrderNo != "111111" {
		t.Fatalf("Resolve = %+v, expected phone-linked order 111111", got)
	}

	// A phone without a link falls back to the in-text order number.
	got = s.Resolve(ctx, "5511888880000", "sobre o pedido 222222")
	if got == nil || got.OrderNo != "222222" {
		t.Fatalf("Resolve = %+v, expected in-text order 222222", got)
	}
}

func TestResolveByCPF(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	first := &models.OrderContext{OrderNo: "100001", Customer: models.Customer{Document: "12345678901"}}
	second := &models.OrderContext{OrderNo: "100002", Customer: models.Customer{Document: "12345678901"}}
	if err := s.PutOrder(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.PutOrder(ctx, second); err != nil {
		t.Fatal(err)
	}

	got := s.Resolve(ctx, "5511777770000", "meu cpf é 123.456.789-01")
	if got == nil || got.OrderNo != "100002" {
		t.Fatalf("Resolve by CPF = %+v, expected most recent order 100002", got)
	}
}

func TestResolveByEmail(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	first := &models.OrderContext{OrderNo: "200001", Customer: models.Customer{Email: "Maria@Example.com"}}
	second := &models.OrderContext{OrderNo: "200002", Customer: models.Customer{Email: "maria@example.com"}}
	if err := s.PutOrder(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.PutOrder(ctx, second); err != nil {
		t.Fatal(err)
	}

	// Lookup is case-insensitive on both sides of the index.
	got := s.Resolve(ctx, "5511777770000", "minha compra foi no MARIA@example.com")
	if got == nil || got.OrderNo != "200002" {
		t.Fatalf("Resolve by email = %+v, expected most recent order 200002", got)
	}

	orders, err := s.OrdersForEmail(ctx, "maria@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Errorf("OrdersForEmail = %v, expected both orders indexed", orders)
	}
}

func TestResolveNoContext(t *testing.T) {
	s := newTestContexts()
	if got := s.Resolve(context.Background(), "5511999990000", "bom dia"); got != nil {
		t.Errorf("Resolve with no data = %+v, expected nil", got)
	}
}

func TestResolveCartLink(t *testing.T) {
	s := newTestContexts()
	ctx := context.Background()

	oc := &models.OrderContext{CartToken: "tok1", Customer: models.Customer{Phone: "5511999990000"}}
	if err := s.PutCart(ctx, "tok1", oc); err != nil {
		t.Fatal(err)
	}

	got := s.Resolve(ctx, "5511999990000", "quero continuar")
	if got == nil || got.ResumeLink != "https://resume/tok1" {
		t.Fatalf("Resolve cart = %+v", got)
	}
}
