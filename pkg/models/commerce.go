package models

import "strings"

// Product is a catalog item. Products without a checkout URL are dropped at
// load time, so Checkout is always non-empty on a loaded Product.
type Product struct {
	Name        string   `json:"name"`
	Checkout    string   `json:"checkout"`
	Image       string   `json:"image,omitempty"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Customer is the sub-record carried by checkout webhook events.
type Customer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// OrderContext is what we know about a customer's purchase or cart at a point
// in time. It is created and overwritten only by checkout webhook ingestion;
// the messaging pipeline reads it and never writes it.
type OrderContext struct {
	OrderNo       string   `json:"order_no,omitempty"`
	PaymentStatus string   `json:"payment_status,omitempty"`
	CheckoutURL   string   `json:"checkout_url,omitempty"`
	CartToken     string   `json:"cart_token,omitempty"`
	Customer      Customer `json:"customer"`

	// ResumeLink is computed at read time from CartToken and the configured
	// resume base URL. It is never persisted.
	ResumeLink string `json:"-"`
}

// BestLink returns the URL that takes the customer back to their checkout:
// the computed resume link when present, otherwise the checkout URL.
func (c *OrderContext) BestLink() string {
	if c == nil {
		return ""
	}
	if c.ResumeLink != "" {
		return c.ResumeLink
	}
	return c.CheckoutURL
}

// Summary renders a compact one-line view of the context for the LLM prompt.
func (c *OrderContext) Summary() string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.OrderNo != "" {
		parts = append(parts, "Pedido: "+c.OrderNo)
	}
	if c.PaymentStatus != "" {
		parts = append(parts, "Pagamento: "+c.PaymentStatus)
	}
	if c.Customer.Name != "" {
		parts = append(parts, "Cliente: "+c.Customer.Name)
	}
	if c.Customer.Email != "" {
		parts = append(parts, "E-mail: "+c.Customer.Email)
	}
	if c.Customer.Document != "" {
		parts = append(parts, "CPF: "+c.Customer.Document)
	}
	if c.CheckoutURL != "" {
		parts = append(parts, "Checkout: "+c.CheckoutURL)
	}
	if c.ResumeLink != "" {
		parts = append(parts, "Retomar: "+c.ResumeLink)
	}
	return strings.Join(parts, " | ")
}

// ChatEntry is one message of a conversation session as kept in the store.
type ChatEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles used in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
