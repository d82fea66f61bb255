package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"iara/internal/textutil"
	"iara/pkg/models"

	"github.com/rs/zerolog/log"
)

// Key layout for order/cart context. Orders are primary records; CPF and
// email indexes hold order numbers most-recent-last; the phone link holds a
// single ref overwritten on every webhook event for that phone.
const (
	keyOrder      = "order:"        // order:<no> -> OrderContext JSON
	keyCart       = "cart:"         // cart:<token> -> OrderContext JSON
	keyOrdersCPF  = "orders:cpf:"   // orders:cpf:<cpf> -> list of order numbers
	keyOrdersMail = "orders:email:" // orders:email:<email> -> list of order numbers
	keyLastPhone  = "last:"         // last:<phone> -> ref
)

// Refs stored under last:<phone>.
const (
	refOrderPrefix = "order/"
	refCartPrefix  = "cart/"
)

// ContextStore persists and resolves Order Context. Writes come only from
// checkout webhook ingestion; the router only reads.
type ContextStore struct {
	kv         KV
	resumeBase string
}

// NewContextStore wraps kv. resumeBase, when non-empty, is prepended to cart
// tokens to form resume links at read time.
func NewContextStore(kv KV, resumeBase string) *ContextStore {
	return &ContextStore{kv: kv, resumeBase: resumeBase}
}

// PutOrder stores an order context under its order number and refreshes the
// CPF, email and phone indexes.
func (s *ContextStore) PutOrder(ctx context.Context, oc *models.OrderContext) error {
	if oc == nil || oc.OrderNo == "" {
		return fmt.Errorf("put order: missing order number")
	}
	data, err := json.Marshal(oc)
	if err != nil {
		return fmt.Errorf("put order %s: %w", oc.OrderNo, err)
	}
	if err := s.kv.Set(ctx, keyOrder+oc.OrderNo, string(data), 0); err != nil {
		return err
	}
	if cpf := oc.Customer.Document; cpf != "" {
		if err := s.kv.ListAppend(ctx, keyOrdersCPF+cpf, oc.OrderNo); err != nil {
			return err
		}
	}
	if email := strings.ToLower(oc.Customer.Email); email != "" {
		if err := s.kv.ListAppend(ctx, keyOrdersMail+email, oc.OrderNo); err != nil {
			return err
		}
	}
	if phone := oc.Customer.Phone; phone != "" {
		if err := s.SetLastForPhone(ctx, phone, refOrderPrefix+oc.OrderNo); err != nil {
			return err
		}
	}
	return nil
}

// PutCart stores a cart-only context (abandoned checkout) under its token and
// links it to the customer's phone when known.
func (s *ContextStore) PutCart(ctx context.Context, token string, oc *models.OrderContext) error {
	if token == "" {
		return fmt.Errorf("put cart: missing token")
	}
	data, err := json.Marshal(oc)
	if err != nil {
		return fmt.Errorf("put cart %s: %w", token, err)
	}
	if err := s.kv.Set(ctx, keyCart+token, string(data), 0); err != nil {
		return err
	}
	if phone := oc.Customer.Phone; phone != "" {
		if err := s.SetLastForPhone(ctx, phone, refCartPrefix+token); err != nil {
			return err
		}
	}
	return nil
}

// SetLastForPhone records the most recent cart/order ref for a phone,
// overwriting any previous link.
func (s *ContextStore) SetLastForPhone(ctx context.Context, phone, ref string) error {
	return s.kv.Set(ctx, keyLastPhone+phone, ref, 0)
}

// GetOrder loads an order context. Returns (nil, nil) when absent.
func (s *ContextStore) GetOrder(ctx context.Context, orderNo string) (*models.OrderContext, error) {
	return s.load(ctx, keyOrder+orderNo)
}

// GetCart loads a cart context by token. Returns (nil, nil) when absent.
func (s *ContextStore) GetCart(ctx context.Context, token string) (*models.OrderContext, error) {
	return s.load(ctx, keyCart+token)
}

// OrdersForCPF returns the order numbers recorded for a CPF, most recent last.
func (s *ContextStore) OrdersForCPF(ctx context.Context, cpf string) ([]string, error) {
	return s.kv.ListRange(ctx, keyOrdersCPF+cpf, 0, -1)
}

// OrdersForEmail returns the order numbers recorded for an email, most recent
// last. The index is keyed lowercase.
func (s *ContextStore) OrdersForEmail(ctx context.Context, email string) ([]string, error) {
	return s.kv.ListRange(ctx, keyOrdersMail+strings.ToLower(email), 0, -1)
}

func (s *ContextStore) load(ctx context.Context, key string) (*models.OrderContext, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var oc models.OrderContext
	if err := json.Unmarshal([]byte(raw), &oc); err != nil {
		return nil, fmt.Errorf("decode context %s: %w", key, err)
	}
	s.applyResume(&oc)
	return &oc, nil
}

// applyResume computes the resume link at read time so a base-URL change is
// reflected immediately.
func (s *ContextStore) applyResume(oc *models.OrderContext) {
	if oc.CartToken != "" && s.resumeBase != "" {
		oc.ResumeLink = s.resumeBase + oc.CartToken
	}
}

// Resolve finds the order context for a conversation, in priority order:
// the phone-linked ref, an order number in the message text, a CPF in the
// message text, an email in the message text (both resolve to the most
// recent order). Store failures degrade to "no context"; they are logged,
// never surfaced to the caller.
func (s *ContextStore) Resolve(ctx context.Context, phone, text string) *models.OrderContext {
	if ref, ok := s.lastRef(ctx, phone); ok {
		if oc := s.loadRef(ctx, ref); oc != nil {
			return oc
		}
	}

	if orderNo := textutil.OrderNoFromText(text); orderNo != "" {
		if oc, err := s.GetOrder(ctx, orderNo); err == nil && oc != nil {
			return oc
		}
	}

	if cpf := textutil.CPFFromText(text); cpf != "" {
		orderNos, err := s.OrdersForCPF(ctx, cpf)
		if err != nil {
			log.Warn().Err(err).Str("cpf", cpf).Msg("Context store unavailable for CPF lookup")
			return nil
		}
		if oc := s.lastOrderOf(ctx, orderNos); oc != nil {
			return oc
		}
	}

	if email := textutil.EmailFromText(text); email != "" {
		orderNos, err := s.OrdersForEmail(ctx, email)
		if err != nil {
			log.Warn().Err(err).Str("email", email).Msg("Context store unavailable for email lookup")
			return nil
		}
		if oc := s.lastOrderOf(ctx, orderNos); oc != nil {
			return oc
		}
	}

	return nil
}

func (s *ContextStore) lastOrderOf(ctx context.Context, orderNos []string) *models.OrderContext {
	if len(orderNos) == 0 {
		return nil
	}
	oc, err := s.GetOrder(ctx, orderNos[len(orderNos)-1])
	if err != nil {
		return nil
	}
	return oc
}

func (s *ContextStore) lastRef(ctx context.Context, phone string) (string, bool) {
	ref, ok, err := s.kv.Get(ctx, keyLastPhone+phone)
	if err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("Context store unavailable for phone link")
		return "", false
	}
	return ref, ok
}

func (s *ContextStore) loadRef(ctx context.Context, ref string) *models.OrderContext {
	var (
		oc  *models.OrderContext
		err error
	)
	switch {
	case strings.HasPrefix(ref, refOrderPrefix):
		oc, err = s.GetOrder(ctx, strings.TrimPrefix(ref, refOrderPrefix))
	case strings.HasPrefix(ref, refCartPrefix):
		oc, err = s.GetCart(ctx, strings.TrimPrefix(ref, refCartPrefix))
	default:
		// legacy bare order number
		oc, err = s.GetOrder(ctx, ref)
	}
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Context store unavailable for ref load")
		return nil
	}
	return oc
}
