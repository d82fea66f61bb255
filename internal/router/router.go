// Package router holds the message-routing pipeline: the priority-ordered
// decision list that turns one inbound WhatsApp message into exactly one
// outbound reply (or a documented no-op).
package router

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"iara/internal/ai"
	"iara/internal/catalog"
	"iara/internal/intent"
	"iara/internal/store"
	"iara/internal/textutil"
	"iara/internal/zapi"
	"iara/pkg/models"
)

// Status values returned to the inbound webhook caller.
const (
	StatusSent        = "sent"
	StatusDuplicate   = "duplicate"
	StatusIgnored     = "ignored"
	StatusNeedID      = "need_id"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// Inbound is a gateway message after field extraction.
type Inbound struct {
	Phone     string
	Text      string
	MessageID string
	SessionID string
}

// Result is the webhook response body for one inbound message.
type Result struct {
	Status string           `json:"status"`
	Route  string           `json:"route,omitempty"`
	Reply  string           `json:"reply,omitempty"`
	Send   *zapi.SendResult `json:"send,omitempty"`
}

// Gateway is the outbound side of the messaging platform. Sends report an
// explicit result instead of returning errors.
type Gateway interface {
	SendText(ctx context.Context, phone, message string) zapi.SendResult
	SendImage(ctx context.Context, phone, imageURL, caption string) zapi.SendResult
}

// Router wires the stores, the classifier, the catalog and the collaborators
// into the decision list.
type Router struct {
	catalog   *catalog.Catalog
	intents   *intent.Classifier
	contexts  *store.ContextStore
	sessions  *store.SessionStore
	seen      *store.SeenStore
	menus     *store.MenuStore
	limiter   *store.RateLimiter
	gateway   Gateway
	completer ai.Completer
	prompts   *ai.PromptBuilder
	replies   *Replies

	historyWindow int
	now           func() time.Time
}

// Options bundle the Router's collaborators.
type Options struct {
	Catalog       *catalog.Catalog
	Intents       *intent.Classifier
	Contexts      *store.ContextStore
	Sessions      *store.SessionStore
	Seen          *store.SeenStore
	Menus         *store.MenuStore
	Limiter       *store.RateLimiter
	Gateway       Gateway
	Completer     ai.Completer
	Prompts       *ai.PromptBuilder
	Replies       *Replies
	HistoryWindow int
}

func New(opts Options) *Router {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	return &Router{
		catalog:       opts.Catalog,
		intents:       opts.Intents,
		contexts:      opts.Contexts,
		sessions:      opts.Sessions,
		seen:          opts.Seen,
		menus:         opts.Menus,
		limiter:       opts.Limiter,
		gateway:       opts.Gateway,
		completer:     opts.Completer,
		prompts:       opts.Prompts,
		replies:       opts.Replies,
		historyWindow: opts.HistoryWindow,
		now:           time.Now,
	}
}

var menuNumberRx = regexp.MustCompile(`^\d{1,2}$`)

var bareGreetings = map[string]struct{}{
	"oi": {}, "oii": {}, "oiii": {}, "ola": {}, "opa": {}, "ei": {},
	"bom dia": {}, "boa tarde": {}, "boa noite": {},
	"oi tudo bem": {}, "ola tudo bem": {}, "tudo bem": {},
}

// deliveryDriftRx catches generated replies that imply physical shipping.
var deliveryDriftRx = regexp.MustCompile(`correios|transportadora|frete|rastre|codigo de envio|endereco de entrega`)

// cannotCheckRx catches generated replies that admit the assistant cannot
// look the order up. Without a resolved context that admission is useless to
// the customer; asking for an order number or CPF is not.
var cannotCheckRx = regexp.MustCompile(`nao consigo|nao tenho acesso|sem acesso`)

// Handle runs the decision list for one inbound message. It never returns an
// error: every failure collapses into a Result the webhook can report.
func (r *Router) Handle(ctx context.Context, in Inbound) Result {
	phone := textutil.NormalizePhone(in.Phone)
	text := strings.TrimSpace(in.Text)
	if phone == "" || text == "" {
		return Result{Status: StatusIgnored, Route: "empty"}
	}
	norm := textutil.Normalize(text)

	// Record-then-process: a retried webhook delivery for the same message
	// id must not produce a second reply.
	if in.MessageID != "" {
		added, err := r.seen.MarkSeen(ctx, in.MessageID)
		if err != nil {
			log.Warn().Err(err).Msg("Dedup check failed, proceeding")
		} else if !added {
			return Result{Status: StatusDuplicate, Route: "dedup"}
		}
	}

	if allowed, notify := r.limiter.Allow(ctx, phone); !allowed {
		res := Result{Status: StatusRateLimited, Route: "rate"}
		if notify {
			send := r.gateway.SendText(ctx, phone, r.replies.PleaseWait)
			res.Reply = r.replies.PleaseWait
			res.Send = &send
		}
		return res
	}

	flags := r.intents.Classify(text)

	if flags[intent.FlagResume] {
		oc := r.contexts.Resolve(ctx, phone, text)
		if link := oc.BestLink(); link != "" {
			msg := "Claro! Seu pedido está te esperando. É só finalizar por aqui: " + link
			return r.send(ctx, phone, "resume", msg)
		}
		res := r.send(ctx, phone, "resume", r.replies.AskOrderID)
		if res.Status == StatusSent {
			res.Status = StatusNeedID
		}
		return res
	}

	// First-match-wins across the quick replies: one canned message even
	// when several flags are true.
	for _, q := range []struct {
		flag  intent.Flag
		route string
	}{
		{intent.FlagDelivery, "delivery"},
		{intent.FlagNotRecv, "not_received"},
		{intent.FlagSecurity, "security"},
		{intent.FlagPayment, "payment"},
		{intent.FlagInstagram, "instagram"},
		{intent.FlagSupport, "support"},
		{intent.FlagPurchase, "purchase"},
	} {
		if !flags[q.flag] {
			continue
		}
		switch q.flag {
		case intent.FlagNotRecv:
			if oc := r.contexts.Resolve(ctx, phone, text); oc != nil {
				return r.send(ctx, phone, q.route, "Encontrei seu pedido! "+oc.Summary()+
					"\nQuer que eu reenvie o acesso para o e-mail cadastrado?")
			}
			res := r.send(ctx, phone, q.route, r.replies.AskOrderID)
			if res.Status == StatusSent {
				res.Status = StatusNeedID
			}
			return res
		case intent.FlagSupport:
			reply := r.replies.SupportMenu(r.catalog.MenuText())
			if r.catalog.Len() > 0 {
				if err := r.menus.MarkShown(ctx, phone); err != nil {
					log.Warn().Err(err).Msg("Menu marker write failed")
				}
			}
			return r.send(ctx, phone, q.route, reply)
		default:
			return r.send(ctx, phone, q.route, r.cannedFor(q.flag))
		}
	}

	if menuNumberRx.MatchString(norm) && r.menus.Shown(ctx, phone) {
		n, _ := strconv.Atoi(norm)
		if p := r.catalog.At(n); p != nil {
			oc := r.contexts.Resolve(ctx, phone, text)
			return r.sendProduct(ctx, phone, "menu", p, oc)
		}
	}

	if p := r.catalog.Find(text); p != nil {
		oc := r.contexts.Resolve(ctx, phone, text)
		return r.sendProduct(ctx, phone, "product", p, oc)
	}

	return r.llmFallback(ctx, phone, text, norm)
}

func (r *Router) cannedFor(f intent.Flag) string {
	switch f {
	case intent.FlagDelivery:
		return r.replies.Delivery
	case intent.FlagSecurity:
		return r.replies.Security
	case intent.FlagPayment:
		return r.replies.Payment
	case intent.FlagInstagram:
		return r.replies.Instagram
	case intent.FlagPurchase:
		return r.replies.Purchase
	}
	return r.replies.Fallback
}

// sendProduct renders the structured product reply: name, clipped
// description, link, delivery note. A richer phone-linked context swaps the
// checkout URL for the resume link.
func (r *Router) sendProduct(ctx context.Context, phone, route string, p *models.Product, oc *models.OrderContext) Result {
	link := p.Checkout
	if l := oc.BestLink(); l != "" {
		link = l
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Boa escolha! 📘 %s", p.Name)
	if d := strings.TrimSpace(p.Description); d != "" {
		sb.WriteString("\n" + ClipSentences(d, 2))
	}
	fmt.Fprintf(&sb, "\nGaranta o seu aqui: %s", link)
	sb.WriteString("\nEntrega 100% digital, acesso imediato após o pagamento!")

	res := r.send(ctx, phone, route, sb.String())
	if res.Status == StatusSent && p.Image != "" {
		img := r.gateway.SendImage(ctx, phone, p.Image, p.Name)
		if !img.Success {
			log.Warn().Str("phone", phone).Msg("Product image send failed")
		}
	}
	return res
}

// llmFallback runs the completion path: history append, context resolution,
// prompt assembly, post-processing, send. A completion failure is replaced by
// the canned fallback reply and still yields a success-shaped result.
func (r *Router) llmFallback(ctx context.Context, phone, text, norm string) Result {
	firstMessage := r.sessions.Empty(ctx, phone)
	if err := r.sessions.Append(ctx, phone, models.RoleUser, text); err != nil {
		log.Warn().Err(err).Msg("Session append failed")
	}

	oc := r.contexts.Resolve(ctx, phone, text)
	now := r.now()

	if _, ok := bareGreetings[norm]; ok && firstMessage {
		reply := ai.Greeting(now) + "! Aqui é a assistente virtual. Como posso te ajudar hoje? 😊"
		res := r.send(ctx, phone, "greeting", reply)
		r.appendAssistant(ctx, phone, reply)
		return res
	}

	reply := r.complete(ctx, phone, text, oc, now)
	res := r.send(ctx, phone, "llm", reply)
	r.appendAssistant(ctx, phone, reply)
	return res
}

func (r *Router) complete(ctx context.Context, phone, text string, oc *models.OrderContext, now time.Time) string {
	history, err := r.sessions.Window(ctx, phone, r.historyWindow)
	if err != nil {
		log.Warn().Err(err).Msg("Session window read failed")
	}
	if len(history) == 0 {
		history = []models.ChatEntry{{Role: models.RoleUser, Content: text}}
	}

	system := r.prompts.System(oc, nil, now)
	out, err := r.completer.Complete(ctx, r.prompts.Messages(system, oc, history))
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Completion failed, using fallback reply")
		return r.replies.Fallback
	}

	out = ClipSentences(out, 2)
	out = ScrubLinks(text, out)
	normOut := textutil.Normalize(out)
	if deliveryDriftRx.MatchString(normOut) {
		return r.replies.Delivery
	}
	if oc == nil && cannotCheckRx.MatchString(normOut) {
		return r.replies.AskOrderID
	}
	if strings.TrimSpace(out) == "" {
		return r.replies.Fallback
	}
	return out
}

func (r *Router) appendAssistant(ctx context.Context, phone, reply string) {
	if err := r.sessions.Append(ctx, phone, models.RoleAssistant, reply); err != nil {
		log.Warn().Err(err).Msg("Session append failed")
	}
}

// send delivers one text and maps the gateway outcome onto the webhook
// status.
func (r *Router) send(ctx context.Context, phone, route, message string) Result {
	sendRes := r.gateway.SendText(ctx, phone, message)
	status := StatusSent
	if !sendRes.Success {
		status = StatusError
	}
	return Result{Status: status, Route: route, Reply: message, Send: &sendRes}
}
