package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"iara/internal/ai"
	"iara/internal/catalog"
	"iara/internal/config"
	"iara/internal/intent"
	"iara/internal/store"
	"iara/internal/zapi"
	"iara/pkg/models"
)

type sentMessage struct {
	phone string
	text  string
}

type fakeGateway struct {
	texts  []sentMessage
	images []sentMessage
	fail   bool
}

func (g *fakeGateway) SendText(_ context.Context, phone, message string) zapi.SendResult {
	if g.fail {
		return zapi.SendResult{Success: false, Error: "gateway down"}
	}
	g.texts = append(g.texts, sentMessage{phone, message})
	return zapi.SendResult{Success: true, MessageID: "out-1"}
}

func (g *fakeGateway) SendImage(_ context.Context, phone, imageURL, _ string) zapi.SendResult {
	g.images = append(g.images, sentMessage{phone, imageURL})
	return zapi.SendResult{Success: true}
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ []openai.ChatCompletionMessage) (string, error) {
	f.calls++
	return f.reply, f.err
}

const testCatalog = `[
	{"name": "Tabib Volume 2", "checkout": "https://x/checkout/2", "description": "Receitas naturais para o dia a dia.", "image": "https://x/img/2.jpg"},
	{"name": "Tabib Volume 3", "checkout": "https://x/checkout/3"}
]`

type fixture struct {
	router    *Router
	gateway   *fakeGateway
	completer *fakeCompleter
	contexts  *store.ContextStore
	replies   *Replies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "produtos.json")
	if err := os.WriteFile(path, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		AssistantName:   "Iara",
		BrandName:       "Paginatto",
		SecurityBlurb:   "Checkout com HTTPS e PSP oficial.",
		InstagramHandle: "@Paginatto",
		HistoryWindow:   20,
	}

	kv := store.NewMemory()
	gateway := &fakeGateway{}
	completer := &fakeCompleter{reply: "Posso ajudar sim."}
	contexts := store.NewContextStore(kv, "https://resume/")
	replies := NewReplies(cfg)

	r := New(Options{
		Catalog:       catalog.Load(path),
		Intents:       intent.NewClassifier(intent.DefaultRules()),
		Contexts:      contexts,
		Sessions:      store.NewSessionStore(kv),
		Seen:          store.NewSeenStore(kv),
		Menus:         store.NewMenuStore(kv),
		Limiter:       store.NewRateLimiter(kv, 0, 0),
		Gateway:       gateway,
		Completer:     completer,
		Prompts:       ai.NewPromptBuilder(cfg),
		Replies:       replies,
		HistoryWindow: 20,
	})

	return &fixture{router: r, gateway: gateway, completer: completer, contexts: contexts, replies: replies}
}

func TestHandleEmptyMessage(t *testing.T) {
	f := newFixture(t)
	for _, in := range []Inbound{
		{Phone: "", Text: "oi"},
		{Phone: "11999990000", Text: "   "},
	} {
		res := f.router.Handle(context.Background(), in)
		if res.Status != StatusIgnored {
			t.Errorf("Handle(%+v).Status = %s, expected ignored", in, res.Status)
		}
	}
	if len(f.gateway.texts) != 0 {
		t.Errorf("no sends expected, got %d", len(f.gateway.texts))
	}
}

func TestHandleProductMention(t *testing.T) {
	f := newFixture(t)

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "quero o produto volume 2",
	})

	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if !strings.Contains(res.Reply, "Tabib Volume 2") {
		t.Errorf("reply missing product name: %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "https://x/checkout/2") {
		t.Errorf("reply missing checkout URL: %q", res.Reply)
	}
	if strings.Contains(res.Reply, "https://x/checkout/3") {
		t.Errorf("reply leaked the wrong volume: %q", res.Reply)
	}
	if f.completer.calls != 0 {
		t.Errorf("product mention should not call the LLM, calls = %d", f.completer.calls)
	}
	if len(f.gateway.texts) != 1 || f.gateway.texts[0].phone != "5511999990000" {
		t.Errorf("sends = %v", f.gateway.texts)
	}
	if len(f.gateway.images) != 1 {
		t.Errorf("product with image should also send it, images = %v", f.gateway.images)
	}
}

func TestHandleNotReceivedCanned(t *testing.T) {
	f := newFixture(t)

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "nao recebi meu email",
	})

	if res.Status != StatusNeedID {
		t.Fatalf("Status = %s, expected need_id", res.Status)
	}
	if res.Reply != f.replies.AskOrderID {
		t.Errorf("reply = %q, expected the ask-order-id canned text", res.Reply)
	}
	if f.completer.calls != 0 {
		t.Errorf("canned branch must not call the LLM, calls = %d", f.completer.calls)
	}
}

func TestHandleNotReceivedWithContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.contexts.PutOrder(ctx, &models.OrderContext{
		OrderNo:  "123456",
		Customer: models.Customer{Phone: "5511999990000", Name: "Maria"},
	}); err != nil {
		t.Fatal(err)
	}

	res := f.router.Handle(ctx, Inbound{Phone: "11999990000", Text: "nao recebi meu email"})
	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if !strings.Contains(res.Reply, "123456") {
		t.Errorf("reply should carry the order summary: %q", res.Reply)
	}
}

func TestHandleResumeLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.contexts.PutOrder(ctx, &models.OrderContext{
		OrderNo:   "12345",
		CartToken: "abc",
		Customer:  models.Customer{Phone: "5511999990000"},
	}); err != nil {
		t.Fatal(err)
	}

	res := f.router.Handle(ctx, Inbound{Phone: "11999990000", Text: "quero continuar"})
	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if !strings.Contains(res.Reply, "https://resume/abc") {
		t.Errorf("reply missing resume link: %q", res.Reply)
	}
}

func TestHandleResumeWithoutContext(t *testing.T) {
	f := newFixture(t)

	res := f.router.Handle(context.Background(), Inbound{Phone: "11999990000", Text: "quero continuar"})
	if res.Status != StatusNeedID {
		t.Fatalf("Status = %s, expected need_id", res.Status)
	}
	if res.Reply != f.replies.AskOrderID {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestHandleDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := Inbound{Phone: "11999990000", Text: "quero o volume 2", MessageID: "m-1"}

	first := f.router.Handle(ctx, in)
	if first.Status != StatusSent {
		t.Fatalf("first Status = %s", first.Status)
	}

	second := f.router.Handle(ctx, in)
	if second.Status != StatusDuplicate {
		t.Fatalf("second Status = %s, expected duplicate", second.Status)
	}
	if len(f.gateway.texts) != 1 {
		t.Errorf("exactly one outbound send expected, got %d", len(f.gateway.texts))
	}
}

func TestHandleCompletionFailure(t *testing.T) {
	f := newFixture(t)
	f.completer.err = errors.New("timeout")

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "me conta uma curiosidade sobre o livro",
	})

	if res.Status != StatusSent {
		t.Fatalf("Status = %s, expected success-shaped result", res.Status)
	}
	if res.Reply != f.replies.Fallback {
		t.Errorf("reply = %q, expected fallback text", res.Reply)
	}
}

func TestHandleLLMReplyPostProcessed(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = "Primeira frase com https://spam.example/x dentro. Segunda frase. Terceira frase. Quarta."

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "me fala mais do conteudo",
	})

	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if strings.Contains(res.Reply, "https://") {
		t.Errorf("URL not scrubbed: %q", res.Reply)
	}
	if strings.Contains(res.Reply, "Terceira") {
		t.Errorf("reply not clipped to two sentences: %q", res.Reply)
	}
}

func TestHandleLLMKeepsLinkWhenAsked(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = "Claro, o site é https://paginatto.example agora."

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "me manda o link do site",
	})

	if !strings.Contains(res.Reply, "https://paginatto.example") {
		t.Errorf("link removed despite explicit request: %q", res.Reply)
	}
}

func TestHandleDeliveryDriftOverride(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = "Enviamos pelos Correios em até 5 dias úteis."

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "me fala mais",
	})

	if res.Reply != f.replies.Delivery {
		t.Errorf("shipping-flavored reply should be replaced by the digital-delivery text, got %q", res.Reply)
	}
}

func TestHandleCannotCheckWithoutContext(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = "Desculpe, não consigo verificar seu pedido por aqui."

	res := f.router.Handle(context.Background(), Inbound{
		Phone: "11999990000",
		Text:  "pode verificar minha compra?",
	})

	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if res.Reply != f.replies.AskOrderID {
		t.Errorf("contextless cannot-check reply should become the ask-order-id text, got %q", res.Reply)
	}
}

func TestHandleCannotCheckKeptWithContext(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = "Não consigo adiantar a data exata, mas seu pedido está confirmado."
	ctx := context.Background()

	if err := f.contexts.PutOrder(ctx, &models.OrderContext{
		OrderNo:  "123456",
		Customer: models.Customer{Phone: "5511999990000"},
	}); err != nil {
		t.Fatal(err)
	}

	res := f.router.Handle(ctx, Inbound{Phone: "11999990000", Text: "pode verificar minha compra?"})
	if res.Reply == f.replies.AskOrderID {
		t.Errorf("with a resolved context the generated reply should pass through")
	}
}

func TestHandleBareGreetingOverride(t *testing.T) {
	f := newFixture(t)

	res := f.router.Handle(context.Background(), Inbound{Phone: "11999990000", Text: "Oi"})
	if res.Status != StatusSent {
		t.Fatalf("Status = %s", res.Status)
	}
	if res.Route != "greeting" {
		t.Errorf("Route = %s, expected greeting", res.Route)
	}
	if f.completer.calls != 0 {
		t.Errorf("bare greeting should skip the LLM, calls = %d", f.completer.calls)
	}

	// Later greetings in an ongoing conversation go to the LLM.
	res = f.router.Handle(context.Background(), Inbound{Phone: "11999990000", Text: "oi"})
	if res.Route != "llm" {
		t.Errorf("second greeting Route = %s, expected llm", res.Route)
	}
}

func TestHandleMenuSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	phone := "11999990000"

	res := f.router.Handle(ctx, Inbound{Phone: phone, Text: "quero ver o catalogo"})
	if res.Status != StatusSent {
		t.Fatalf("menu Status = %s", res.Status)
	}
	if !strings.Contains(res.Reply, "1. Tabib Volume 2") {
		t.Errorf("menu reply = %q", res.Reply)
	}

	res = f.router.Handle(ctx, Inbound{Phone: phone, Text: "2"})
	if res.Status != StatusSent {
		t.Fatalf("selection Status = %s", res.Status)
	}
	if !strings.Contains(res.Reply, "Tabib Volume 3") {
		t.Errorf("selection 2 should resolve the second product, reply = %q", res.Reply)
	}
}

func TestHandleBareNumberWithoutMenu(t *testing.T) {
	f := newFixture(t)

	res := f.router.Handle(context.Background(), Inbound{Phone: "11999990000", Text: "2"})
	if res.Route == "menu" {
		t.Errorf("bare number without a shown menu must not select a product")
	}
}

func TestHandleRateLimited(t *testing.T) {
	f := newFixture(t)
	f.router.limiter = store.NewRateLimiter(store.NewMemory(), 2, 100)
	ctx := context.Background()
	phone := "11999990000"

	for i := 0; i < 2; i++ {
		if res := f.router.Handle(ctx, Inbound{Phone: phone, Text: "quero o volume 2"}); res.Status != StatusSent {
			t.Fatalf("message %d Status = %s", i+1, res.Status)
		}
	}

	res := f.router.Handle(ctx, Inbound{Phone: phone, Text: "quero o volume 2"})
	if res.Status != StatusRateLimited {
		t.Fatalf("Status = %s, expected rate_limited", res.Status)
	}
	if res.Reply != f.replies.PleaseWait {
		t.Errorf("first over-limit should send the wait notice, reply = %q", res.Reply)
	}

	res = f.router.Handle(ctx, Inbound{Phone: phone, Text: "quero o volume 2"})
	if res.Status != StatusRateLimited || res.Reply != "" {
		t.Errorf("later over-limit should be silent: %+v", res)
	}
}

func TestHandleGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.fail = true

	res := f.router.Handle(context.Background(), Inbound{Phone: "11999990000", Text: "quero o volume 2"})
	if res.Status != StatusError {
		t.Errorf("Status = %s, expected error on failed send", res.Status)
	}
	if res.Send == nil || res.Send.Success {
		t.Errorf("Send result should report the failure: %+v", res.Send)
	}
}
