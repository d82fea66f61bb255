package ai

import (
	"fmt"
	"strings"
	"time"

	"iara/internal/config"
	"iara/internal/textutil"
	"iara/pkg/models"

	"github.com/sashabaranov/go-openai"
)

// saoPaulo is the reference timezone for greetings. Falls back to a fixed
// UTC-3 zone when the tzdata is unavailable.
var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}()

// Greeting returns the Brazilian time-of-day salutation for now.
func Greeting(now time.Time) string {
	h := now.In(saoPaulo).Hour()
	switch {
	case h >= 5 && h < 12:
		return "Bom dia"
	case h >= 12 && h < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

// PromptBuilder renders the system instruction and assembles the message list
// sent to the completion API.
type PromptBuilder struct {
	cfg *config.Config
}

func NewPromptBuilder(cfg *config.Config) *PromptBuilder {
	return &PromptBuilder{cfg: cfg}
}

// System builds the brand-voice instruction, embedding the resolved order
// context and the focused product when present.
func (b *PromptBuilder) System(oc *models.OrderContext, product *models.Product, now time.Time) string {
	greeting := Greeting(now)
	name := ""
	if oc != nil {
		name = textutil.FirstName(oc.Customer.Name)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Você é %s, assistente de vendas da %s no WhatsApp. ", b.cfg.AssistantName, b.cfg.BrandName)
	if name != "" {
		fmt.Fprintf(&sb, "Saudação curta: '%s, %s! Como posso ajudar?'. ", greeting, name)
	} else {
		fmt.Fprintf(&sb, "Saudação curta: '%s! Como posso ajudar?'. ", greeting)
	}
	sb.WriteString("Respostas curtas: 1-2 frases, sem textão. ")
	sb.WriteString("Produto e entrega: 100% DIGITAL (e-book). Nunca fale de endereço, frete, correios, transportadora ou rastreio; ")
	sb.WriteString("se perguntarem por entrega, diga que o acesso chega por e-mail/WhatsApp após o pagamento e ofereça checar o pedido. ")
	sb.WriteString("Se não pedirem link ou site, não envie link algum. ")
	fmt.Fprintf(&sb, "Se falarem de segurança: %s ", b.cfg.SecurityBlurb)
	sb.WriteString("Se não recebeu por e-mail: peça nº do pedido ou CPF/CNPJ e ofereça reenvio. ")
	sb.WriteString("Se o pagamento travou: pergunte em que etapa e ofereça ajuda para finalizar. ")
	if b.cfg.InstagramHandle != "" {
		fmt.Fprintf(&sb, "Se citarem Instagram: ofereça o bônus após seguir %s e comentar em 3 posts; peça o @ para validar. ", b.cfg.InstagramHandle)
	}
	sb.WriteString("Nunca peça senhas ou códigos. Nunca prometa alterar preço.")

	if product != nil {
		fmt.Fprintf(&sb, " Produto foco: %s. Entrega digital imediata.", product.Name)
	}
	if oc != nil && oc.ResumeLink != "" {
		fmt.Fprintf(&sb, " Use este link de retomada quando apropriado: %s", oc.ResumeLink)
	}
	return sb.String()
}

// Messages assembles system instruction, optional order summary and the
// trailing history window into the completion request payload.
func (b *PromptBuilder) Messages(system string, oc *models.OrderContext, history []models.ChatEntry) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	}}
	if summary := oc.Summary(); summary != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: "DADOS_DO_PEDIDO: " + summary,
		})
	}
	for _, e := range history {
		role := openai.ChatMessageRoleUser
		if e.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: e.Content})
	}
	return msgs
}
