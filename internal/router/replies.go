package router

import (
	"fmt"
	"strings"

	"iara/internal/config"
)

// Replies are the canned texts for the intent shortcuts. They are rendered
// once at startup from the brand configuration.
type Replies struct {
	Delivery     string
	AskOrderID   string
	Security     string
	Payment      string
	Instagram    string
	SupportIntro string
	Purchase     string
	PleaseWait   string
	Fallback     string
}

// NewReplies renders the canned reply set.
func NewReplies(cfg *config.Config) *Replies {
	security := cfg.SecurityBlurb
	if cfg.CNPJ != "" {
		security += " CNPJ: " + cfg.CNPJ + "."
	}
	if cfg.SiteURL != "" {
		security += " Site oficial: " + cfg.SiteURL
	}

	instagram := "Que ótimo! Siga " + cfg.InstagramHandle + " e comente em 3 publicações para liberar o bônus."
	if cfg.InstagramURL != "" {
		instagram += " Perfil: " + cfg.InstagramURL
	}
	instagram += " Depois me manda seu @ para eu validar, combinado?"

	support := "Posso te ajudar por aqui mesmo! Me conta rapidinho:"
	if cfg.SupportURL != "" {
		support = fmt.Sprintf("Posso te ajudar por aqui mesmo, ou se preferir fale com o suporte em %s. Me conta rapidinho:", cfg.SupportURL)
	}

	return &Replies{
		Delivery: "Nosso produto é 100% digital! Assim que o pagamento é confirmado, " +
			"o acesso chega no seu e-mail e aqui no WhatsApp. Quer que eu verifique seu pedido?",
		AskOrderID: "Sem problemas, vou verificar para você! Me passa o número do pedido " +
			"ou o CPF da compra, por favor?",
		Security: security,
		Payment: "Poxa, vamos resolver isso juntos! Em que etapa o pagamento travou? " +
			"Se quiser, posso te mandar um link novo para finalizar.",
		Instagram:    instagram,
		SupportIntro: support,
		Purchase: "Parabéns pela compra! 🎉 O acesso chega no e-mail cadastrado em poucos minutos. " +
			"Não chegou? Me manda o número do pedido que eu reenvio.",
		PleaseWait: "Recebi suas mensagens! Me dá um instante que já te respondo, tá bom?",
		Fallback: "Desculpa, tive um probleminha aqui agora. Pode repetir sua mensagem " +
			"em instantes? Se for urgente, me manda o número do pedido que eu verifico.",
	}
}

// SupportMenu renders the support intro followed by the product menu when the
// catalog has entries.
func (r *Replies) SupportMenu(menu string) string {
	if strings.TrimSpace(menu) == "" {
		return r.SupportIntro
	}
	return r.SupportIntro + "\n\n" + menu
}
