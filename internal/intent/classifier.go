// Package intent detects customer intent through deterministic keyword
// matching over normalized text. The keyword lists are data, not logic: they
// can be replaced by an external JSON file without touching the matcher.
package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"iara/internal/textutil"
)

// Flag identifies one detected intent. Flags are independent: several may be
// true for the same message; priority between them belongs to the router.
type Flag string

const (
	FlagDelivery  Flag = "delivery_question"
	FlagNotRecv   Flag = "not_received"
	FlagSecurity  Flag = "security_concern"
	FlagPayment   Flag = "payment_problem"
	FlagInstagram Flag = "instagram_bonus"
	FlagSupport   Flag = "support_request"
	FlagResume    Flag = "resume_request"
	FlagPurchase  Flag = "purchase_confirmation"
)

// Rule maps one flag to the keywords that raise it.
type Rule struct {
	Flag     Flag     `json:"flag"`
	Keywords []string `json:"keywords"`
}

// DefaultRules is the built-in keyword table. Keywords are matched against
// normalized text, so they must themselves be accent-free and lowercase.
func DefaultRules() []Rule {
	return []Rule{
		{FlagDelivery, []string{
			"entrega", "entregam", "envio", "enviam", "frete", "prazo",
			"quando chega", "como chega", "onde chega", "como recebo",
			"rastreio", "rastreamento", "codigo de rastreio", "correios",
			"transportadora", "endereco", "cep", "livro fisico", "fisico",
		}},
		{FlagNotRecv, []string{
			"nao chegou", "nao recebi", "nao veio", "cade meu", "email", "e mail",
		}},
		{FlagSecurity, []string{
			"seguran", "golpe", "fraude", "medo", "confiavel", "desconfiado",
		}},
		{FlagPayment, []string{
			"nao consegui pagar", "pagamento", "pix", "boleto", "cartao",
			"travou", "recusado", "sem saldo", "sem limite",
		}},
		{FlagInstagram, []string{
			"instagram", "seguir", "comentar", "post", "bonus",
		}},
		{FlagSupport, []string{
			"suporte", "ajuda", "atendimento", "atendente", "humano",
			"catalogo", "menu", "produtos", "cardapio",
		}},
		{FlagResume, []string{
			"continuar", "retomar", "finalizar", "concluir", "terminar a compra",
			"voltar a comprar", "pagar agora", "quero pagar",
		}},
		{FlagPurchase, []string{
			"ja paguei", "ja comprei", "paguei", "comprei", "pagamento aprovado",
			"compra aprovada",
		}},
	}
}

// LoadRules reads an external rule table from a JSON file. An empty path
// returns the defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse intent rules: %w", err)
	}
	return rules, nil
}

// Classifier evaluates the rule table against normalized text.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier, normalizing every keyword once up front.
func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		nr := Rule{Flag: r.Flag}
		for _, kw := range r.Keywords {
			if n := textutil.Normalize(kw); n != "" {
				nr.Keywords = append(nr.Keywords, n)
			}
		}
		normalized = append(normalized, nr)
	}
	return &Classifier{rules: normalized}
}

// Classify returns the set of flags raised by text. A flag is set when the
// normalized text contains any of its keywords as a substring.
func (c *Classifier) Classify(text string) map[Flag]bool {
	t := textutil.Normalize(text)
	flags := make(map[Flag]bool, len(c.rules))
	if t == "" {
		return flags
	}
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(t, kw) {
				flags[r.Flag] = true
				break
			}
		}
	}
	return flags
}
