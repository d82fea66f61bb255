// Package app assembles the service graph.
package app

import (
	"github.com/rs/zerolog/log"

	"iara/internal/ai"
	"iara/internal/catalog"
	"iara/internal/config"
	"iara/internal/intent"
	"iara/internal/router"
	"iara/internal/store"
	"iara/internal/zapi"
)

// Services holds the application's wired components.
type Services struct {
	Config   *config.Config
	KV       store.KV
	Catalog  *catalog.Catalog
	Contexts *store.ContextStore
	Gateway  *zapi.Client
	Router   *router.Router
}

// NewServices builds the container. Redis backs the key-value store when an
// address is configured; tests and local development run on the in-memory
// store. A missing completion API key degrades the LLM fallback to the
// canned reply instead of failing startup.
func NewServices(cfg *config.Config) *Services {
	var kv store.KV
	if cfg.RedisAddr != "" {
		kv = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis store")
	} else {
		kv = store.NewMemory()
		log.Warn().Msg("REDIS_ADDR not set, using in-memory store")
	}

	cat := catalog.Load(cfg.ProductsJSONPath)

	rules, err := intent.LoadRules(cfg.IntentRulesPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.IntentRulesPath).Msg("Intent rules load failed, using defaults")
		rules = intent.DefaultRules()
	}

	var completer ai.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = ai.NewOpenAIResponder(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		completer = ai.Disabled{}
		log.Warn().Msg("OPENAI_API_KEY not set, LLM fallback will use canned replies")
	}

	gateway := zapi.New(zapi.Options{
		BaseURL:      cfg.ZAPIBaseURL,
		Instance:     cfg.ZAPIInstance,
		Token:        cfg.ZAPIToken,
		ClientToken:  cfg.ZAPIClientToken,
		SendTextPath: cfg.SendTextPath,
	})

	contexts := store.NewContextStore(kv, cfg.CheckoutResumeBase)

	rt := router.New(router.Options{
		Catalog:       cat,
		Intents:       intent.NewClassifier(rules),
		Contexts:      contexts,
		Sessions:      store.NewSessionStore(kv),
		Seen:          store.NewSeenStore(kv),
		Menus:         store.NewMenuStore(kv),
		Limiter:       store.NewRateLimiter(kv, cfg.RateShortLimit, cfg.RateLongLimit),
		Gateway:       gateway,
		Completer:     completer,
		Prompts:       ai.NewPromptBuilder(cfg),
		Replies:       router.NewReplies(cfg),
		HistoryWindow: cfg.HistoryWindow,
	})

	return &Services{
		Config:   cfg,
		KV:       kv,
		Catalog:  cat,
		Contexts: contexts,
		Gateway:  gateway,
		Router:   rt,
	}
}
