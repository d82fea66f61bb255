package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration. Values come from the environment
// (godotenv is loaded by main before this runs); every field has a default so
// the service can boot in development with only the API credentials set.
type Config struct {
	Env  string
	Port string

	// Brand identity used in prompts and canned replies
	AssistantName   string
	BrandName       string
	SiteURL         string
	SupportURL      string
	CNPJ            string
	SecurityBlurb   string
	InstagramHandle string
	InstagramURL    string

	// Completion API
	OpenAIAPIKey string
	OpenAIModel  string

	// Messaging gateway (Z-API)
	ZAPIBaseURL     string
	ZAPIInstance    string
	ZAPIToken       string
	ZAPIClientToken string
	SendTextPath    string

	// Checkout platform
	CheckoutResumeBase     string
	CartPandaWebhookSecret string

	// Data files
	ProductsJSONPath string
	IntentRulesPath  string

	// Key-value store; empty RedisAddr selects the in-memory store
	RedisAddr     string
	RedisPassword string

	// Per-phone message ceilings; zero disables rate checking
	RateShortLimit int
	RateLongLimit  int

	// Trailing session entries handed to the completion API
	HistoryWindow int
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Env:  getenv("ENV", "production"),
		Port: getenv("PORT", "8080"),

		AssistantName:   getenv("ASSISTANT_NAME", "Iara"),
		BrandName:       getenv("BRAND_NAME", "Paginatto"),
		SiteURL:         getenv("SITE_URL", ""),
		SupportURL:      getenv("SUPPORT_URL", os.Getenv("SITE_URL")),
		CNPJ:            getenv("CNPJ", ""),
		SecurityBlurb:   getenv("SECURITY_BLURB", "Checkout com HTTPS e PSP oficial. Não pedimos senhas ou códigos."),
		InstagramHandle: getenv("INSTAGRAM_HANDLE", "@Paginatto"),
		InstagramURL:    getenv("INSTAGRAM_URL", ""),

		OpenAIAPIKey: getenv("OPENAI_API_KEY", ""),
		OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),

		ZAPIBaseURL:     getenv("ZAPI_BASE_URL", "https://api.z-api.io"),
		ZAPIInstance:    getenv("ZAPI_INSTANCE", ""),
		ZAPIToken:       getenv("ZAPI_TOKEN", ""),
		ZAPIClientToken: getenv("ZAPI_CLIENT_TOKEN", ""),
		SendTextPath:    getenv("SEND_TEXT_PATH", "/send-text"),

		CheckoutResumeBase:     getenv("CHECKOUT_RESUME_BASE", ""),
		CartPandaWebhookSecret: getenv("CARTPANDA_WEBHOOK_SECRET", ""),

		ProductsJSONPath: getenv("PRODUCTS_JSON_PATH", "produtos.json"),
		IntentRulesPath:  getenv("INTENT_RULES_PATH", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		RateShortLimit: getenvInt("RATE_SHORT_LIMIT", 0),
		RateLongLimit:  getenvInt("RATE_LONG_LIMIT", 0),

		HistoryWindow: getenvInt("HISTORY_WINDOW", 20),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
