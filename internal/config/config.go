package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// LLM providers
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

type Config struct {
	// HTTP Server
	Port string

	// CIDRs of reverse proxies whose X-Forwarded-For is believed, on top of
	// loopback and private ranges.
	TrustedProxies []string

	// Login gate
	AppPassword string
	SessionTTL  time.Duration

	// Budgeting API
	YNABAccessToken       string
	YNABDefaultBudgetName string
	YNABBaseURL           string
	YNABBudgetFallback    bool
	BudgetCacheTTL        time.Duration

	// Assistant
	LLMProvider         string
	AnthropicAPIKey     string
	GeminiAPIKey        string
	LLMModel            string
	LLMMaxTokens        int
	LLMSummaryMaxTokens int

	// Conversation store
	StoreBackend    string
	SQLiteDBPath    string
	SupabaseURL     string
	SupabaseAnonKey string

	// AMQP (optional chat turn events)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	LogLevel string
}

// Load reads configuration from the environment. A config file named by
// LIFE_ASSISTANT_CONFIG (any format viper understands) supplies values the
// environment does not set.
func Load() *Config {
	v := viper.New()
	setDefaults(v)

	if path := strings.TrimSpace(os.Getenv("LIFE_ASSISTANT_CONFIG")); path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}
	v.AutomaticEnv()

	return &Config{
		Port:           v.GetString("PORT"),
		TrustedProxies: getList(v, "TRUSTED_PROXIES"),

		AppPassword: v.GetString("APP_PASSWORD"),
		SessionTTL:  getDuration(v, "SESSION_TTL", 12*time.Hour),

		YNABAccessToken:       strings.TrimSpace(v.GetString("YNAB_ACCESS_TOKEN")),
		YNABDefaultBudgetName: strings.TrimSpace(v.GetString("YNAB_DEFAULT_BUDGET_NAME")),
		YNABBaseURL:           v.GetString("YNAB_BASE_URL"),
		YNABBudgetFallback:    v.GetBool("YNAB_BUDGET_FALLBACK"),
		BudgetCacheTTL:        getDuration(v, "BUDGET_CACHE_TTL", 5*time.Minute),

		LLMProvider:         strings.ToLower(v.GetString("LLM_PROVIDER")),
		AnthropicAPIKey:     strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
		GeminiAPIKey:        strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		LLMModel:            v.GetString("LLM_MODEL"),
		LLMMaxTokens:        getInt(v, "LLM_MAX_TOKENS", 500),
		LLMSummaryMaxTokens: getInt(v, "LLM_SUMMARY_MAX_TOKENS", 100),

		StoreBackend:    strings.ToLower(v.GetString("STORE_BACKEND")),
		SQLiteDBPath:    v.GetString("SQLITE_DB_PATH"),
		SupabaseURL:     strings.TrimSpace(v.GetString("SUPABASE_URL")),
		SupabaseAnonKey: strings.TrimSpace(v.GetString("SUPABASE_ANON_KEY")),

		AMQPURL:        v.GetString("AMQP_URL"),
		AMQPExchange:   v.GetString("AMQP_EXCHANGE"),
		AMQPRoutingKey: v.GetString("AMQP_ROUTING_KEY"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8501")
	v.SetDefault("YNAB_BASE_URL", "https://api.ynab.com/v1")
	v.SetDefault("YNAB_BUDGET_FALLBACK", false)
	v.SetDefault("LLM_PROVIDER", ProviderClaude)
	v.SetDefault("STORE_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_DB_PATH", "./data/life-assistant.db")
	v.SetDefault("AMQP_EXCHANGE", "life_assistant")
	v.SetDefault("AMQP_ROUTING_KEY", "chat.turn")
	v.SetDefault("LOG_LEVEL", "info")
}

// LLMAPIKey returns the key for the selected provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.AnthropicAPIKey
}

// RequiredVars lists the environment variables that must be set for the
// selected backends and provider.
func (c *Config) RequiredVars() []string {
	vars := []string{"APP_PASSWORD"}
	switch c.LLMProvider {
	case ProviderGemini:
		vars = append(vars, "GEMINI_API_KEY")
	default:
		vars = append(vars, "ANTHROPIC_API_KEY")
	}
	if c.StoreBackend == BackendSupabase {
		vars = append(vars, "SUPABASE_URL", "SUPABASE_ANON_KEY")
	}
	return vars
}

// MissingVars returns the required variables that have no value.
func (c *Config) MissingVars() []string {
	values := map[string]string{
		"APP_PASSWORD":      c.AppPassword,
		"ANTHROPIC_API_KEY": c.AnthropicAPIKey,
		"GEMINI_API_KEY":    c.GeminiAPIKey,
		"SUPABASE_URL":      c.SupabaseURL,
		"SUPABASE_ANON_KEY": c.SupabaseAnonKey,
	}
	var missing []string
	for _, name := range c.RequiredVars() {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	validBackends := []string{BackendSQLite, BackendSupabase}
	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	validProviders := []string{ProviderClaude, ProviderGemini}
	if !slices.Contains(validProviders, c.LLMProvider) {
		errors = append(errors, fmt.Sprintf("invalid LLM provider '%s': must be one of %v", c.LLMProvider, validProviders))
	}

	for _, name := range c.MissingVars() {
		errors = append(errors, fmt.Sprintf("%s is required", name))
	}

	if c.StoreBackend == BackendSQLite && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.StoreBackend == BackendSupabase && c.SupabaseURL != "" {
		if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid Supabase URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
	}

	if u, err := url.Parse(c.YNABBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid YNAB base URL '%s'", c.YNABBaseURL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LLMMaxTokens < 1 {
		errors = append(errors, fmt.Sprintf("invalid LLM max tokens %d: must be at least 1", c.LLMMaxTokens))
	}
	if c.LLMSummaryMaxTokens < 1 || c.LLMSummaryMaxTokens > c.LLMMaxTokens {
		errors = append(errors, fmt.Sprintf("invalid LLM summary max tokens %d: must be between 1 and %d", c.LLMSummaryMaxTokens, c.LLMMaxTokens))
	}

	if c.BudgetCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid budget cache TTL %v: must be at least 1 second", c.BudgetCacheTTL))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if raw := strings.TrimSpace(v.GetString(key)); raw != "" {
		if i, err := strconv.Atoi(raw); err == nil {
			return i
		}
	}
	return defaultValue
}

func getList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range strings.Split(v.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if raw := strings.TrimSpace(v.GetString(key)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return defaultValue
}
