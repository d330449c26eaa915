package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     string `mapstructure:"PORT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DbDSN       string `mapstructure:"DB_DSN"`
	DbHost      string `mapstructure:"DB_HOST"`
	DbPort      string `mapstructure:"DB_PORT"`
	DbUser      string `mapstructure:"DB_USER"`
	DbPassword  string `mapstructure:"DB_PASSWORD"`
	DbName      string `mapstructure:"DB_NAME"`
	DbSSLMode   string `mapstructure:"DB_SSLMODE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic string `mapstructure:"KAFKA_ORDER_TOPIC"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatIDs  string `mapstructure:"TELEGRAM_CHAT_IDS"`

	MPAccessToken string `mapstructure:"MP_ACCESS_TOKEN"`
	MPAPIBase     string `mapstructure:"MP_API_BASE"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	SecretKey     string `mapstructure:"SECRET_KEY"`
	CartSecret    string `mapstructure:"CART_SECRET"`
	AdminToken    string `mapstructure:"ADMIN_TOKEN"`
	TrustProxy    bool   `mapstructure:"TRUST_PROXY"`

	TaxRate         string `mapstructure:"TAX_RATE"`
	PriceEpsilon    string `mapstructure:"PRICE_EPSILON"`
	MaxItemQuantity int    `mapstructure:"MAX_ITEM_QUANTITY"`
	MaxCartItems    int    `mapstructure:"MAX_CART_ITEMS"`
	MaxCartTotal    string `mapstructure:"MAX_CART_TOTAL"`

	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	ReservationTTL             time.Duration `mapstructure:"RESERVATION_TTL"`
	ReservationCleanupInterval time.Duration `mapstructure:"RESERVATION_CLEANUP_INTERVAL"`
	LowStockThreshold          int           `mapstructure:"LOW_STOCK_THRESHOLD"`
}

var defaults = map[string]any{
	"APP_ENV":                      "development",
	"LOG_LEVEL":                    "info",
	"PORT":                         "8080",
	"STORE_DRIVER":                 "postgres",
	"DB_DSN":                       "",
	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "postgres",
	"DB_PASSWORD":                  "",
	"DB_NAME":                      "storefront",
	"DB_SSLMODE":                   "disable",
	"REDIS_ADDR":                   "",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"KAFKA_BROKERS":                "",
	"KAFKA_ORDER_TOPIC":            "order.placed",
	"TELEGRAM_BOT_TOKEN":           "",
	"TELEGRAM_CHAT_IDS":            "",
	"MP_ACCESS_TOKEN":              "",
	"MP_API_BASE":                  "https://api.mercadopago.com",
	"PUBLIC_BASE_URL":              "http://localhost:8080",
	"SECRET_KEY":                   "",
	"CART_SECRET":                  "",
	"ADMIN_TOKEN":                  "",
	"TRUST_PROXY":                  false,
	"TAX_RATE":                     "0",
	"PRICE_EPSILON":                "0.01",
	"MAX_ITEM_QUANTITY":            100,
	"MAX_CART_ITEMS":               50,
	"MAX_CART_TOTAL":               "50000",
	"RATE_LIMIT_MAX":               100,
	"RATE_LIMIT_WINDOW":            time.Hour,
	"RESERVATION_TTL":              15 * time.Minute,
	"RESERVATION_CLEANUP_INTERVAL": time.Minute,
	"LOW_STOCK_THRESHOLD":          5,
}

// Load reads the configuration from the environment. Values from a .env file
// must already be in the environment (godotenv in main).
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cf.validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	for key, s := range map[string]string{"TAX_RATE": c.TaxRate, "PRICE_EPSILON": c.PriceEpsilon, "MAX_CART_TOTAL": c.MaxCartTotal} {
		if _, err := decimal.NewFromString(s); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	if c.MaxItemQuantity <= 0 || c.MaxCartItems <= 0 || c.RateLimitMax <= 0 {
		return fmt.Errorf("config: limits must be positive")
	}
	return nil
}

func (c *Config) Production() bool { return c.AppEnv == "production" }

// DSN prefers DB_DSN and falls back to the discrete DB_* settings.
func (c *Config) DSN() string {
	if c.DbDSN != "" {
		return c.DbDSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DbHost, c.DbUser, c.DbPassword, c.DbName, c.DbPort, c.DbSSLMode)
}

func (c *Config) Brokers() []string { return splitList(c.KafkaBrokers) }

func (c *Config) ChatIDs() []string { return splitList(c.TelegramChatIDs) }

func (c *Config) TaxRateDecimal() decimal.Decimal { return decimal.RequireFromString(c.TaxRate) }

func (c *Config) PriceEpsilonDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.PriceEpsilon)
}

func (c *Config) MaxCartTotalDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.MaxCartTotal)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
