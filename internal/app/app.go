package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/phenrril/storefront/internal/adapters/cartstore"
	"github.com/phenrril/storefront/internal/adapters/httpserver"
	"github.com/phenrril/storefront/internal/adapters/notify"
	"github.com/phenrril/storefront/internal/adapters/payments"
	"github.com/phenrril/storefront/internal/adapters/payments/mercadopago"
	"github.com/phenrril/storefront/internal/adapters/payments/offline"
	"github.com/phenrril/storefront/internal/adapters/ratelimit"
	"github.com/phenrril/storefront/internal/adapters/repo/memory"
	"github.com/phenrril/storefront/internal/adapters/repo/postgres"
	"github.com/phenrril/storefront/internal/config"
	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Store  domain.Store
	Redis  *redis.Client

	ProductUC     *usecase.ProductUC
	InventoryUC   *usecase.InventoryUC
	CartUC        *usecase.CartUC
	OrderUC       *usecase.OrderUC
	ReservationUC *usecase.ReservationUC
	Sweeper       *usecase.ReservationSweeper

	Carts       domain.CartStore
	MercadoPago *mercadopago.Gateway

	closers []io.Closer
}

// NewApp wires the use cases to the adapters selected by cfg. db is only
// used with the postgres driver.
func NewApp(cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: db}

	switch cfg.StoreDriver {
	case "postgres":
		if db == nil {
			return nil, errors.New("app: postgres driver needs a database")
		}
		a.Store = postgres.NewStore(db)
	default:
		a.Store = memory.NewStore()
	}

	cartSecret := cfg.CartSecret
	if cartSecret == "" {
		cartSecret = cfg.SecretKey
	}
	if cartSecret == "" {
		if cfg.Production() {
			return nil, errors.New("app: CART_SECRET or SECRET_KEY is required in production")
		}
		log.Warn().Msg("CART_SECRET not set, using an insecure development key")
		cartSecret = "dev-insecure"
	}

	var limiter domain.RateLimiter
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, a.Redis)
		limiter = ratelimit.NewFixedWindow(a.Redis, cfg.RateLimitMax, cfg.RateLimitWindow)
		a.Carts = cartstore.NewRedis(a.Redis, 0)
	} else {
		limiter = ratelimit.NewSlidingWindow(cfg.RateLimitMax, cfg.RateLimitWindow)
		a.Carts = memory.NewCartStore()
	}

	a.ProductUC = &usecase.ProductUC{Store: a.Store, LowStockThreshold: cfg.LowStockThreshold}
	a.InventoryUC = &usecase.InventoryUC{Products: a.Store.Products()}
	a.CartUC = &usecase.CartUC{
		Products: a.Store.Products(),
		Limiter:  limiter,
		Rules: usecase.CartRules{
			PriceEpsilon: cfg.PriceEpsilonDecimal(),
			MaxQuantity:  cfg.MaxItemQuantity,
			MaxItems:     cfg.MaxCartItems,
			MaxTotal:     cfg.MaxCartTotalDecimal(),
		},
		Secret: []byte(cartSecret),
	}
	a.ReservationUC = &usecase.ReservationUC{
		Store:     a.Store,
		Inventory: a.InventoryUC,
		TTL:       cfg.ReservationTTL,
	}
	a.Sweeper = &usecase.ReservationSweeper{Reservations: a.ReservationUC, Interval: cfg.ReservationCleanupInterval}

	a.OrderUC = &usecase.OrderUC{
		Store:     a.Store,
		Cart:      a.CartUC,
		Inventory: a.InventoryUC,
		Gateway:   a.paymentRouter(),
		Notifier:  a.notifiers(),
		Carts:     a.Carts,
		TaxRate:   cfg.TaxRateDecimal(),
	}
	return a, nil
}

func (a *App) paymentRouter() *payments.Router {
	r := payments.NewRouter().Register(offline.Gateway{}, "cod", "cash", "transfer")
	token := strings.TrimSpace(a.Config.MPAccessToken)
	if token == "" {
		log.Warn().Msg("MP_ACCESS_TOKEN not set, online payments disabled")
		return r
	}
	a.MercadoPago = mercadopago.NewGateway(mercadopago.Config{
		Token:      token,
		APIBase:    a.Config.MPAPIBase,
		BaseURL:    a.Config.PublicBaseURL,
		Secret:     a.Config.SecretKey,
		Production: a.Config.Production(),
	})
	return r.Register(a.MercadoPago, "mercadopago", "card")
}

func (a *App) notifiers() domain.Notifier {
	ns := notify.Multi{notify.Log{}}
	if brokers := a.Config.Brokers(); len(brokers) > 0 {
		k := notify.NewKafka(notify.NewKafkaWriter(brokers, a.Config.KafkaOrderTopic))
		a.closers = append(a.closers, k)
		ns = append(ns, k)
	}
	if a.Config.TelegramBotToken != "" && len(a.Config.ChatIDs()) > 0 {
		ns = append(ns, notify.NewTelegram(a.Config.TelegramBotToken, a.Config.ChatIDs()))
	}
	return ns
}

func (a *App) HTTPHandler() http.Handler {
	var lookup httpserver.PaymentLookup
	if a.MercadoPago != nil {
		lookup = a.MercadoPago
	}
	return httpserver.New(httpserver.Deps{
		Products:      a.ProductUC,
		Inventory:     a.InventoryUC,
		Cart:          a.CartUC,
		Orders:        a.OrderUC,
		Reservations:  a.ReservationUC,
		Carts:         a.Carts,
		Payments:      lookup,
		AdminToken:    a.Config.AdminToken,
		SecureCookies: a.Config.Production(),
		TrustProxy:    a.Config.TrustProxy,
	})
}

// Ping checks the external dependencies that must be up before serving.
func (a *App) Ping(ctx context.Context) error {
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// SeedDemo loads a small catalog into an empty store. It is meant for the
// memory driver in development.
func (a *App) SeedDemo(ctx context.Context) error {
	if _, n, err := a.ProductUC.List(ctx, domain.ProductFilter{}); err != nil || n > 0 {
		return err
	}
	prods := []domain.Product{
		{Name: "Phone Stand", PriceCents: 2500, TrackInventory: true, StockQuantity: 40},
		{Name: "Cable Organizer", PriceCents: 1800, TrackInventory: true, StockQuantity: 3},
		{Name: "Gift Card", PriceCents: 5000},
	}
	for i := range prods {
		prods[i].Active = true
		if err := a.ProductUC.Create(ctx, &prods[i]); err != nil {
			return err
		}
	}

	tee := &domain.Product{Name: "Logo Tee", PriceCents: 1200, Active: true, TrackInventory: true}
	if err := a.ProductUC.Create(ctx, tee); err != nil {
		return err
	}
	xl := int64(1400)
	variants := []domain.Variant{
		{ID: uuid.New(), SKU: "TEE-S-BLK", Options: domain.OptionsOf("Size", "S", "Color", "Black"), StockQuantity: 10, IsActive: true},
		{ID: uuid.New(), SKU: "TEE-M-BLK", Options: domain.OptionsOf("Size", "M", "Color", "Black"), StockQuantity: 2, IsActive: true},
		{ID: uuid.New(), SKU: "TEE-XL-BLK", Options: domain.OptionsOf("Size", "XL", "Color", "Black"), StockQuantity: 6, IsActive: true, OverridePriceCents: &xl},
	}
	if err := a.ProductUC.ConvertToVariantMode(ctx, tee.ID, variants); err != nil {
		return err
	}
	log.Info().Int("products", len(prods)+1).Msg("demo catalog seeded")
	return nil
}
