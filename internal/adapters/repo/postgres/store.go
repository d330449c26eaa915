package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/phenrril/storefront/internal/domain"
)

type Store struct {
	db           *gorm.DB
	products     *ProductRepo
	orders       *OrderRepo
	reservations *ReservationRepo
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		products:     NewProductRepo(db),
		orders:       NewOrderRepo(db),
		reservations: NewReservationRepo(db),
	}
}

func (s *Store) Products() domain.ProductRepo         { return s.products }
func (s *Store) Orders() domain.OrderRepo             { return s.orders }
func (s *Store) Reservations() domain.ReservationRepo { return s.reservations }

func (s *Store) Transaction(ctx context.Context, fn func(r domain.Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Migrate creates the schema plus the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Product{}, &domain.Variant{}, &domain.Order{}, &domain.OrderItem{}, &domain.Address{}, &domain.Reservation{},
	); err != nil {
		return err
	}
	stmts := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_one_default ON product_variants (product_id) WHERE is_default",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_variants_sku_unique ON product_variants (sku) WHERE sku IS NOT NULL AND sku <> ''",
		"CREATE INDEX IF NOT EXISTS idx_variants_options_gin ON product_variants USING gin (options)",
		"CREATE INDEX IF NOT EXISTS idx_reservations_active ON reservations (status, expires_at)",
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}
