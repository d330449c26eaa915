package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultLowStockThreshold = 5

type Product struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug              string    `gorm:"uniqueIndex;size:140"`
	Name              string    `gorm:"size:180"`
	PriceCents        int64     `gorm:"not null;default:0"`
	Active            bool      `gorm:"not null;index"`
	HasVariants       bool      `gorm:"not null"`
	TrackInventory    bool      `gorm:"not null"`
	StockQuantity     int       `gorm:"not null;default:0;check:chk_products_stock_nonneg,stock_quantity >= 0"`
	LowStockThreshold int       `gorm:"not null;default:5"`
	Variants          []Variant `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Product) Threshold() int {
	if p.LowStockThreshold > 0 {
		return p.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

func (p *Product) Price() decimal.Decimal {
	return CentsToDecimal(p.PriceCents)
}

// ActiveVariants returns the loaded variants that take part in availability.
func (p *Product) ActiveVariants() []Variant {
	out := make([]Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

// FindVariantByOptions returns the first active variant whose options contain
// every pair of the selection.
func (p *Product) FindVariantByOptions(sel Options) *Variant {
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.IsActive && v.Options.Matches(sel) {
			return v
		}
	}
	return nil
}

type Variant struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID          uuid.UUID `gorm:"type:uuid;index"`
	SKU                string    `gorm:"size:100;index"`
	Options            Options   `gorm:"type:jsonb;serializer:json"`
	OverridePriceCents *int64
	StockQuantity      int  `gorm:"not null;default:0;check:chk_variants_stock_nonneg,stock_quantity >= 0"`
	LowStockThreshold  int  `gorm:"not null;default:0"`
	IsActive           bool `gorm:"not null"`
	IsDefault          bool `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Variant) TableName() string { return "product_variants" }

// EffectivePriceCents falls back to the parent price when no override is set.
func (v *Variant) EffectivePriceCents(parent *Product) int64 {
	if v.OverridePriceCents != nil {
		return *v.OverridePriceCents
	}
	if parent == nil {
		return 0
	}
	return parent.PriceCents
}

func (v *Variant) Threshold(parent *Product) int {
	if v.LowStockThreshold > 0 {
		return v.LowStockThreshold
	}
	if parent != nil {
		return parent.Threshold()
	}
	return DefaultLowStockThreshold
}

type ProductFilter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}

func CentsToDecimal(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func DecimalToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
