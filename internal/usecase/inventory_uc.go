package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
)

// InventoryUC answers availability questions from the stock counters. Every
// method except the bulk ones is a pure function of the loaded product; the
// product must carry its variants when HasVariants is set.
type InventoryUC struct {
	Products domain.ProductRepo
}

type QuantityCheck struct {
	Valid     bool   `json:"valid"`
	Message   string `json:"message,omitempty"`
	Available int    `json:"available"`
}

type StockDisplay struct {
	Quantity int                `json:"quantity"`
	Status   domain.StockStatus `json:"status"`
	Message  string             `json:"human_message"`
}

type StockSummary struct {
	ProductID  uuid.UUID          `json:"product_id"`
	HasStock   bool               `json:"has_stock"`
	TotalStock int                `json:"total_stock"`
	Status     domain.StockStatus `json:"status"`
	Message    string             `json:"human_message"`
}

func (uc *InventoryUC) HasStock(p *domain.Product) bool {
	if !p.TrackInventory {
		return true
	}
	if !p.HasVariants {
		return p.StockQuantity > 0
	}
	for _, v := range p.ActiveVariants() {
		if v.StockQuantity > 0 {
			return true
		}
	}
	return false
}

// TotalStock ignores the product's own counter once it has variants.
func (uc *InventoryUC) TotalStock(p *domain.Product) int {
	if !p.TrackInventory {
		return domain.UnlimitedStock
	}
	if !p.HasVariants {
		return p.StockQuantity
	}
	total := 0
	for _, v := range p.ActiveVariants() {
		total += v.StockQuantity
	}
	return total
}

func (uc *InventoryUC) VariantStock(p *domain.Product, v *domain.Variant) int {
	if !v.IsActive {
		return 0
	}
	if p != nil && !p.TrackInventory {
		return domain.UnlimitedStock
	}
	return v.StockQuantity
}

func (uc *InventoryUC) StockStatus(p *domain.Product) domain.StockStatus {
	if !uc.HasStock(p) {
		return domain.StockStatusOutOfStock
	}
	if !p.TrackInventory {
		return domain.StockStatusInStock
	}
	return domain.StatusFor(uc.TotalStock(p), p.Threshold())
}

func (uc *InventoryUC) VariantStockStatus(p *domain.Product, v *domain.Variant) domain.StockStatus {
	qty := uc.VariantStock(p, v)
	if qty >= domain.UnlimitedStock {
		return domain.StockStatusInStock
	}
	return domain.StatusFor(qty, v.Threshold(p))
}

func (uc *InventoryUC) ValidateQuantity(p *domain.Product, qty int, v *domain.Variant) QuantityCheck {
	if qty <= 0 {
		return QuantityCheck{Message: "Quantity must be greater than 0"}
	}
	if p.HasVariants && v == nil {
		return QuantityCheck{Message: "Please select product options"}
	}
	available := uc.TotalStock(p)
	if v != nil {
		available = uc.VariantStock(p, v)
	}
	if qty > available {
		return QuantityCheck{Message: fmt.Sprintf("Only %d items available", available), Available: available}
	}
	return QuantityCheck{Valid: true, Available: available}
}

func (uc *InventoryUC) DisplayStock(p *domain.Product, v *domain.Variant) StockDisplay {
	if v != nil {
		qty := uc.VariantStock(p, v)
		status := uc.VariantStockStatus(p, v)
		return StockDisplay{Quantity: qty, Status: status, Message: StockMessage(qty, status)}
	}
	qty := uc.TotalStock(p)
	status := uc.StockStatus(p)
	return StockDisplay{Quantity: qty, Status: status, Message: StockMessage(qty, status)}
}

// StockMessage renders the storefront stock line.
func StockMessage(qty int, status domain.StockStatus) string {
	switch status {
	case domain.StockStatusOutOfStock:
		return "Out of stock"
	case domain.StockStatusLowStock:
		if qty == 1 {
			return "Only 1 left!"
		}
		if qty <= 3 {
			return fmt.Sprintf("Only %d left!", qty)
		}
		return fmt.Sprintf("Low stock - %d left", qty)
	}
	if qty >= domain.UnlimitedStock || qty >= 20 {
		return "In stock"
	}
	return fmt.Sprintf("%d in stock", qty)
}

// BulkCheckStock summarizes many products for list views, loading the active
// variants of all of them with a single query.
func (uc *InventoryUC) BulkCheckStock(ctx context.Context, products []domain.Product) (map[uuid.UUID]StockSummary, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		if p.HasVariants {
			ids = append(ids, p.ID)
		}
	}
	variants, err := uc.Products.ActiveVariantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]StockSummary, len(products))
	for _, p := range products {
		p := p
		if p.HasVariants {
			p.Variants = variants[p.ID]
		}
		d := uc.DisplayStock(&p, nil)
		out[p.ID] = StockSummary{
			ProductID:  p.ID,
			HasStock:   uc.HasStock(&p),
			TotalStock: d.Quantity,
			Status:     d.Status,
			Message:    d.Message,
		}
	}
	return out, nil
}

type StockRow struct {
	ProductID uuid.UUID
	Name      string
	Tracked   bool
	Variants  int
	Stock     int
	Threshold int
	Status    domain.StockStatus
	Message   string
}

// StockReport lists every active product with its computed stock, for the
// spreadsheet export.
func (uc *InventoryUC) StockReport(ctx context.Context) ([]StockRow, error) {
	products, _, err := uc.Products.List(ctx, domain.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	variants, err := uc.Products.ActiveVariantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	rows := make([]StockRow, 0, len(products))
	for _, p := range products {
		p := p
		p.Variants = variants[p.ID]
		d := uc.DisplayStock(&p, nil)
		rows = append(rows, StockRow{
			ProductID: p.ID,
			Name:      p.Name,
			Tracked:   p.TrackInventory,
			Variants:  len(p.Variants),
			Stock:     d.Quantity,
			Threshold: p.Threshold(),
			Status:    d.Status,
			Message:   d.Message,
		})
	}
	return rows, nil
}
