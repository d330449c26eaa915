package domain

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// UnlimitedStock is reported for items that do not track inventory.
const UnlimitedStock = 999999

// StatusFor derives the stock status; it is never stored.
func StatusFor(qty, threshold int) StockStatus {
	switch {
	case qty <= 0:
		return StockStatusOutOfStock
	case qty <= threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}
