package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/storefront/internal/usecase"
)

const stockSheet = "Stock"

var stockHeader = []any{"Product ID", "Name", "Tracked", "Variants", "Stock", "Threshold", "Status", "Message"}

// StockXLSX renders the stock report as a single sheet workbook.
func StockXLSX(rows []usecase.StockRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(stockSheet, "A1", &stockHeader); err != nil {
		return nil, err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		stock := any(r.Stock)
		if !r.Tracked {
			stock = "unlimited"
		}
		row := []any{r.ProductID.String(), r.Name, r.Tracked, r.Variants, stock, r.Threshold, string(r.Status), r.Message}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(stockSheet, "A", "A", 38); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(stockSheet, "B", "B", 32); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RestockLine is one row of a restock sheet.
type RestockLine struct {
	Row       int
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// ParseRestock reads the first sheet of a workbook with the columns
// product_id, variant_id (may be empty) and quantity. A header row is
// skipped; rows that do not parse are reported by row number.
func ParseRestock(data []byte) ([]RestockLine, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	var out []RestockLine
	var problems []string
	for i, row := range rows {
		n := i + 1
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		pid, err := uuid.Parse(strings.TrimSpace(row[0]))
		if err != nil {
			if i == 0 {
				continue
			}
			problems = append(problems, fmt.Sprintf("row %d: invalid product id", n))
			continue
		}
		line := RestockLine{Row: n, ProductID: pid}
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			vid, err := uuid.Parse(strings.TrimSpace(row[1]))
			if err != nil {
				problems = append(problems, fmt.Sprintf("row %d: invalid variant id", n))
				continue
			}
			line.VariantID = &vid
		}
		if len(row) < 3 {
			problems = append(problems, fmt.Sprintf("row %d: missing quantity", n))
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil || qty <= 0 {
			problems = append(problems, fmt.Sprintf("row %d: quantity must be a positive number", n))
			continue
		}
		line.Quantity = qty
		out = append(out, line)
	}
	return out, problems, nil
}
