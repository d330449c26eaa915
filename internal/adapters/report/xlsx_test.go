package report

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

func TestStockXLSX(t *testing.T) {
	id := uuid.New()
	data, err := StockXLSX([]usecase.StockRow{
		{ProductID: id, Name: "Phone Stand", Tracked: true, Stock: 3, Threshold: 5, Status: domain.StockStatusLowStock, Message: "Only 3 left!"},
		{ProductID: uuid.New(), Name: "Gift Card"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(stockSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Product ID", rows[0][0])
	assert.Equal(t, id.String(), rows[1][0])
	assert.Equal(t, "low_stock", rows[1][6])
	assert.Equal(t, "unlimited", rows[2][4])
}

func restockBook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseRestock(t *testing.T) {
	pid, vid := uuid.New(), uuid.New()
	data := restockBook(t, [][]any{
		{"product_id", "variant_id", "quantity"},
		{pid.String(), "", "4"},
		{pid.String(), vid.String(), "2"},
		{"nope", "", "1"},
		{pid.String(), "", "0"},
		{pid.String(), "bad", "1"},
	})

	lines, problems, err := ParseRestock(data)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, pid, lines[0].ProductID)
	assert.Nil(t, lines[0].VariantID)
	assert.Equal(t, 4, lines[0].Quantity)
	require.NotNil(t, lines[1].VariantID)
	assert.Equal(t, vid, *lines[1].VariantID)
	assert.Equal(t, 3, lines[1].Row)

	assert.Equal(t, []string{
		"row 4: invalid product id",
		"row 5: quantity must be a positive number",
		"row 6: invalid variant id",
	}, problems)
}

func TestParseRestockRejectsGarbage(t *testing.T) {
	_, _, err := ParseRestock([]byte("not a workbook"))
	assert.Error(t, err)
}
