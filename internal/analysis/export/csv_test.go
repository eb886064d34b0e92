package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
)

func TestWriteABCCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []analysis.ABCRecord{
		{
			ProductID:      7,
			UsageQuantity:  decimal.NewFromInt(1234567),
			UsageValue:     decimal.NewFromFloat(9876543.21),
			ValueShare:     decimal.NewFromInt(80),
			CumulativePct:  decimal.NewFromInt(80),
			ABCClass:       analysis.ClassA,
			XYZClass:       analysis.ClassX,
			CombinedClass:  "AX",
			Recommendation: "tight control, automated replenishment, low safety stock",
		},
	}
	require.NoError(t, WriteABCCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Product", rows[0][0])
	require.Equal(t, "1,234,567.00", rows[1][2])
	require.Equal(t, "9,876,543.21", rows[1][3])
	require.Equal(t, "AX", rows[1][8])
}

func TestWriteDeadStockCSVNeverSold(t *testing.T) {
	var buf bytes.Buffer
	records := []analysis.DeadStockRecord{
		{
			ProductID:         3,
			WarehouseID:       1,
			StockLocationID:   10,
			Quantity:          decimal.NewFromInt(4),
			Value:             decimal.NewFromInt(10),
			DaysSinceLastSale: -1,
			Status:            analysis.StatusDead,
			Recommendation:    "dispose",
		},
		{
			ProductID:         4,
			WarehouseID:       1,
			StockLocationID:   11,
			Quantity:          decimal.NewFromInt(1),
			Value:             decimal.NewFromInt(5),
			LastSoldAt:        time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			DaysSinceLastSale: 45,
			Status:            analysis.StatusActive,
			Recommendation:    "continue",
		},
	}
	require.NoError(t, WriteDeadStockCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "never sold", rows[1][7])
	require.Equal(t, "", rows[1][6])
	require.Equal(t, "2026-05-01", rows[2][6])
	require.Equal(t, "45", rows[2][7])
}

func TestWriteAgingCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []analysis.AgingRecord{
		{WarehouseID: 1, Bucket: "0-30", Quantity: decimal.NewFromInt(15), Value: decimal.NewFromInt(40), ItemCount: 2},
		{WarehouseID: 1, Bucket: ">365", Quantity: decimal.NewFromInt(2), Value: decimal.NewFromInt(2), ItemCount: 1},
	}
	require.NoError(t, WriteAgingCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, ">365", rows[2][1])
	require.Equal(t, "15.00", rows[1][2])
}
