package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
)

// printer renders grouped quantities and amounts the way operators expect to
// read them in spreadsheets (1,234,567.89).
var printer = message.NewPrinter(language.English)

func formatDecimal(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// WriteABCCSV serialises an ABC/XYZ classification snapshot to CSV.
func WriteABCCSV(w io.Writer, records []analysis.ABCRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Product", "Variant", "Usage Quantity", "Usage Value",
		"Value Share %", "Cumulative %", "ABC", "XYZ", "Class", "Recommendation"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write([]string{
			formatInt(rec.ProductID),
			formatInt(rec.VariantID),
			formatDecimal(rec.UsageQuantity),
			formatDecimal(rec.UsageValue),
			formatDecimal(rec.ValueShare),
			formatDecimal(rec.CumulativePct),
			string(rec.ABCClass),
			string(rec.XYZClass),
			rec.CombinedClass,
			rec.Recommendation,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDeadStockCSV serialises a staleness snapshot to CSV.
func WriteDeadStockCSV(w io.Writer, records []analysis.DeadStockRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Product", "Variant", "Warehouse", "Stock Location",
		"Quantity", "Value", "Last Sold", "Days Since Sale", "Status", "Recommendation"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		lastSold := ""
		if !rec.LastSoldAt.IsZero() && rec.LastSoldAt.Unix() != 0 {
			lastSold = rec.LastSoldAt.Format(time.DateOnly)
		}
		days := "never sold"
		if rec.DaysSinceLastSale >= 0 {
			days = strconv.Itoa(rec.DaysSinceLastSale)
		}
		if err := writer.Write([]string{
			formatInt(rec.ProductID),
			formatInt(rec.VariantID),
			formatInt(rec.WarehouseID),
			formatInt(rec.StockLocationID),
			formatDecimal(rec.Quantity),
			formatDecimal(rec.Value),
			lastSold,
			days,
			string(rec.Status),
			rec.Recommendation,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAgingCSV serialises a stock aging snapshot to CSV.
func WriteAgingCSV(w io.Writer, records []analysis.AgingRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Warehouse", "Bucket", "Quantity", "Value", "Items"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write([]string{
			formatInt(rec.WarehouseID),
			rec.Bucket,
			formatDecimal(rec.Quantity),
			formatDecimal(rec.Value),
			strconv.Itoa(rec.ItemCount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
