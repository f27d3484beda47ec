// Package reports builds spreadsheet exports of the sale ledger.
package reports

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
	"github.com/tichatapp/tichat_backend/models"
	"github.com/xuri/excelize/v2"
)

type SalesByCustomerRow struct {
	CustomerName string          `json:"customer_name"`
	SaleCount    int64           `json:"sale_count"`
	PaidTotal    decimal.Decimal `json:"paid_total"`
	PendingTotal decimal.Decimal `json:"pending_total"`
}

func getSalesByCustomerReport(ctx context.Context) ([]*SalesByCustomerRow, error) {

	sql := `
SELECT
    customer_name,
    COUNT(*) AS sale_count,
    SUM(CASE WHEN status = 'paid' THEN total ELSE 0 END) AS paid_total,
    SUM(CASE WHEN status = 'pending' THEN total ELSE 0 END) AS pending_total
FROM
    sales
WHERE
    status IN ('paid', 'pending')
GROUP BY
    customer_name
ORDER BY
    paid_total DESC;
`

	var records []*SalesByCustomerRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// ExportSalesByCustomerExcel streams the per-customer sales summary as an
// xlsx attachment, with a second sheet for the best sellers ranking.
func ExportSalesByCustomerExcel(ctx context.Context, w http.ResponseWriter) error {

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	data, err := getSalesByCustomerReport(ctx)
	if err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheet, "A1", "Cliente")
	f.SetCellValue(sheet, "B1", "Ventas")
	f.SetCellValue(sheet, "C1", "Total pagado")
	f.SetCellValue(sheet, "D1", "Total pendiente")

	// Add data
	for i, d := range data {
		f.SetCellValue(sheet, "A"+fmt.Sprint(i+2), d.CustomerName)
		f.SetCellValue(sheet, "B"+fmt.Sprint(i+2), d.SaleCount)
		f.SetCellValue(sheet, "C"+fmt.Sprint(i+2), d.PaidTotal.InexactFloat64())
		f.SetCellValue(sheet, "D"+fmt.Sprint(i+2), d.PendingTotal.InexactFloat64())
	}

	best, err := models.BestSellingProducts(ctx, 10)
	if err != nil {
		return err
	}

	bestSheet := "MasVendidos"
	if _, err := f.NewSheet(bestSheet); err != nil {
		return err
	}
	f.SetCellValue(bestSheet, "A1", "Producto")
	f.SetCellValue(bestSheet, "B1", "Unidades vendidas")
	for i, b := range best {
		f.SetCellValue(bestSheet, "A"+fmt.Sprint(i+2), b.Name)
		f.SetCellValue(bestSheet, "B"+fmt.Sprint(i+2), b.UnitsSold.InexactFloat64())
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=ventas_por_cliente.xlsx")
	return f.Write(w)
}
