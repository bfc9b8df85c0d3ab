package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type TopProductResponse struct {
	ProductId   int             `json:"productId"`
	ProductName *string         `json:"productName,omitempty"`
	ProductSku  *string         `json:"productSku,omitempty"`
	SoldQty     decimal.Decimal `json:"soldQty"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrderCount  int             `json:"orderCount"`
}

// GetTopProducts ranks products by amount sold across Confirmed orders in a
// date range, best sellers first.
func GetTopProducts(ctx context.Context, companyId string, fromDate time.Time, toDate time.Time, limit *int) ([]*TopProductResponse, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	sqlT := `
SELECT
    so_it.product_id,
    products.name AS product_name,
    products.sku AS product_sku,
    SUM(so_it.qty) AS sold_qty,
    SUM(so_it.line_total) AS total_amount,
    COUNT(DISTINCT so.id) AS order_count
FROM
    sale_orders AS so
        JOIN
    sale_order_items AS so_it ON so_it.sale_order_id = so.id
        LEFT JOIN
    products ON products.id = so_it.product_id
WHERE
    so.company_id = @companyId
        AND so.status = 'Confirmed'
        AND so.created_at BETWEEN @fromDate AND @toDate
GROUP BY so_it.product_id , products.name , products.sku
ORDER BY total_amount DESC
{{- if .limit }} LIMIT @limit {{- end }};
`

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"limit": utils.DereferencePtr(limit, 0),
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*TopProductResponse
	err = db.WithContext(utils.TenantScope(ctx, companyId)).Raw(sql, map[string]interface{}{
		"companyId": companyId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"limit":     limit,
	}).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ExportTopProductsExcel writes the top-products ranking as an xlsx workbook.
func ExportTopProductsExcel(ctx context.Context, companyId string, fromDate time.Time, toDate time.Time, limit *int, w io.Writer) error {
	data, err := GetTopProducts(ctx, companyId, fromDate, toDate, limit)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "ProductName")
	f.SetCellValue(sheetName, "B1", "Sku")
	f.SetCellValue(sheetName, "C1", "SoldQty")
	f.SetCellValue(sheetName, "D1", "TotalAmount")
	f.SetCellValue(sheetName, "E1", "OrderCount")

	// Add data
	for i, d := range data {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), utils.DereferencePtr(d.ProductName, ""))
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), utils.DereferencePtr(d.ProductSku, ""))
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), d.SoldQty.InexactFloat64())
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), d.TotalAmount.InexactFloat64())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), d.OrderCount)
	}

	if err := f.Write(w); err != nil {
		return err
	}
	return nil
}
