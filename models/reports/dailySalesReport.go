package reports

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type DailySalesResponse struct {
	SaleDate      string          `json:"saleDate"`
	OrderCount    int             `json:"orderCount"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	CashTotal     decimal.Decimal `json:"cashTotal"`
	TransferTotal decimal.Decimal `json:"transferTotal"`
}

// GetDailySales breaks Confirmed order totals down per calendar day,
// including a cash/transfer split for the till reconciliation screen.
func GetDailySales(ctx context.Context, companyId string, fromDate time.Time, toDate time.Time) ([]*DailySalesResponse, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	sql := `
SELECT
    DATE(created_at) AS sale_date,
    COUNT(id) AS order_count,
    COALESCE(SUM(grand_total), 0) AS grand_total,
    COALESCE(SUM(discount_total), 0) AS discount_total,
    COALESCE(SUM(CASE WHEN payment_method = 'cash' THEN grand_total ELSE 0 END), 0) AS cash_total,
    COALESCE(SUM(CASE WHEN payment_method = 'transfer' THEN grand_total ELSE 0 END), 0) AS transfer_total
FROM
    sale_orders
WHERE
    company_id = @companyId
        AND status = 'Confirmed'
        AND created_at BETWEEN @fromDate AND @toDate
GROUP BY DATE(created_at)
ORDER BY sale_date;
`

	db := config.GetDB()
	var results []*DailySalesResponse
	err := db.WithContext(utils.TenantScope(ctx, companyId)).Raw(sql, map[string]interface{}{
		"companyId": companyId,
		"fromDate":  fromDate,
		"toDate":    toDate,
	}).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
