package reports

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesSummaryResponse struct {
	OrderCount     int             `json:"orderCount"`
	ConfirmedCount int             `json:"confirmedCount"`
	CancelledCount int             `json:"cancelledCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountTotal  decimal.Decimal `json:"discountTotal"`
	TaxTotal       decimal.Decimal `json:"taxTotal"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	UnpaidTotal    decimal.Decimal `json:"unpaidTotal"`
}

// GetSalesSummary aggregates a company's orders in a date range. Money
// totals count Confirmed orders only; the order counts break down by status
// so cancellations stay visible.
func GetSalesSummary(ctx context.Context, companyId string, fromDate time.Time, toDate time.Time) (*SalesSummaryResponse, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	sql := `
SELECT
    COUNT(id) AS order_count,
    SUM(CASE WHEN status = 'Confirmed' THEN 1 ELSE 0 END) AS confirmed_count,
    SUM(CASE WHEN status = 'Cancelled' THEN 1 ELSE 0 END) AS cancelled_count,
    COALESCE(SUM(CASE WHEN status = 'Confirmed' THEN subtotal ELSE 0 END), 0) AS subtotal,
    COALESCE(SUM(CASE WHEN status = 'Confirmed' THEN discount_total ELSE 0 END), 0) AS discount_total,
    COALESCE(SUM(CASE WHEN status = 'Confirmed' THEN tax_total ELSE 0 END), 0) AS tax_total,
    COALESCE(SUM(CASE WHEN status = 'Confirmed' THEN grand_total ELSE 0 END), 0) AS grand_total,
    COALESCE(SUM(CASE WHEN status = 'Confirmed' AND payment_state = 'PendingReceipt' THEN grand_total ELSE 0 END), 0) AS unpaid_total
FROM
    sale_orders
WHERE
    company_id = @companyId
        AND created_at BETWEEN @fromDate AND @toDate;
`

	db := config.GetDB()
	var result SalesSummaryResponse
	err := db.WithContext(utils.TenantScope(ctx, companyId)).Raw(sql, map[string]interface{}{
		"companyId": companyId,
		"fromDate":  fromDate,
		"toDate":    toDate,
	}).Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
