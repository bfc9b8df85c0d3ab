package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

const saleOrderDocType = "SO"

type SaleOrder struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CompanyId     string          `gorm:"index;size:36;not null" json:"company_id"`
	TxId          string          `gorm:"size:50;not null;uniqueIndex" json:"tx_id"`
	CustomerId    int             `gorm:"index;not null" json:"customer_id"`
	Status        OrderStatus     `gorm:"size:20;index;not null" json:"status"`
	PaymentState  PaymentState    `gorm:"size:20;not null;default:'PendingReceipt'" json:"payment_state"`
	PaymentMethod *PaymentMethod  `gorm:"size:20;default:null" json:"payment_method"`
	PaymentNotes  *string         `gorm:"type:text" json:"payment_notes"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount_total"`
	TaxTotal      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax_total"`
	GrandTotal    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"grand_total"`
	Attributes    JSONMap         `gorm:"type:json" json:"attributes"`
	CreatedBy     *int            `json:"created_by"`
	ApprovedBy    *int            `json:"approved_by"`
	Customer      *Customer       `gorm:"foreignKey:CustomerId" json:"customer"`
	Items         []SaleOrderItem `gorm:"foreignKey:SaleOrderId" json:"items"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleOrderItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SaleOrderId   int             `gorm:"index;not null" json:"sale_order_id"`
	ProductId     int             `gorm:"not null" json:"product_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"qty"`
	Uom           string          `gorm:"size:20;not null;default:unit" json:"uom"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount_value"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	Attributes    JSONMap         `gorm:"type:json" json:"attributes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSaleOrder struct {
	CustomerId int                 `json:"customer_id" validate:"required"`
	Items      []*NewSaleOrderItem `json:"items" validate:"required,min=1,dive,required"`
	Attributes JSONMap             `json:"attributes"`
	CreatedBy  *int                `json:"created_by"`
}

type NewSaleOrderItem struct {
	ProductId     int             `json:"product_id" validate:"required"`
	Qty           decimal.Decimal `json:"qty"`
	Uom           string          `json:"uom"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Attributes    JSONMap         `json:"attributes"`
}

func (input *NewSaleOrder) validate(ctx context.Context, companyId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Customer](ctx, companyId, input.CustomerId); err != nil {
		return fmt.Errorf("%w: customer %d", utils.ErrorRecordNotFound, input.CustomerId)
	}
	for _, item := range input.Items {
		if !item.Qty.IsPositive() {
			return fmt.Errorf("item qty must be positive for product %d", item.ProductId)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item unit price cannot be negative for product %d", item.ProductId)
		}
		if err := utils.ValidateResourceId[Product](ctx, companyId, item.ProductId); err != nil {
			return fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, item.ProductId)
		}
	}
	return nil
}

// CreateDraftSaleOrder mints the order's tx id, computes line and order
// totals, applies the customer's tier discount and stores everything in one
// transaction. The order starts in Draft/PendingReceipt; no stock moves yet.
func CreateDraftSaleOrder(ctx context.Context, companyId string, input *NewSaleOrder) (*SaleOrder, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	attributes, err := ValidateCustomFields(ctx, companyId, EntityTypeSaleOrder, input.Attributes)
	if err != nil {
		return nil, err
	}

	customer, err := GetCustomer(ctx, companyId, input.CustomerId)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	discountTotal := decimal.Zero
	taxTotal := decimal.Zero

	items := make([]SaleOrderItem, 0, len(input.Items))
	for _, itemInput := range input.Items {
		itemAttributes, err := ValidateCustomFields(ctx, companyId, EntityTypeSaleOrderItem, itemInput.Attributes)
		if err != nil {
			return nil, err
		}

		lineTotal, lineTax := utils.CalculateLineAmounts(
			itemInput.Qty, itemInput.UnitPrice, itemInput.DiscountValue, itemInput.TaxRate)

		uom := itemInput.Uom
		if uom == "" {
			uom = "unit"
		}

		items = append(items, SaleOrderItem{
			ProductId:     itemInput.ProductId,
			Qty:           utils.RoundQty(itemInput.Qty),
			Uom:           uom,
			UnitPrice:     utils.RoundMoney(itemInput.UnitPrice),
			DiscountValue: utils.RoundMoney(itemInput.DiscountValue),
			TaxRate:       itemInput.TaxRate,
			LineTotal:     lineTotal,
			Attributes:    itemAttributes,
		})

		subtotal = subtotal.Add(itemInput.Qty.Mul(itemInput.UnitPrice))
		discountTotal = discountTotal.Add(itemInput.DiscountValue)
		taxTotal = taxTotal.Add(lineTax)
	}

	subtotal = utils.RoundMoney(subtotal)
	if customer.Tier != nil {
		tierDiscount := utils.CalculateTierDiscount(subtotal,
			string(customer.Tier.DiscountType), customer.Tier.DiscountValue)
		discountTotal = discountTotal.Add(tierDiscount)
	}
	discountTotal = utils.RoundMoney(discountTotal)
	taxTotal = utils.RoundMoney(taxTotal)
	grandTotal := subtotal.Sub(discountTotal).Add(taxTotal)

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	start, err := nextDocumentNumbersTx(tx.WithContext(dbCtx), companyId, saleOrderDocType, CurrentPeriod(), 1)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order := SaleOrder{
		CompanyId:     companyId,
		TxId:          formatDocumentNumber(saleOrderDocType, CurrentPeriod(), start),
		CustomerId:    customer.ID,
		Status:        OrderStatusDraft,
		PaymentState:  PaymentStatePendingReceipt,
		Subtotal:      subtotal,
		DiscountTotal: discountTotal,
		TaxTotal:      taxTotal,
		GrandTotal:    grandTotal,
		Attributes:    attributes,
		CreatedBy:     input.CreatedBy,
		Items:         items,
	}

	if err := tx.WithContext(dbCtx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(dbCtx), ctx, companyId, "Create",
		order.ID, "SaleOrder", nil, &order,
		fmt.Sprintf("Sale order %s created with %d items.", order.TxId, len(items))); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "saleOrder.go", "CreateDraftSaleOrder", "Commit", order.TxId, err)
		return nil, err
	}
	return &order, nil
}

// ConfirmSaleOrder deducts stock for every item and marks the order
// Confirmed, all in one transaction. If any product is short the whole
// confirmation rolls back and the order stays Draft with no stock touched.
func ConfirmSaleOrder(ctx context.Context, companyId string, orderId int, approvedBy *int) (*SaleOrder, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	order, err := utils.FetchModel[SaleOrder](ctx, companyId, orderId, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status != OrderStatusDraft {
		return nil, fmt.Errorf("%w: cannot confirm a %s order", utils.ErrorInvalidStateTransition, order.Status)
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	notes := fmt.Sprintf("Sale Order: %s", order.TxId)
	for _, item := range order.Items {
		if _, err := adjustStockTx(tx.WithContext(dbCtx), companyId, item.ProductId,
			item.Qty.Neg(), StockRefTypeSale, &order.TxId, &notes); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"status":      OrderStatusConfirmed,
		"approved_by": approvedBy,
	}
	if err := tx.WithContext(dbCtx).Model(order).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(dbCtx), ctx, companyId, "Confirm",
		order.ID, "SaleOrder", OrderStatusDraft, OrderStatusConfirmed,
		fmt.Sprintf("Sale order %s confirmed.", order.TxId)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "saleOrder.go", "ConfirmSaleOrder", "Commit", order.TxId, err)
		return nil, err
	}

	order.Status = OrderStatusConfirmed
	order.ApprovedBy = approvedBy
	return order, nil
}

// CancelSaleOrder cancels a Draft or Confirmed order. A Confirmed order gets
// every item quantity restored through the ledger as RETURN movements before
// the status flips; Draft orders never touched stock so nothing is restored.
func CancelSaleOrder(ctx context.Context, companyId string, orderId int) (*SaleOrder, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	order, err := utils.FetchModel[SaleOrder](ctx, companyId, orderId, "Items")
	if err != nil {
		return nil, err
	}
	if order.Status == OrderStatusCancelled {
		return nil, fmt.Errorf("%w: %s", utils.ErrorAlreadyCancelled, order.TxId)
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	oldStatus := order.Status
	if order.Status == OrderStatusConfirmed {
		notes := fmt.Sprintf("Cancelled Sale Order: %s", order.TxId)
		for _, item := range order.Items {
			if _, err := adjustStockTx(tx.WithContext(dbCtx), companyId, item.ProductId,
				item.Qty, StockRefTypeReturn, &order.TxId, &notes); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.WithContext(dbCtx).Model(order).
		Update("status", OrderStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(dbCtx), ctx, companyId, "Cancel",
		order.ID, "SaleOrder", oldStatus, OrderStatusCancelled,
		fmt.Sprintf("Sale order %s cancelled.", order.TxId)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "saleOrder.go", "CancelSaleOrder", "Commit", order.TxId, err)
		return nil, err
	}

	order.Status = OrderStatusCancelled
	return order, nil
}

// MarkPaymentReceived records the payment method. Cash settles immediately;
// a transfer stays PendingReceipt until its uploaded slip is approved.
func MarkPaymentReceived(ctx context.Context, companyId string, orderId int, method PaymentMethod, notes *string) (*SaleOrder, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("invalid payment method: %s", method)
	}

	order, err := utils.FetchModel[SaleOrder](ctx, companyId, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status == OrderStatusCancelled {
		return nil, fmt.Errorf("%w: cannot record payment on a cancelled order", utils.ErrorInvalidStateTransition)
	}

	paymentState := PaymentStatePendingReceipt
	if method == PaymentMethodCash {
		paymentState = PaymentStateReceived
	}

	db := config.GetDB()
	updates := map[string]interface{}{
		"payment_state":  paymentState,
		"payment_method": method,
		"payment_notes":  notes,
	}
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Model(order).Updates(updates).Error; err != nil {
		return nil, err
	}

	order.PaymentState = paymentState
	order.PaymentMethod = &method
	order.PaymentNotes = notes
	return order, nil
}

func GetSaleOrder(ctx context.Context, companyId string, orderId int) (*SaleOrder, error) {
	return utils.FetchModel[SaleOrder](ctx, companyId, orderId, "Items", "Customer")
}

func GetSaleOrderByTxId(ctx context.Context, companyId string, txId string) (*SaleOrder, error) {
	db := config.GetDB()
	var order SaleOrder
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Preload("Items").
		Where("company_id = ? AND tx_id = ?", companyId, txId).
		First(&order).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &order, nil
}
