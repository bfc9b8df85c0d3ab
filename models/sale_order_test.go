package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func draftOrder(t *testing.T, ctx context.Context, companyId string, customerId int, items []*NewSaleOrderItem) *SaleOrder {
	t.Helper()
	order, err := CreateDraftSaleOrder(ctx, companyId, &NewSaleOrder{
		CustomerId: customerId,
		Items:      items,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	return order
}

func TestCreateDraftSaleOrderTotals(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	seedTier(t, ctx, companyId, "GOLD", DiscountTypePercent, 10)
	gold := "GOLD"
	customer := seedCustomer(t, ctx, companyId, "09790001122", &gold)
	productA := seedProduct(t, ctx, companyId, "SKU-A", 10)
	productB := seedProduct(t, ctx, companyId, "SKU-B", 5)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: productA.ID, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1000)},
		{ProductId: productB.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)},
	})

	if order.Status != OrderStatusDraft {
		t.Fatalf("expected Draft, got %s", order.Status)
	}
	if order.PaymentState != PaymentStatePendingReceipt {
		t.Fatalf("expected PendingReceipt, got %s", order.PaymentState)
	}
	expectedTxId := fmt.Sprintf("SO-%s-0001", CurrentPeriod())
	if order.TxId != expectedTxId {
		t.Fatalf("expected tx id %s, got %s", expectedTxId, order.TxId)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected subtotal 2500, got %s", order.Subtotal)
	}
	// 10 percent gold tier on the subtotal.
	if !order.DiscountTotal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected discount 250, got %s", order.DiscountTotal)
	}
	if !order.GrandTotal.Equal(decimal.NewFromInt(2250)) {
		t.Fatalf("expected grand total 2250, got %s", order.GrandTotal)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	// Draft orders never touch stock.
	refreshed, _ := GetProduct(ctx, companyId, productA.ID)
	if !refreshed.StockQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("draft changed stock to %s", refreshed.StockQty)
	}
}

func TestCreateDraftSaleOrderWithoutTier(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001121", nil)
	product := seedProduct(t, ctx, companyId, "SKU-NOTIER", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(1000)},
	})

	if !order.Subtotal.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected subtotal 2000, got %s", order.Subtotal)
	}
	if !order.DiscountTotal.IsZero() {
		t.Fatalf("expected no discount without a tier, got %s", order.DiscountTotal)
	}
	if !order.GrandTotal.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected grand total 2000, got %s", order.GrandTotal)
	}
}

func TestCreateDraftSaleOrderWithTaxAndLineDiscount(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001123", nil)
	product := seedProduct(t, ctx, companyId, "SKU-TAX", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{
			ProductId:     product.ID,
			Qty:           decimal.NewFromInt(2),
			UnitPrice:     decimal.NewFromInt(1000),
			DiscountValue: decimal.NewFromInt(200),
			TaxRate:       decimal.NewFromInt(5),
		},
	})

	// line base 2000-200=1800, tax 90, line total 1890
	if !order.Subtotal.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected subtotal 2000, got %s", order.Subtotal)
	}
	if !order.DiscountTotal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected discount 200, got %s", order.DiscountTotal)
	}
	if !order.TaxTotal.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected tax 90, got %s", order.TaxTotal)
	}
	if !order.GrandTotal.Equal(decimal.NewFromInt(1890)) {
		t.Fatalf("expected grand total 1890, got %s", order.GrandTotal)
	}
	if !order.Items[0].LineTotal.Equal(decimal.NewFromInt(1890)) {
		t.Fatalf("expected line total 1890, got %s", order.Items[0].LineTotal)
	}
}

func TestCreateDraftSaleOrderValidation(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001124", nil)
	product := seedProduct(t, ctx, companyId, "SKU-VAL", 10)

	if _, err := CreateDraftSaleOrder(ctx, companyId, &NewSaleOrder{
		CustomerId: customer.ID,
		Items:      []*NewSaleOrderItem{},
	}); err == nil {
		t.Fatal("expected empty items to be rejected")
	}

	if _, err := CreateDraftSaleOrder(ctx, companyId, &NewSaleOrder{
		CustomerId: 9999,
		Items: []*NewSaleOrderItem{
			{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
		},
	}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected unknown customer rejection, got %v", err)
	}

	if _, err := CreateDraftSaleOrder(ctx, companyId, &NewSaleOrder{
		CustomerId: customer.ID,
		Items: []*NewSaleOrderItem{
			{ProductId: product.ID, Qty: decimal.Zero, UnitPrice: decimal.NewFromInt(100)},
		},
	}); err == nil {
		t.Fatal("expected zero qty to be rejected")
	}
}

func TestConfirmSaleOrderDeductsStock(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001125", nil)
	product := seedProduct(t, ctx, companyId, "SKU-CONFIRM", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(1000)},
	})

	confirmed, err := ConfirmSaleOrder(ctx, companyId, order.ID, nil)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != OrderStatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", confirmed.Status)
	}

	refreshed, _ := GetProduct(ctx, companyId, product.ID)
	if !refreshed.StockQty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected stock 7, got %s", refreshed.StockQty)
	}

	movements, err := GetStockMovements(ctx, companyId, StockMovementFilter{RefType: StockRefTypeSale})
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 sale movement, got %d", len(movements))
	}
	if movements[0].RefId == nil || *movements[0].RefId != order.TxId {
		t.Fatalf("expected movement linked to %s", order.TxId)
	}
}

func TestConfirmSaleOrderInsufficientStockKeepsDraft(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001126", nil)
	ok := seedProduct(t, ctx, companyId, "SKU-OK", 10)
	short := seedProduct(t, ctx, companyId, "SKU-SHORT", 1)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: ok.ID, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
		{ProductId: short.ID, Qty: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(100)},
	})

	_, err := ConfirmSaleOrder(ctx, companyId, order.ID, nil)
	if !errors.Is(err, utils.ErrorInsufficientStock) {
		t.Fatalf("expected ErrorInsufficientStock, got %v", err)
	}

	// Whole confirmation rolled back: order still Draft, no stock moved.
	reloaded, err := GetSaleOrder(ctx, companyId, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != OrderStatusDraft {
		t.Fatalf("expected order to stay Draft, got %s", reloaded.Status)
	}
	refreshed, _ := GetProduct(ctx, companyId, ok.ID)
	if !refreshed.StockQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected first product untouched at 10, got %s", refreshed.StockQty)
	}
}

func TestConfirmSaleOrderRequiresDraft(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001127", nil)
	product := seedProduct(t, ctx, companyId, "SKU-TWICE", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	})
	if _, err := ConfirmSaleOrder(ctx, companyId, order.ID, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := ConfirmSaleOrder(ctx, companyId, order.ID, nil)
	if !errors.Is(err, utils.ErrorInvalidStateTransition) {
		t.Fatalf("expected ErrorInvalidStateTransition, got %v", err)
	}
	// Double confirm must not deduct twice.
	refreshed, _ := GetProduct(ctx, companyId, product.ID)
	if !refreshed.StockQty.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected stock 9, got %s", refreshed.StockQty)
	}
}

func TestCancelConfirmedOrderRestoresStock(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001128", nil)
	product := seedProduct(t, ctx, companyId, "SKU-CANCEL", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(100)},
	})
	if _, err := ConfirmSaleOrder(ctx, companyId, order.ID, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	cancelled, err := CancelSaleOrder(ctx, companyId, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != OrderStatusCancelled {
		t.Fatalf("expected Cancelled, got %s", cancelled.Status)
	}

	refreshed, _ := GetProduct(ctx, companyId, product.ID)
	if !refreshed.StockQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected stock restored to 10, got %s", refreshed.StockQty)
	}

	returns, err := GetStockMovements(ctx, companyId, StockMovementFilter{RefType: StockRefTypeReturn})
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	if len(returns) != 1 {
		t.Fatalf("expected 1 return movement, got %d", len(returns))
	}
	if returns[0].RefId == nil || *returns[0].RefId != order.TxId {
		t.Fatalf("expected return linked to %s", order.TxId)
	}
}

func TestCancelDraftOrderLeavesLedgerAlone(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001129", nil)
	product := seedProduct(t, ctx, companyId, "SKU-CANCEL-DRAFT", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(100)},
	})
	if _, err := CancelSaleOrder(ctx, companyId, order.ID); err != nil {
		t.Fatalf("cancel draft: %v", err)
	}

	movements, err := GetStockMovements(ctx, companyId, StockMovementFilter{ProductId: product.ID})
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected only the opening movement, got %d", len(movements))
	}
}

func TestCancelSaleOrderTwice(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001130", nil)
	product := seedProduct(t, ctx, companyId, "SKU-DOUBLE-CANCEL", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	})
	if _, err := CancelSaleOrder(ctx, companyId, order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := CancelSaleOrder(ctx, companyId, order.ID)
	if !errors.Is(err, utils.ErrorAlreadyCancelled) {
		t.Fatalf("expected ErrorAlreadyCancelled, got %v", err)
	}
}

func TestMarkPaymentReceived(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001131", nil)
	product := seedProduct(t, ctx, companyId, "SKU-PAY", 10)

	cashOrder := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	})
	paid, err := MarkPaymentReceived(ctx, companyId, cashOrder.ID, PaymentMethodCash, nil)
	if err != nil {
		t.Fatalf("cash payment: %v", err)
	}
	if paid.PaymentState != PaymentStateReceived {
		t.Fatalf("expected cash to settle immediately, got %s", paid.PaymentState)
	}

	transferOrder := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	})
	pending, err := MarkPaymentReceived(ctx, companyId, transferOrder.ID, PaymentMethodTransfer, nil)
	if err != nil {
		t.Fatalf("transfer payment: %v", err)
	}
	if pending.PaymentState != PaymentStatePendingReceipt {
		t.Fatalf("expected transfer to wait for a slip, got %s", pending.PaymentState)
	}

	if _, err := MarkPaymentReceived(ctx, companyId, cashOrder.ID, "card", nil); err == nil {
		t.Fatal("expected unknown payment method to be rejected")
	}
}

func TestMarkPaymentReceivedRejectsCancelledOrder(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09790001132", nil)
	product := seedProduct(t, ctx, companyId, "SKU-PAY-CANCEL", 10)

	order := draftOrder(t, ctx, companyId, customer.ID, []*NewSaleOrderItem{
		{ProductId: product.ID, Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
	})
	if _, err := CancelSaleOrder(ctx, companyId, order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := MarkPaymentReceived(ctx, companyId, order.ID, PaymentMethodCash, nil)
	if !errors.Is(err, utils.ErrorInvalidStateTransition) {
		t.Fatalf("expected ErrorInvalidStateTransition, got %v", err)
	}
	reloaded, _ := GetSaleOrder(ctx, companyId, order.ID)
	if reloaded.PaymentState != PaymentStatePendingReceipt {
		t.Fatalf("cancelled order payment state changed to %s", reloaded.PaymentState)
	}
}
