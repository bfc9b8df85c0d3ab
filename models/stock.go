package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockMovement is one row of the append-only stock ledger. Rows are never
// updated or deleted; the product's stock_qty must always equal the signed sum
// of its movements.
type StockMovement struct {
	ID           int             `gorm:"primary_key" json:"id"`
	CompanyId    string          `gorm:"index;size:36;not null" json:"company_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	RefType      StockRefType    `gorm:"size:20;index;not null" json:"ref_type"`
	RefId        *string         `gorm:"size:100" json:"ref_id"`
	QtyIn        decimal.Decimal `gorm:"type:decimal(14,3);default:0" json:"qty_in"`
	QtyOut       decimal.Decimal `gorm:"type:decimal(14,3);default:0" json:"qty_out"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"balance_after"`
	Notes        *string         `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// adjustStockTx applies one stock delta inside the caller's transaction.
// It locks the product row, guards against a negative running balance, writes
// the ledger row and updates the denormalized balance. The caller owns
// commit/rollback.
func adjustStockTx(tx *gorm.DB, companyId string, productId int, qtyDelta decimal.Decimal,
	refType StockRefType, refId *string, notes *string) (*StockMovement, error) {

	if !refType.IsValid() {
		return nil, fmt.Errorf("invalid stock reference type: %s", refType)
	}

	var product Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND id = ?", companyId, productId).
		First(&product).Error; err != nil {
		return nil, fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, productId)
	}

	qtyDelta = utils.RoundQty(qtyDelta)
	newBalance := product.StockQty.Add(qtyDelta)

	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: product %s has %s, requested %s",
			utils.ErrorInsufficientStock, product.Sku, product.StockQty, qtyDelta.Abs())
	}

	qtyIn := decimal.Zero
	qtyOut := decimal.Zero
	if qtyDelta.Sign() > 0 {
		qtyIn = qtyDelta
	} else {
		qtyOut = qtyDelta.Abs()
	}

	movement := StockMovement{
		CompanyId:    companyId,
		ProductId:    product.ID,
		RefType:      refType,
		RefId:        refId,
		QtyIn:        qtyIn,
		QtyOut:       qtyOut,
		BalanceAfter: newBalance,
		Notes:        notes,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&product).Update("stock_qty", newBalance).Error; err != nil {
		return nil, err
	}

	return &movement, nil
}

// AdjustStock applies a single stock delta in its own transaction.
// Positive deltas add stock, negative deltas remove it. The movement and the
// balance update persist together or not at all.
func AdjustStock(ctx context.Context, companyId string, productId int, qtyDelta decimal.Decimal,
	refType StockRefType, refId *string, notes *string) (*StockMovement, error) {

	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	movement, err := adjustStockTx(tx.WithContext(dbCtx), companyId, productId, qtyDelta, refType, refId, notes)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return movement, nil
}

// BulkAdjustStock applies one delta per product inside a single transaction.
// Iteration order is sorted by product id so batches are deterministic.
// Any failure rolls back every adjustment in the batch.
func BulkAdjustStock(ctx context.Context, companyId string, adjustments map[int]decimal.Decimal,
	refType StockRefType, refId *string, notes *string) ([]*StockMovement, error) {

	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if len(adjustments) == 0 {
		return nil, nil
	}

	productIds := make([]int, 0, len(adjustments))
	for id := range adjustments {
		productIds = append(productIds, id)
	}
	sort.Ints(productIds)

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	movements := make([]*StockMovement, 0, len(productIds))
	for _, productId := range productIds {
		movement, err := adjustStockTx(tx.WithContext(dbCtx), companyId, productId,
			adjustments[productId], refType, refId, notes)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		movements = append(movements, movement)
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "stock.go", "BulkAdjustStock", "Commit", productIds, err)
		return nil, err
	}
	return movements, nil
}

// StockMovementFilter narrows GetStockMovements. Zero values mean "no filter".
type StockMovementFilter struct {
	ProductId int
	RefType   StockRefType
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}

// GetStockMovements lists committed movements newest first.
func GetStockMovements(ctx context.Context, companyId string, filter StockMovementFilter) ([]*StockMovement, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = config.SearchLimit
	}

	db := config.GetDB()
	query := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ?", companyId)

	if filter.ProductId > 0 {
		query = query.Where("product_id = ?", filter.ProductId)
	}
	if filter.RefType != "" {
		query = query.Where("ref_type = ?", filter.RefType)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	var movements []*StockMovement
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// StockDrift reports a product whose denormalized balance disagrees with its
// ledger.
type StockDrift struct {
	ProductId  int             `json:"product_id"`
	Sku        string          `json:"sku"`
	StockQty   decimal.Decimal `json:"stock_qty"`
	LedgerQty  decimal.Decimal `json:"ledger_qty"`
	Difference decimal.Decimal `json:"difference"`
}

// RebuildStockBalances recomputes every product balance from the ledger and,
// when repair is set, overwrites drifted stock_qty values. Maintenance only.
func RebuildStockBalances(ctx context.Context, companyId string, repair bool) ([]*StockDrift, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	dbCtx := utils.TenantScope(ctx, companyId)

	var products []*Product
	if err := db.WithContext(dbCtx).Where("company_id = ?", companyId).Find(&products).Error; err != nil {
		return nil, err
	}

	var drifts []*StockDrift
	for _, product := range products {
		type ledgerSum struct {
			TotalIn  decimal.Decimal
			TotalOut decimal.Decimal
		}
		var sums ledgerSum
		err := db.WithContext(dbCtx).Model(&StockMovement{}).
			Select("COALESCE(SUM(qty_in),0) AS total_in, COALESCE(SUM(qty_out),0) AS total_out").
			Where("company_id = ? AND product_id = ?", companyId, product.ID).
			Scan(&sums).Error
		if err != nil {
			return nil, err
		}

		ledgerQty := sums.TotalIn.Sub(sums.TotalOut)
		if ledgerQty.Equal(product.StockQty) {
			continue
		}

		drifts = append(drifts, &StockDrift{
			ProductId:  product.ID,
			Sku:        product.Sku,
			StockQty:   product.StockQty,
			LedgerQty:  ledgerQty,
			Difference: product.StockQty.Sub(ledgerQty),
		})

		if repair {
			if err := db.WithContext(dbCtx).Model(product).
				Update("stock_qty", ledgerQty).Error; err != nil {
				config.LogError(config.GetLogger(), "stock.go", "RebuildStockBalances", "Update stock_qty", product.ID, err)
				return nil, err
			}
		}
	}

	return drifts, nil
}
