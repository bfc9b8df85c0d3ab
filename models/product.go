package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

// Product holds a denormalized stock balance. StockQty is mutated only by the
// stock ledger (AdjustStock); nothing else writes it.
type Product struct {
	ID         int             `gorm:"primary_key" json:"id"`
	CompanyId  string          `gorm:"index;size:36;not null" json:"company_id"`
	Sku        string          `gorm:"size:100;not null;uniqueIndex:idx_products_company_sku,priority:2" json:"sku"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	BaseUom    string          `gorm:"size:20;not null;default:unit" json:"base_uom"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Cost       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"cost"`
	StockQty   decimal.Decimal `gorm:"type:decimal(14,3);default:0" json:"stock_qty"`
	Attributes JSONMap         `gorm:"type:json" json:"attributes"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku        string          `json:"sku" validate:"required,max=100"`
	Name       string          `json:"name" validate:"required,max=100"`
	BaseUom    string          `json:"base_uom"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	OpeningQty decimal.Decimal `json:"opening_qty"`
	Attributes JSONMap         `json:"attributes"`
}

func (input *NewProduct) validate(ctx context.Context, companyId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, companyId, id); err != nil {
			return err
		}
	}
	// validate unique sku
	if err := utils.ValidateUnique[Product](ctx, companyId, "sku", input.Sku, id); err != nil {
		return err
	}
	return nil
}

// CreateProduct stores the product; a non-zero OpeningQty is posted through
// the ledger as an OPENING movement so the balance invariant holds from day one.
func CreateProduct(ctx context.Context, companyId string, input *NewProduct) (*Product, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}
	if input.OpeningQty.IsNegative() {
		return nil, errors.New("opening qty cannot be negative")
	}

	attributes, err := ValidateCustomFields(ctx, companyId, EntityTypeProduct, input.Attributes)
	if err != nil {
		return nil, err
	}

	baseUom := input.BaseUom
	if baseUom == "" {
		baseUom = "unit"
	}

	product := Product{
		CompanyId:  companyId,
		Sku:        input.Sku,
		Name:       input.Name,
		BaseUom:    baseUom,
		Price:      utils.RoundMoney(input.Price),
		Cost:       utils.RoundMoney(input.Cost),
		StockQty:   decimal.Zero,
		Attributes: attributes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	if err := tx.WithContext(dbCtx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if !input.OpeningQty.IsZero() {
		if _, err := adjustStockTx(tx.WithContext(dbCtx), companyId, product.ID,
			input.OpeningQty, StockRefTypeOpening, nil, nil); err != nil {
			tx.Rollback()
			return nil, err
		}
		product.StockQty = utils.RoundQty(input.OpeningQty)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, companyId string, id int, input *NewProduct) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[Product](ctx, companyId, id)
	if err != nil {
		return nil, err
	}

	attributes, err := ValidateCustomFields(ctx, companyId, EntityTypeProduct, input.Attributes)
	if err != nil {
		return nil, err
	}

	existing.Sku = input.Sku
	existing.Name = input.Name
	if input.BaseUom != "" {
		existing.BaseUom = input.BaseUom
	}
	existing.Price = utils.RoundMoney(input.Price)
	existing.Cost = utils.RoundMoney(input.Cost)
	existing.Attributes = attributes

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func ToggleActiveProduct(ctx context.Context, companyId string, id int, isActive bool) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, companyId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Model(product).
		Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	product.IsActive = &isActive
	return product, nil
}

func GetProduct(ctx context.Context, companyId string, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, companyId, id)
}

func GetProductBySku(ctx context.Context, companyId string, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND sku = ?", companyId, sku).
		First(&product).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}

// GetLowStockProducts lists active products at or below the threshold but not
// yet out of stock, lowest first.
func GetLowStockProducts(ctx context.Context, companyId string, threshold decimal.Decimal) ([]*Product, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND stock_qty <= ? AND stock_qty > 0 AND is_active = ?", companyId, threshold, true).
		Order("stock_qty").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func GetOutOfStockProducts(ctx context.Context, companyId string) ([]*Product, error) {
	db := config.GetDB()
	var products []*Product
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND stock_qty <= 0 AND is_active = ?", companyId, true).
		Order("name").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
