package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerTier carries an automatic discount applied at order creation.
type CustomerTier struct {
	CompanyId     string          `gorm:"primary_key;size:36" json:"company_id"`
	Code          string          `gorm:"primary_key;size:50" json:"code"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	DiscountType  DiscountType    `gorm:"size:10;not null" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"discount_value"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomerTier struct {
	Code          string          `json:"code" validate:"required,max=50"`
	Name          string          `json:"name" validate:"required,max=100"`
	DiscountType  DiscountType    `json:"discount_type" validate:"required,oneof=percent amount"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Notes         string          `json:"notes"`
}

type Customer struct {
	ID         int           `gorm:"primary_key" json:"id"`
	CompanyId  string        `gorm:"index;size:36;not null" json:"company_id"`
	Phone      string        `gorm:"size:20;not null;uniqueIndex:idx_customers_company_phone,priority:2" json:"phone"`
	Name       string        `gorm:"size:100;not null" json:"name"`
	TierCode   *string       `gorm:"size:50" json:"tier_code"`
	Attributes JSONMap       `gorm:"type:json" json:"attributes"`
	Tier       *CustomerTier `gorm:"-" json:"tier"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Phone      string  `json:"phone" validate:"required,max=20"`
	Name       string  `json:"name" validate:"required,max=100"`
	TierCode   *string `json:"tier_code"`
	Attributes JSONMap `json:"attributes"`
}

func CreateCustomerTier(ctx context.Context, companyId string, input *NewCustomerTier) (*CustomerTier, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	tier := CustomerTier{
		CompanyId:     companyId,
		Code:          input.Code,
		Name:          input.Name,
		DiscountType:  input.DiscountType,
		DiscountValue: input.DiscountValue,
		Notes:         input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Create(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func GetCustomerTiers(ctx context.Context, companyId string) ([]*CustomerTier, error) {
	return utils.FetchAllModels[CustomerTier](ctx, companyId)
}

func (input *NewCustomer) validate(ctx context.Context, companyId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, companyId, id); err != nil {
			return err
		}
	}
	// validate unique phone
	if err := utils.ValidateUnique[Customer](ctx, companyId, "phone", input.Phone, id); err != nil {
		return err
	}
	// validate tier
	if input.TierCode != nil && *input.TierCode != "" {
		count, err := utils.ResourceCountWhere[CustomerTier](ctx, companyId, "code = ?", *input.TierCode)
		if err != nil {
			return err
		}
		if count <= 0 {
			return errors.New("customer tier not found")
		}
	}
	return nil
}

func CreateCustomer(ctx context.Context, companyId string, input *NewCustomer) (*Customer, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}

	attributes, err := ValidateCustomFields(ctx, companyId, EntityTypeCustomer, input.Attributes)
	if err != nil {
		return nil, err
	}

	customer := Customer{
		CompanyId:  companyId,
		Phone:      input.Phone,
		Name:       input.Name,
		TierCode:   input.TierCode,
		Attributes: attributes,
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, companyId string, id int, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[Customer](ctx, companyId, id)
	if err != nil {
		return nil, err
	}

	attributes, err := ValidateCustomFields(ctx, companyId, EntityTypeCustomer, input.Attributes)
	if err != nil {
		return nil, err
	}

	existing.Phone = input.Phone
	existing.Name = input.Name
	existing.TierCode = input.TierCode
	existing.Attributes = attributes

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// loadTier resolves the customer's tier by code. The tier is optional, so
// the lookup only runs when a code is set; a dangling code leaves Tier nil
// instead of failing the read.
func (customer *Customer) loadTier(ctx context.Context, companyId string) error {
	if customer.TierCode == nil || *customer.TierCode == "" {
		return nil
	}
	db := config.GetDB()
	var tier CustomerTier
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("company_id = ? AND code = ?", companyId, *customer.TierCode).
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	customer.Tier = &tier
	return nil
}

func GetCustomer(ctx context.Context, companyId string, id int) (*Customer, error) {
	customer, err := utils.FetchModel[Customer](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	if err := customer.loadTier(ctx, companyId); err != nil {
		return nil, err
	}
	return customer, nil
}

func ListCustomers(ctx context.Context, companyId string) ([]*Customer, error) {
	customers, err := utils.FetchAllModels[Customer](ctx, companyId)
	if err != nil {
		return nil, err
	}
	tiers, err := GetCustomerTiers(ctx, companyId)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]*CustomerTier, len(tiers))
	for _, tier := range tiers {
		byCode[tier.Code] = tier
	}
	for _, customer := range customers {
		if customer.TierCode != nil {
			customer.Tier = byCode[*customer.TierCode]
		}
	}
	return customers, nil
}
