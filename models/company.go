package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/google/uuid"
)

// Company is the tenant boundary. Every other table carries its id.
type Company struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" validate:"required"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name string `json:"name" validate:"required"`
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	company := Company{
		ID:       uuid.NewString(),
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}

	return &company, nil
}

func GetCompany(ctx context.Context, companyId string) (*Company, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var company Company
	err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Where("id = ?", companyId).First(&company).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &company, nil
}
