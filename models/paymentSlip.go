package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
)

// PaymentSlip is an uploaded bank-transfer receipt awaiting review. Cash
// payments settle immediately and never produce a slip.
type PaymentSlip struct {
	ID          int        `gorm:"primary_key" json:"id"`
	CompanyId   string     `gorm:"index;size:36;not null" json:"company_id"`
	SaleOrderId int        `gorm:"index;not null" json:"sale_order_id"`
	ImageUrl    string     `gorm:"size:255;not null" json:"image_url"`
	Status      SlipStatus `gorm:"size:20;not null;default:'Pending'" json:"status"`
	Notes       *string    `gorm:"type:text" json:"notes"`
	ReviewedBy  *int       `json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	SaleOrder   *SaleOrder `gorm:"foreignKey:SaleOrderId" json:"sale_order"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentSlip struct {
	SaleOrderId int     `json:"sale_order_id" validate:"required"`
	ImageUrl    string  `json:"image_url" validate:"required,max=255"`
	Notes       *string `json:"notes"`
}

// CreatePaymentSlip attaches a transfer receipt to an order. Only orders
// paying by transfer and still pending receipt can take a slip.
func CreatePaymentSlip(ctx context.Context, companyId string, input *NewPaymentSlip) (*PaymentSlip, error) {
	if companyId == "" {
		return nil, errors.New("company id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	order, err := utils.FetchModel[SaleOrder](ctx, companyId, input.SaleOrderId)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod == nil || *order.PaymentMethod != PaymentMethodTransfer {
		return nil, fmt.Errorf("%w: order %s is not paying by transfer",
			utils.ErrorInvalidStateTransition, order.TxId)
	}
	if order.PaymentState == PaymentStateReceived {
		return nil, fmt.Errorf("%w: order %s is already paid",
			utils.ErrorInvalidStateTransition, order.TxId)
	}

	slip := PaymentSlip{
		CompanyId:   companyId,
		SaleOrderId: order.ID,
		ImageUrl:    input.ImageUrl,
		Status:      SlipStatusPending,
		Notes:       input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).Create(&slip).Error; err != nil {
		return nil, err
	}
	return &slip, nil
}

// ApprovePaymentSlip accepts a pending slip and settles the order's payment
// in the same transaction. The order flips to Received only here.
func ApprovePaymentSlip(ctx context.Context, companyId string, slipId int, reviewedBy *int) (*PaymentSlip, error) {
	slip, err := utils.FetchModel[PaymentSlip](ctx, companyId, slipId)
	if err != nil {
		return nil, err
	}
	if slip.Status != SlipStatusPending {
		return nil, fmt.Errorf("%w: slip is already %s",
			utils.ErrorInvalidStateTransition, slip.Status)
	}

	order, err := utils.FetchModel[SaleOrder](ctx, companyId, slip.SaleOrderId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	dbCtx := utils.TenantScope(ctx, companyId)

	now := time.Now().UTC()
	slipUpdates := map[string]interface{}{
		"status":      SlipStatusApproved,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
	}
	if err := tx.WithContext(dbCtx).Model(slip).Updates(slipUpdates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(dbCtx).Model(order).
		Update("payment_state", PaymentStateReceived).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(dbCtx), ctx, companyId, "Approve",
		slip.ID, "PaymentSlip", SlipStatusPending, SlipStatusApproved,
		fmt.Sprintf("Payment slip for sale order %s approved.", order.TxId)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		config.LogError(config.GetLogger(), "paymentSlip.go", "ApprovePaymentSlip", "Commit", slip.ID, err)
		return nil, err
	}

	slip.Status = SlipStatusApproved
	slip.ReviewedBy = reviewedBy
	slip.ReviewedAt = &now
	return slip, nil
}

// RejectPaymentSlip turns down a pending slip. The order keeps waiting for
// payment; a corrected slip can be uploaded afterwards.
func RejectPaymentSlip(ctx context.Context, companyId string, slipId int, reviewedBy *int, notes *string) (*PaymentSlip, error) {
	slip, err := utils.FetchModel[PaymentSlip](ctx, companyId, slipId)
	if err != nil {
		return nil, err
	}
	if slip.Status != SlipStatusPending {
		return nil, fmt.Errorf("%w: slip is already %s",
			utils.ErrorInvalidStateTransition, slip.Status)
	}

	db := config.GetDB()
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      SlipStatusRejected,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
	}
	if notes != nil {
		updates["notes"] = notes
	}
	if err := db.WithContext(utils.TenantScope(ctx, companyId)).
		Model(slip).Updates(updates).Error; err != nil {
		return nil, err
	}

	slip.Status = SlipStatusRejected
	slip.ReviewedBy = reviewedBy
	slip.ReviewedAt = &now
	return slip, nil
}

// GetPaymentSlips lists a company's slips, newest first, optionally filtered
// by status.
func GetPaymentSlips(ctx context.Context, companyId string, status *SlipStatus) ([]*PaymentSlip, error) {
	db := config.GetDB()
	query := db.WithContext(utils.TenantScope(ctx, companyId)).
		Preload("SaleOrder").
		Where("company_id = ?", companyId)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var slips []*PaymentSlip
	err := query.Order("created_at DESC").Limit(config.SearchLimit).Find(&slips).Error
	if err != nil {
		return nil, err
	}
	return slips, nil
}
