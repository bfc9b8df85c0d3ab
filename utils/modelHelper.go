package utils

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/retail_backend/config"
)

/* DB fetching */

// FetchModel fetches one record by id, scoped to the given company.
// (may return ErrorRecordNotFound)
func FetchModel[T any](ctx context.Context, companyId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(TenantScope(ctx, companyId)).Where("company_id = ?", companyId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchAllModels fetches every record of T for the given company.
func FetchAllModels[T any](ctx context.Context, companyId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(TenantScope(ctx, companyId)).Where("company_id = ?", companyId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ResourceCountWhere[T any](ctx context.Context, companyId string, cond string, args ...interface{}) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(TenantScope(ctx, companyId)).Model(new(T)).
		Where("company_id = ?", companyId).
		Where(cond, args...).
		Count(&count).Error
	return count, err
}

// ValidateResourceId checks the id exists within the company's scope.
func ValidateResourceId[T any](ctx context.Context, companyId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, companyId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// ValidateUnique fails when another record of T already holds the value in
// the given column. excludeId skips the record being updated.
func ValidateUnique[T any](ctx context.Context, companyId string, field string, value interface{}, excludeId int) error {

	db := config.GetDB()
	var count int64
	query := db.WithContext(TenantScope(ctx, companyId)).Model(new(T)).
		Where("company_id = ?", companyId).
		Where(fmt.Sprintf("%s = ?", field), value)
	if excludeId > 0 {
		query = query.Where("id <> ?", excludeId)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%s must be unique", field)
	}
	return nil
}
