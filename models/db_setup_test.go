package models

import (
	"context"
	"fmt"
	"testing"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB swaps the package-level connection for an in-memory sqlite
// database scoped to the test name. sqlite ignores row-locking clauses, so
// everything except true lock contention is covered here; see the
// INTEGRATION_TESTS suite for MySQL semantics.
func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&Company{},
		&CustomerTier{}, &Customer{},
		&Product{}, &StockMovement{},
		&DocumentCounter{},
		&SaleOrder{}, &SaleOrderItem{},
		&PaymentSlip{},
		&CustomFieldDef{},
		&History{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	return db
}

func testContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Tester")
	return ctx
}

func seedCompany(t *testing.T, ctx context.Context) string {
	t.Helper()
	company, err := CreateCompany(ctx, &NewCompany{Name: "Test Store"})
	if err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return company.ID
}

func seedProduct(t *testing.T, ctx context.Context, companyId string, sku string, openingQty int64) *Product {
	t.Helper()
	product, err := CreateProduct(ctx, companyId, &NewProduct{
		Sku:        sku,
		Name:       "Product " + sku,
		Price:      decimal.NewFromInt(1000),
		Cost:       decimal.NewFromInt(600),
		OpeningQty: decimal.NewFromInt(openingQty),
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return product
}

func seedCustomer(t *testing.T, ctx context.Context, companyId string, phone string, tierCode *string) *Customer {
	t.Helper()
	customer, err := CreateCustomer(ctx, companyId, &NewCustomer{
		Phone:    phone,
		Name:     "Customer " + phone,
		TierCode: tierCode,
	})
	if err != nil {
		t.Fatalf("seed customer %s: %v", phone, err)
	}
	return customer
}

func seedTier(t *testing.T, ctx context.Context, companyId string, code string, discountType DiscountType, value int64) {
	t.Helper()
	_, err := CreateCustomerTier(ctx, companyId, &NewCustomerTier{
		Code:          code,
		Name:          code,
		DiscountType:  discountType,
		DiscountValue: decimal.NewFromInt(value),
	})
	if err != nil {
		t.Fatalf("seed tier %s: %v", code, err)
	}
}
