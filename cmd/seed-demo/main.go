// seed-demo loads a small demo dataset: one company, two customer tiers,
// a handful of products with opening stock and the custom field definitions
// the storefront expects.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	company, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Demo Store"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create company: %v\n", err)
		os.Exit(1)
	}
	companyId := company.ID
	fmt.Printf("Created company %q id=%s\n", company.Name, companyId)

	tiers := []*models.NewCustomerTier{
		{Code: "SILVER", Name: "Silver", DiscountType: models.DiscountTypePercent, DiscountValue: decimal.NewFromInt(5)},
		{Code: "GOLD", Name: "Gold", DiscountType: models.DiscountTypePercent, DiscountValue: decimal.NewFromInt(10)},
	}
	for _, tier := range tiers {
		if _, err := models.CreateCustomerTier(ctx, companyId, tier); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create tier %s: %v\n", tier.Code, err)
			os.Exit(1)
		}
	}

	fieldDefs := []*models.NewCustomFieldDef{
		{
			EntityType: models.EntityTypeCustomer,
			FieldKey:   "birthday",
			Label:      "Birthday",
			FieldType:  models.FieldTypeDate,
		},
		{
			EntityType: models.EntityTypeProduct,
			FieldKey:   "color",
			Label:      "Color",
			FieldType:  models.FieldTypeSelect,
			Options:    models.StringList{"red", "green", "blue", "black"},
		},
		{
			EntityType: models.EntityTypeSaleOrder,
			FieldKey:   "delivery_notes",
			Label:      "Delivery Notes",
			FieldType:  models.FieldTypeTextarea,
		},
	}
	for _, def := range fieldDefs {
		if _, err := models.CreateCustomFieldDefinition(ctx, companyId, def); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create field %s: %v\n", def.FieldKey, err)
			os.Exit(1)
		}
	}

	products := []*models.NewProduct{
		{Sku: "TSHIRT-001", Name: "Basic T-Shirt", Price: decimal.NewFromInt(12000), Cost: decimal.NewFromInt(7000), OpeningQty: decimal.NewFromInt(50)},
		{Sku: "JEANS-001", Name: "Slim Jeans", Price: decimal.NewFromInt(35000), Cost: decimal.NewFromInt(21000), OpeningQty: decimal.NewFromInt(30)},
		{Sku: "CAP-001", Name: "Baseball Cap", Price: decimal.NewFromInt(8000), Cost: decimal.NewFromInt(4500), OpeningQty: decimal.NewFromInt(20)},
	}
	for _, product := range products {
		if _, err := models.CreateProduct(ctx, companyId, product); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create product %s: %v\n", product.Sku, err)
			os.Exit(1)
		}
	}

	gold := "GOLD"
	if _, err := models.CreateCustomer(ctx, companyId, &models.NewCustomer{
		Phone:    "09790000001",
		Name:     "Aye Chan",
		TierCode: &gold,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create customer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d tiers, %d field definitions, %d products, 1 customer\n",
		len(tiers), len(fieldDefs), len(products))
	fmt.Printf("Demo company id: %s\n", companyId)
}
