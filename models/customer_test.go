package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestGetCustomerWithoutTier(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	customer := seedCustomer(t, ctx, companyId, "09791110001", nil)

	fetched, err := GetCustomer(ctx, companyId, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if fetched.Tier != nil {
		t.Fatalf("expected no tier, got %+v", fetched.Tier)
	}
	if fetched.TierCode != nil {
		t.Fatalf("expected nil tier code, got %s", *fetched.TierCode)
	}
}

func TestGetCustomerLoadsTier(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	seedTier(t, ctx, companyId, "SILVER", DiscountTypePercent, 5)
	silver := "SILVER"
	customer := seedCustomer(t, ctx, companyId, "09791110002", &silver)

	fetched, err := GetCustomer(ctx, companyId, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if fetched.Tier == nil {
		t.Fatal("expected the tier to be loaded")
	}
	if fetched.Tier.Code != "SILVER" || !fetched.Tier.DiscountValue.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected tier: %+v", fetched.Tier)
	}
}

func TestListCustomersMixedTiers(t *testing.T) {
	setupTestDB(t, t.Name())
	ctx := testContext()
	companyId := seedCompany(t, ctx)
	seedTier(t, ctx, companyId, "GOLD", DiscountTypePercent, 10)
	gold := "GOLD"
	seedCustomer(t, ctx, companyId, "09791110003", &gold)
	seedCustomer(t, ctx, companyId, "09791110004", nil)

	customers, err := ListCustomers(ctx, companyId)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	for _, customer := range customers {
		if customer.TierCode == nil {
			if customer.Tier != nil {
				t.Fatalf("customer %s should have no tier", customer.Phone)
			}
			continue
		}
		if customer.Tier == nil || customer.Tier.Code != *customer.TierCode {
			t.Fatalf("customer %s tier not resolved", customer.Phone)
		}
	}
}
