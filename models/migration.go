package models

import (
	"log"

	"bitbucket.org/mmdatafocus/retail_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{},
		&CustomerTier{}, &Customer{},
		&Product{}, &StockMovement{},
		&DocumentCounter{},
		&SaleOrder{}, &SaleOrderItem{},
		&PaymentSlip{},
		&CustomFieldDef{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
