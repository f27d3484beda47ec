package models

import (
	"log"

	"github.com/tichatapp/tichat_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{},
		&Customer{},
		&ShopSettings{},
		&Sale{}, &SaleItem{},
		&WhatsAppOrder{},
		&SaleMessageRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
