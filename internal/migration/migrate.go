package migration

import (
	"github.com/rentalhub/rental-backend/internal/domain"
	"gorm.io/gorm"
)

// Run executes AutoMigrate for the chat schema.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Conversation{},
		&domain.Message{},
	)
}

// SeedDemoUsers inserts a landlord and a tenant when the users table is empty.
func SeedDemoUsers(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	users := []domain.User{
		{Email: "landlord@example.com", FirstName: "Grace", LastName: "Mwangi", Role: domain.RoleLandlord, IsActive: true},
		{Email: "tenant@example.com", FirstName: "Otieno", LastName: "Ochieng", Role: domain.RoleTenant, IsActive: true},
	}
	return db.Create(&users).Error
}
