package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/okarlsson/waitgate/internal/models"
	"github.com/okarlsson/waitgate/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.WaitlistEntry{},
		&models.RateLimitWindow{},
		&models.CacheEntry{},
	)
}

// SeedData creates a demo project on first boot so the join endpoint is
// exercisable immediately. Existing installations are left untouched.
func SeedData(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	var count int64
	if err := db.Model(&models.Project{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	apiKey, err := crypto.GenerateAPIKey()
	if err != nil {
		return err
	}

	owner := models.User{
		Email:       "owner@example.com",
		DisplayName: "Demo Owner",
	}
	if err := db.Where(models.User{Email: owner.Email}).Attrs(owner).FirstOrCreate(&owner).Error; err != nil {
		return err
	}

	demo := models.Project{
		UserID:       owner.ID,
		Name:         "Demo Waitlist",
		Slug:         models.NormalizeSlug("demo-waitlist"),
		APIKey:       apiKey,
		Mode:         models.ModeFIFO,
		ShowPosition: true,
	}
	return db.Where(models.Project{Slug: demo.Slug}).Attrs(demo).FirstOrCreate(&models.Project{}).Error
}
