package database

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/feedpulse/feedpulse/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed starter_categories.yaml
var starterPackYAML []byte

// starterPack is the parsed starter_categories.yaml manifest.
type starterPack struct {
	Categories []starterDefinition `yaml:"categories"`
	Products   []starterDefinition `yaml:"products"`
}

type starterDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// loadStarterPack parses the embedded starter pack with strict validation:
// unknown YAML keys are rejected to catch typos in the manifest.
func loadStarterPack() (*starterPack, error) {
	var pack starterPack
	decoder := yaml.NewDecoder(bytes.NewReader(starterPackYAML))
	decoder.KnownFields(true)

	if err := decoder.Decode(&pack); err != nil {
		return nil, fmt.Errorf("failed to parse starter pack: %w", err)
	}

	for _, c := range pack.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("starter pack category missing required field: name")
		}
	}
	return &pack, nil
}

// ApplyStarterPack creates the default categories and products for a newly
// onboarded tenant. Idempotent: existing names are left untouched.
func ApplyStarterPack(db *gorm.DB, tenantID uint) error {
	pack, err := loadStarterPack()
	if err != nil {
		return err
	}

	for _, def := range pack.Categories {
		category := models.FeedbackCategory{
			TenantID:    tenantID,
			Name:        def.Name,
			Description: def.Description,
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenantID, def.Name).
			FirstOrCreate(&category).Error; err != nil {
			return fmt.Errorf("failed to create starter category %s: %w", def.Name, err)
		}
	}

	for _, def := range pack.Products {
		product := models.ProductCategory{
			TenantID:    tenantID,
			Name:        def.Name,
			Description: def.Description,
		}
		if err := db.Where("tenant_id = ? AND name = ?", tenantID, def.Name).
			FirstOrCreate(&product).Error; err != nil {
			return fmt.Errorf("failed to create starter product %s: %w", def.Name, err)
		}
	}

	return nil
}
