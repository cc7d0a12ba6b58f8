package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/foodgram/backend/config"
	"github.com/foodgram/backend/internal/database"
	"github.com/foodgram/backend/internal/models"
)

// seedFile mirrors the catalog fixture format: a list of ingredients and a
// list of tags.
type seedFile struct {
	Ingredients []struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
	} `json:"ingredients"`
	Tags []struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Slug  string `json:"slug"`
	} `json:"tags"`
}

func main() {
	path := flag.String("file", "data/catalog.json", "catalog fixture file")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	content, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("Failed to read fixture %s: %v", *path, err)
	}

	var seed seedFile
	if err := json.Unmarshal(content, &seed); err != nil {
		log.Fatalf("Failed to parse fixture: %v", err)
	}

	var created, skipped int
	for _, ing := range seed.Ingredients {
		row := models.Ingredient{Name: ing.Name, MeasurementUnit: ing.MeasurementUnit}
		if err := db.DB.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				skipped++
				continue
			}
			log.Fatalf("Failed to insert ingredient %q: %v", ing.Name, err)
		}
		created++
	}
	for _, tag := range seed.Tags {
		row := models.Tag{Name: tag.Name, Color: tag.Color, Slug: tag.Slug}
		if err := db.DB.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				skipped++
				continue
			}
			log.Fatalf("Failed to insert tag %q: %v", tag.Name, err)
		}
		created++
	}

	log.Printf("Seeded catalog: %d created, %d already present", created, skipped)
}
