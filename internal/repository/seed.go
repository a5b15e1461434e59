package repository

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"catalog-service/internal/models"
)

type seedCategory struct {
	Name         string
	NameEN       string
	Slug         string
	ParentSlug   string
	Level        int
	DisplayOrder int
	IsVisible    bool
	Description  string
}

// defaultTaxonomy is the built-in category forest. Level 1 roots first,
// then level 2 groups, then the level 3 phase leaves classification
// rules resolve against. Parents are referenced by slug because row ids
// are assigned by the database.
func defaultTaxonomy() []seedCategory {
	return []seedCategory{
		// Level 1 - storefront roots
		{Name: "Chromatography Columns", NameEN: "Chromatography Columns", Slug: "chromatography-columns", Level: 1, DisplayOrder: 1, IsVisible: true, Description: "HPLC, GC, and specialty chromatography columns"},
		{Name: "Chromatography Supplies", NameEN: "Chromatography Supplies", Slug: "chromatography-supplies", Level: 1, DisplayOrder: 2, IsVisible: true, Description: "Consumables and supplies for chromatography"},
		{Name: "Sample Preparation", NameEN: "Sample Preparation", Slug: "sample-preparation", Level: 1, DisplayOrder: 3, IsVisible: true, Description: "Sample preparation products and equipment"},
		{Name: "Laboratory Supplies", NameEN: "Laboratory Supplies", Slug: "laboratory-supplies", Level: 1, DisplayOrder: 4, IsVisible: true, Description: "General laboratory supplies and consumables"},

		// Level 1 - reserved, hidden from storefront
		{Name: "Others", NameEN: "Others", Slug: "others", Level: 1, DisplayOrder: 5, IsVisible: false, Description: "Uncategorized products"},

		// Level 2 - Chromatography Columns
		{Name: "HPLC Columns", NameEN: "HPLC Columns", Slug: "hplc-columns", ParentSlug: "chromatography-columns", Level: 2, DisplayOrder: 1, IsVisible: true, Description: "High Performance Liquid Chromatography columns"},
		{Name: "GC Columns", NameEN: "GC Columns", Slug: "gc-columns", ParentSlug: "chromatography-columns", Level: 2, DisplayOrder: 2, IsVisible: true, Description: "Gas Chromatography columns"},
		{Name: "Guard Columns", NameEN: "Guard Columns", Slug: "guard-columns", ParentSlug: "chromatography-columns", Level: 2, DisplayOrder: 3, IsVisible: true, Description: "Guard columns and holders"},

		// Level 2 - Chromatography Supplies
		{Name: "Vials", NameEN: "Vials", Slug: "vials", ParentSlug: "chromatography-supplies", Level: 2, DisplayOrder: 1, IsVisible: true, Description: "Autosampler and storage vials"},
		{Name: "Caps & Septa", NameEN: "Caps & Septa", Slug: "caps-septa", ParentSlug: "chromatography-supplies", Level: 2, DisplayOrder: 2, IsVisible: true, Description: "Vial caps and septa"},
		{Name: "Syringes & Needles", NameEN: "Syringes & Needles", Slug: "syringes-needles", ParentSlug: "chromatography-supplies", Level: 2, DisplayOrder: 3, IsVisible: true, Description: "Syringes and needles for chromatography"},
		{Name: "Fittings & Tubing", NameEN: "Fittings & Tubing", Slug: "fittings-tubing", ParentSlug: "chromatography-supplies", Level: 2, DisplayOrder: 4, IsVisible: true, Description: "Connectors, fittings, and tubing"},

		// Level 2 - Sample Preparation
		{Name: "SPE Cartridges", NameEN: "SPE Cartridges", Slug: "spe-cartridges", ParentSlug: "sample-preparation", Level: 2, DisplayOrder: 1, IsVisible: true, Description: "Solid Phase Extraction cartridges"},
		{Name: "Syringe Filters", NameEN: "Syringe Filters", Slug: "syringe-filters", ParentSlug: "sample-preparation", Level: 2, DisplayOrder: 2, IsVisible: true, Description: "Disposable syringe filters"},

		// Level 3 - stationary phase leaves under HPLC Columns
		{Name: "C18 Columns", NameEN: "C18 Columns", Slug: "c18-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 1, IsVisible: true, Description: "Octadecylsilane reversed phase columns"},
		{Name: "C8 Columns", NameEN: "C8 Columns", Slug: "c8-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 2, IsVisible: true, Description: "Octylsilane reversed phase columns"},
		{Name: "Silica Columns", NameEN: "Silica Columns", Slug: "silica-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 3, IsVisible: true, Description: "Bare silica normal phase columns"},
		{Name: "Phenyl Columns", NameEN: "Phenyl Columns", Slug: "phenyl-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 4, IsVisible: true, Description: "Phenyl and biphenyl phase columns"},
		{Name: "HILIC Columns", NameEN: "HILIC Columns", Slug: "hilic-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 5, IsVisible: true, Description: "Hydrophilic interaction columns"},
		{Name: "Cyano Columns", NameEN: "Cyano Columns", Slug: "cyano-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 6, IsVisible: true, Description: "Cyanopropyl phase columns"},
		{Name: "C4 Columns", NameEN: "C4 Columns", Slug: "c4-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 7, IsVisible: true, Description: "Butylsilane wide-pore columns"},
		{Name: "PFP Columns", NameEN: "PFP Columns", Slug: "pfp-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 8, IsVisible: true, Description: "Pentafluorophenyl phase columns"},
		{Name: "Amino Columns", NameEN: "Amino Columns", Slug: "amino-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 9, IsVisible: true, Description: "Aminopropyl phase columns"},
		{Name: "Diol Columns", NameEN: "Diol Columns", Slug: "diol-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 10, IsVisible: true, Description: "Diol phase columns"},
		{Name: "C30 Columns", NameEN: "C30 Columns", Slug: "c30-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 11, IsVisible: true, Description: "Triacontylsilane columns for isomer separation"},
		{Name: "Other Columns", NameEN: "Other Columns", Slug: "other-columns", ParentSlug: "hplc-columns", Level: 3, DisplayOrder: 12, IsVisible: true, Description: "Chiral, mixed-mode, and specialty columns"},
	}
}

// SeedCategories populates the category table with the default taxonomy.
// It is a no-op when any categories already exist so operator edits
// survive restarts.
func SeedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := defaultTaxonomy()
	idBySlug := make(map[string]uint, len(seeds))

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, s := range seeds {
			nameEN := s.NameEN
			desc := s.Description
			cat := models.Category{
				Name:         s.Name,
				NameEN:       &nameEN,
				Slug:         s.Slug,
				Level:        s.Level,
				DisplayOrder: s.DisplayOrder,
				IsVisible:    s.IsVisible,
				Description:  &desc,
			}
			if s.ParentSlug != "" {
				parentID, ok := idBySlug[s.ParentSlug]
				if !ok {
					return fmt.Errorf("seed category %s references unknown parent %s", s.Slug, s.ParentSlug)
				}
				cat.ParentID = &parentID
			}
			if err := tx.Create(&cat).Error; err != nil {
				return fmt.Errorf("failed to seed category %s: %w", s.Slug, err)
			}
			idBySlug[s.Slug] = cat.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Seeded %d categories", len(seeds))
	return nil
}
