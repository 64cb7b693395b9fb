// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// GetExperienceSchema returns the class definition for the experience catalog.
//
// # Description
//
// The Experience class is the searchable projection of the catalog: the
// loader denormalizes the base record plus its enrichment fields into one
// object and attaches an externally computed embedding (Vectorizer "none").
// Scalar filters used by the search tool are all IndexFilterable.
func GetExperienceSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "Experience",
		Description: "A tourism experience from the Rutopia catalog, searchable by embedding and scalar filters.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "narrative_text",
				DataType:     []string{"text"},
				Description:  "Full narrative description of the experience.",
				Tokenization: "word",
			},
			{
				Name:        "one_line_summary",
				DataType:    []string{"text"},
				Description: "Short summary used as the display name when present.",
			},
			{
				Name:        "supplier_name",
				DataType:    []string{"text"},
				Description: "Local supplier operating the experience.",
			},
			{
				Name:            "city",
				DataType:        []string{"text"},
				Description:     "City the experience departs from (e.g., 'Tulum').",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "destination_name",
				DataType:        []string{"text"},
				Description:     "Region (e.g., 'Quintana Roo', 'Yucatan').",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "duration",
				DataType:    []string{"text"},
				Description: "Free-text duration as shown to the user.",
			},
			{
				Name:            "duration_hours",
				DataType:        []string{"number"},
				Description:     "Numeric duration in hours for range filtering.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:        "lat",
				DataType:    []string{"number"},
				Description: "Latitude of the meeting point.",
			},
			{
				Name:        "lon",
				DataType:    []string{"number"},
				Description: "Longitude of the meeting point.",
			},
			{
				Name:            "environment_type",
				DataType:        []string{"text"},
				Description:     "Environment: cenote, jungle, beach, city, desert, lake.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "primary_experience_type",
				DataType:        []string{"text"},
				Description:     "Primary type: culture, nature, adventure, wellness, gastronomy.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "physical_intensity",
				DataType:        []string{"text"},
				Description:     "Physical intensity: low, moderate, high.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "family_friendly",
				DataType:        []string{"boolean"},
				Description:     "True if suitable for families with children.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "includes_food",
				DataType:        []string{"boolean"},
				Description:     "True if a meal is included.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "includes_transport",
				DataType:        []string{"boolean"},
				Description:     "True if transport is included.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:        "unique_selling_points",
				DataType:    []string{"text[]"},
				Description: "Ordered selling points; the first three become highlights.",
			},
		},
	}
}

// GetExperienceEnhancedSchema returns the class definition for enrichment records.
//
// # Description
//
// ExperienceEnhanced holds the auxiliary enrichment produced by the offline
// classification jobs, keyed by experience_id. Detail lookups merge this
// record (when present) into the base Experience object. Not vectorized.
func GetExperienceEnhancedSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "ExperienceEnhanced",
		Description: "Offline enrichment for an experience, merged into detail lookups.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "experience_id",
				DataType:        []string{"text"},
				Description:     "Weaviate object id of the base Experience record.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "one_line_summary",
				DataType:    []string{"text"},
				Description: "Short summary used as the display name when present.",
			},
			{
				Name:        "environment_type",
				DataType:    []string{"text"},
				Description: "Environment classification.",
			},
			{
				Name:        "primary_experience_type",
				DataType:    []string{"text"},
				Description: "Primary type classification.",
			},
			{
				Name:        "physical_intensity",
				DataType:    []string{"text"},
				Description: "Physical intensity classification.",
			},
			{
				Name:        "family_friendly",
				DataType:    []string{"boolean"},
				Description: "True if suitable for families with children.",
			},
			{
				Name:        "includes_food",
				DataType:    []string{"boolean"},
				Description: "True if a meal is included.",
			},
			{
				Name:        "includes_transport",
				DataType:    []string{"boolean"},
				Description: "True if transport is included.",
			},
			{
				Name:        "semantic_tags",
				DataType:    []string{"text[]"},
				Description: "Free-form tags from the enrichment pipeline.",
			},
			{
				Name:        "unique_selling_points",
				DataType:    []string{"text[]"},
				Description: "Ordered selling points for the detail view.",
			},
		},
	}
}

// EnsureWeaviateSchema creates any missing catalog classes at startup.
func EnsureWeaviateSchema(client *weaviate.Client) {
	// A list of functions that return our schema definitions.
	schemaGetters := []func() *models.Class{
		GetExperienceSchema,
		GetExperienceEnhancedSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		// Check if the class already exists.
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			// If it doesn't exist, the client returns an error. We can now create it.
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				// If we fail to create it, it's a fatal error.
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
