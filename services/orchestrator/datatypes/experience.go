// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the chat orchestrator service.
//
// This file contains the experience catalog types: the Experience summary
// returned by search, the merged ExperienceDetail returned by detail lookups,
// and the SearchFilters the decision oracle may populate.
package datatypes

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxSearchLimit caps how many experiences a single search may return.
	MaxSearchLimit = 8

	// MaxHighlights caps the unique selling points surfaced per experience.
	MaxHighlights = 3

	// MaxSemanticQueryChars bounds the text sent to the embedding service,
	// counted in runes to match the validator's max tag.
	MaxSemanticQueryChars = 2048
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// filtersValidate is the validator instance for search filter datatypes.
var filtersValidate *validator.Validate

func init() {
	filtersValidate = validator.New()
}

// =============================================================================
// Experience Types
// =============================================================================

// Experience is a catalog entry as shown in the chat and on the map.
//
// # Description
//
// Experience is the search-result projection of a catalog record. It carries
// just enough to present a card and a map pin. Similarity is only populated
// on search results; detail lookups return an ExperienceDetail instead.
//
// # Fields
//
//   - ID: Opaque catalog identifier (UUID in the store).
//   - Name: Display name, derived from the one-line summary or narrative title.
//   - Summary: Short description for the result card.
//   - Lat, Lon: Map coordinates. Both are always present on search results.
//   - Duration: Free-text duration ("4 hours", "full day"). May be nil.
//   - Location: City, falling back to destination, falling back to "México".
//   - Destination: Region name. May be nil.
//   - Highlights: Up to MaxHighlights unique selling points, in catalog order.
//   - Type: Primary experience type (culture, nature, adventure, ...).
//   - Intensity: Physical intensity (low, moderate, high).
//   - FamilyFriendly, IncludesFood, IncludesTransport: Optional attributes.
//   - Similarity: Relevance score in [0,1], present only on search results,
//     monotonically non-increasing across a result sequence.
type Experience struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	Lat               float64  `json:"lat"`
	Lon               float64  `json:"lon"`
	Duration          *string  `json:"duration"`
	Location          string   `json:"location"`
	Destination       *string  `json:"destination"`
	Highlights        []string `json:"highlights"`
	Type              *string  `json:"type"`
	Intensity         *string  `json:"intensity"`
	FamilyFriendly    *bool    `json:"family_friendly"`
	IncludesFood      *bool    `json:"includes_food"`
	IncludesTransport *bool    `json:"includes_transport"`
	Similarity        *float64 `json:"similarity,omitempty"`
}

// ExperienceDetail is the merged base + enrichment record for one experience.
//
// # Description
//
// ExperienceDetail is what get_experience_details returns: the base catalog
// record joined with its enrichment record when one exists. Enrichment fields
// are empty (zero-valued) when no enrichment record is stored.
//
// # Assumptions
//
//   - ID refers to an existing base record; absence is reported as a
//     not-found outcome by the tool layer, never as a partially filled detail.
type ExperienceDetail struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	NarrativeText         string   `json:"narrative_text,omitempty"`
	SupplierName          string   `json:"supplier_name,omitempty"`
	City                  string   `json:"city,omitempty"`
	DestinationName       string   `json:"destination_name,omitempty"`
	Duration              string   `json:"duration,omitempty"`
	Lat                   float64  `json:"lat"`
	Lon                   float64  `json:"lon"`
	EnvironmentType       string   `json:"environment_type,omitempty"`
	PrimaryExperienceType string   `json:"primary_experience_type,omitempty"`
	PhysicalIntensity     string   `json:"physical_intensity,omitempty"`
	FamilyFriendly        *bool    `json:"family_friendly,omitempty"`
	IncludesFood          *bool    `json:"includes_food,omitempty"`
	IncludesTransport     *bool    `json:"includes_transport,omitempty"`
	SemanticTags          []string `json:"semantic_tags,omitempty"`
	UniqueSellingPoints   []string `json:"unique_selling_points,omitempty"`
	OneLineSummary        string   `json:"one_line_summary,omitempty"`
}

// =============================================================================
// Search Filters
// =============================================================================

// SearchFilters are the arguments the decision oracle passes to the search tool.
//
// # Description
//
// SemanticQuery is required free text; every other filter is independently
// optional. A nil filter means "unconstrained", never "exclude". The scalar
// filters intersect the semantic ranking server-side.
//
// # Validation
//
// Uses go-playground/validator:
//   - SemanticQuery: required, bounded by MaxSemanticQueryChars
//   - PhysicalIntensity: low, moderate or high
//   - EnvironmentType: cenote, jungle, beach, city, desert or lake
//   - ExperienceType: culture, nature, adventure, wellness or gastronomy
//   - MaxDurationHours: positive when set
//
// # Examples
//
//	filters := SearchFilters{
//	    SemanticQuery:  "nadar en aguas cristalinas con familia",
//	    City:           ptr("Tulum"),
//	    FamilyFriendly: ptr(true),
//	}
//	if err := filters.Validate(); err != nil { ... }
type SearchFilters struct {
	SemanticQuery     string   `json:"semantic_query" validate:"required,max=2048"`
	Destination       *string  `json:"destination,omitempty"`
	City              *string  `json:"city,omitempty"`
	FamilyFriendly    *bool    `json:"family_friendly,omitempty"`
	PhysicalIntensity *string  `json:"physical_intensity,omitempty" validate:"omitempty,oneof=low moderate high"`
	MaxDurationHours  *float64 `json:"max_duration_hours,omitempty" validate:"omitempty,gt=0"`
	EnvironmentType   *string  `json:"environment_type,omitempty" validate:"omitempty,oneof=cenote jungle beach city desert lake"`
	IncludesFood      *bool    `json:"includes_food,omitempty"`
	ExperienceType    *string  `json:"experience_type,omitempty" validate:"omitempty,oneof=culture nature adventure wellness gastronomy"`
}

// Validate validates the SearchFilters fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field.
func (f *SearchFilters) Validate() error {
	return filtersValidate.Struct(f)
}

// =============================================================================
// Name Derivation
// =============================================================================

// DeriveName builds a display name from the enrichment summary or narrative.
//
// # Description
//
// Prefers the one-line summary. When absent, looks for the loader's
// "Title: ... |" convention inside the narrative text, and as a last resort
// truncates the narrative to 100 characters. Returns a fixed placeholder
// for records with no text at all.
//
// # Inputs
//
//   - oneLineSummary: Enrichment summary, may be empty.
//   - narrativeText: Base record narrative, may be empty.
//
// # Outputs
//
//   - string: A non-empty display name.
func DeriveName(oneLineSummary, narrativeText string) string {
	if oneLineSummary != "" {
		return oneLineSummary
	}
	if narrativeText == "" {
		return "Experiencia sin nombre"
	}

	if idx := strings.Index(narrativeText, "Title:"); idx >= 0 {
		rest := narrativeText[idx+len("Title:"):]
		if end := strings.IndexAny(rest, "|\n"); end >= 0 {
			rest = rest[:end]
		} else {
			rest = TruncateRunes(rest, 100)
		}
		if title := strings.TrimSpace(rest); title != "" {
			return title
		}
	}

	return strings.TrimSpace(TruncateRunes(narrativeText, 100))
}

// TruncateRunes shortens s to at most max runes.
//
// # Description
//
// The catalog text is Spanish, so byte slicing can land in the middle of an
// accented character and leave invalid UTF-8 at the cut. All length capping
// of user-visible or embedded text goes through here.
func TruncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
